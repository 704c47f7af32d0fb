package main

import (
	"embed"

	cmd "github.com/redhat-openshift-ecosystem/test-report-analyzer/cmd/analyzer"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/assets"
)

//go:embed data/templates
var vfs embed.FS

func main() {
	assets.UpdateData(&vfs)
	cmd.Execute()
}
