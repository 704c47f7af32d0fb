package upload

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AllowedExtensions are the report file extensions accepted, without the dot.
var AllowedExtensions = []string{"html"}

var reUnsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// AllowedFile checks the extension of a report file name, ignoring case.
func AllowedFile(name string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	ext := strings.ToLower(name[i+1:])
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// SecureFilename returns a version of name safe to store on a file system:
// ASCII only, no path separators, words joined by underscores. It may return
// an empty string.
func SecureFilename(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(t, name)
	if err != nil {
		ascii = ""
	}
	for _, sep := range []string{string(filepath.Separator), "/", `\`} {
		ascii = strings.ReplaceAll(ascii, sep, " ")
	}
	ascii = strings.Join(strings.Fields(ascii), "_")
	ascii = reUnsafeChars.ReplaceAllString(ascii, "")
	return strings.Trim(ascii, "._")
}
