package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	sheetFailingTests = "failing-tests"
	sheetTestStats    = "test-stats"
)

// SaveSheet writes the failing tests and the failure statistics to a
// spreadsheet.
func SaveSheet(path string, doc *Document) error {
	sheet := excelize.NewFile()
	defer sheet.Close()

	// the default sheet is renamed to keep the workbook to the two sheets.
	if err := sheet.SetSheetName("Sheet1", sheetFailingTests); err != nil {
		return err
	}
	setHeader(sheet, sheetFailingTests, "Test", "Failures", "Failure_Rate", "Reports")
	for i, ft := range doc.FailingTests {
		row := i + 2
		_ = sheet.SetCellValue(sheetFailingTests, fmt.Sprintf("A%d", row), ft.Test)
		_ = sheet.SetCellValue(sheetFailingTests, fmt.Sprintf("B%d", row), ft.Failures)
		_ = sheet.SetCellValue(sheetFailingTests, fmt.Sprintf("C%d", row), round2(ft.FailureRate))
		_ = sheet.SetCellValue(sheetFailingTests, fmt.Sprintf("D%d", row), strings.Join(ft.Reports, ", "))
	}

	if _, err := sheet.NewSheet(sheetTestStats); err != nil {
		return err
	}
	setHeader(sheet, sheetTestStats, "Test", "Failures", "Executions", "Failure_Rate")
	for i, st := range doc.Analysis.TestStats.ByFailureRate {
		row := i + 2
		_ = sheet.SetCellValue(sheetTestStats, fmt.Sprintf("A%d", row), st.Name)
		_ = sheet.SetCellValue(sheetTestStats, fmt.Sprintf("B%d", row), st.FailureCount)
		_ = sheet.SetCellValue(sheetTestStats, fmt.Sprintf("C%d", row), st.ExecutionCount)
		_ = sheet.SetCellValue(sheetTestStats, fmt.Sprintf("D%d", row), st.FailureRate)
	}

	sheet.SetActiveSheet(0)
	return sheet.SaveAs(path)
}

func setHeader(sheet *excelize.File, name string, columns ...string) {
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = sheet.SetCellValue(name, cell, col)
	}
}
