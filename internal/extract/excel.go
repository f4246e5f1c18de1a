package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel streams every sheet and emits one tab-separated line per
// non-blank row, sheets in workbook order.
func extractExcel(content []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("extract XLSX: %w", err)
	}
	defer book.Close()

	var lines []string
	for _, sheet := range book.GetSheetList() {
		sheetLines, err := sheetRows(book, sheet)
		if err != nil {
			return "", fmt.Errorf("extract XLSX: sheet %q: %w", sheet, err)
		}
		lines = append(lines, sheetLines...)
	}
	return strings.Join(lines, "\n"), nil
}

func sheetRows(book *excelize.File, sheet string) ([]string, error) {
	rows, err := book.Rows(sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		line := strings.TrimRight(strings.Join(cells, "\t"), "\t ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, rows.Error()
}
