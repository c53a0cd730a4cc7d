package rips

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WritePreview renders the archive members as an XLSX workbook: one sheet
// per member named after it, one row per line, one cell per column. Cells
// are written as text so codes keep their leading zeros.
func WritePreview(w io.Writer, a *Archive) error {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	for i, file := range a.Files {
		sheet := strings.TrimSuffix(MemberName(file.Code, a.Window), ".txt")
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return fmt.Errorf("rename sheet %s: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		for r, line := range file.Lines {
			cols := strings.Split(line, ",")
			row := make([]interface{}, len(cols))
			for j, v := range cols {
				row[j] = v
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", sheet, r+1, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
