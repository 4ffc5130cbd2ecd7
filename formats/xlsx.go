package formats

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// SheetName is the worksheet holding exported rows.
const SheetName = "Results"

// WriteXLSX writes rows as an Excel workbook with a header row followed by
// one row per result, in first-row column order. Null cells stay blank.
func WriteXLSX(w io.Writer, rows []resultset.Row) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	columns := resultset.Columns(rows)
	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := file.SetCellValue(SheetName, cell, name); err != nil {
			return fmt.Errorf("failed to write header %q: %w", name, err)
		}
	}

	for r, row := range rows {
		for col, name := range columns {
			v := row.Value(name)
			if v.IsNull() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := file.SetCellValue(SheetName, cell, v.Interface()); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
