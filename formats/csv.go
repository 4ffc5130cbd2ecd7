package formats

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// WriteCSV writes rows as CSV. The header is taken from the first row and
// every row is written in that column order; columns a row lacks are empty.
// Fields are quoted as RFC 4180 requires and records end with "\n".
// An empty row set writes nothing.
func WriteCSV(w io.Writer, rows []resultset.Row) error {
	columns := resultset.Columns(rows)
	if len(columns) == 0 {
		return nil
	}

	csvWriter := csv.NewWriter(w)

	// Write header row
	if err := csvWriter.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			record[j] = formatCSVValue(row.Value(col))
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// formatCSVValue converts a cell to its CSV text. Null is empty.
func formatCSVValue(v resultset.Value) string {
	return v.Text()
}
