// Package formats encodes result rows for download.
package formats

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

var (
	// ErrUnsupportedFormat is returned for unknown export formats.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrUnsupportedCompression is returned for unknown compression names.
	ErrUnsupportedCompression = errors.New("unsupported compression")
	// ErrNoColumns is returned by formats that need a schema when the row
	// set is empty.
	ErrNoColumns = errors.New("result set has no columns")
)

// Format is an export encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatXLSXCSV Format = "xlsx-compatible-csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
	FormatArrow   Format = "arrow"
)

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatJSON, FormatXLSXCSV, FormatXLSX, FormatParquet, FormatArrow}

// ParseFormat parses a format name in any letter case. "excel" is accepted
// for the spreadsheet-compatible CSV variant.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "excel" {
		return FormatXLSXCSV, nil
	}
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension returns the file extension without a dot.
func (f Format) Extension() string {
	switch f {
	case FormatXLSXCSV, FormatXLSX:
		return "xlsx"
	case FormatArrow:
		return "arrow"
	default:
		return string(f)
	}
}

// ContentType returns the MIME type of the encoded content. The
// spreadsheet-compatible CSV is still labelled text/csv.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV, FormatXLSXCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatParquet:
		return "application/parquet"
	case FormatArrow:
		return "application/vnd.apache.arrow.stream"
	default:
		return "application/octet-stream"
	}
}

// IsText reports whether the encoded content is text.
func (f Format) IsText() bool {
	switch f {
	case FormatCSV, FormatJSON, FormatXLSXCSV:
		return true
	default:
		return false
	}
}

// Filename returns the download name soql-results-YYYY-MM-DD.<ext>, with
// the compression suffix appended.
func Filename(f Format, c Compression, now time.Time) string {
	return fmt.Sprintf("soql-results-%s.%s%s", now.Format(time.DateOnly), f.Extension(), c.Extension())
}

// Encode writes rows to w in format f. Rows are never modified.
func Encode(w io.Writer, rows []resultset.Row, f Format) error {
	switch f {
	case FormatCSV, FormatXLSXCSV:
		return WriteCSV(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	case FormatParquet:
		return WriteParquet(w, rows)
	case FormatArrow:
		return WriteArrowIPC(w, rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// EncodeString encodes rows in a text format and returns the content.
func EncodeString(rows []resultset.Row, f Format) (string, error) {
	if !f.IsText() {
		return "", fmt.Errorf("%w: %q is not a text format", ErrUnsupportedFormat, string(f))
	}
	var buf bytes.Buffer
	if err := Encode(&buf, rows, f); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EncodeCompressed encodes rows in format f through compression c.
func EncodeCompressed(w io.Writer, rows []resultset.Row, f Format, c Compression) error {
	cw, closeFn, err := c.CreateWriter(w)
	if err != nil {
		return err
	}
	if err := Encode(cw, rows, f); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return fmt.Errorf("failed to finish %s stream: %w", c, err)
	}
	return nil
}
