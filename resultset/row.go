package resultset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Field is one named cell, used to build rows in column order.
type Field struct {
	Name  string
	Value Value
}

// F builds a Field from a Go value through FromInterface.
func F(name string, v any) Field {
	return Field{Name: name, Value: FromInterface(v)}
}

// Row is an ordered mapping of column name to cell. Rows are treated as
// immutable once built; With returns a modified copy.
type Row struct {
	keys   []string
	values map[string]Value
}

// NewRow builds a row from fields. A repeated name keeps its first position
// and its last value.
func NewRow(fields ...Field) Row {
	r := Row{
		keys:   make([]string, 0, len(fields)),
		values: make(map[string]Value, len(fields)),
	}
	for _, f := range fields {
		r.set(f.Name, f.Value)
	}
	return r
}

func (r *Row) set(name string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, exists := r.values[name]; !exists {
		r.keys = append(r.keys, name)
	}
	r.values[name] = v
}

// Get returns the cell for column and whether the row has that column.
func (r Row) Get(column string) (Value, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Value returns the cell for column, or null when the row lacks it.
func (r Row) Value(column string) Value {
	return r.values[column]
}

// Keys returns the column names in row order.
func (r Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.keys) }

// Fields returns the cells in row order.
func (r Row) Fields() []Field {
	out := make([]Field, len(r.keys))
	for i, k := range r.keys {
		out[i] = Field{Name: k, Value: r.values[k]}
	}
	return out
}

// With returns a copy of r with column set to v. New columns are appended.
func (r Row) With(column string, v Value) Row {
	out := Row{
		keys:   make([]string, len(r.keys), len(r.keys)+1),
		values: make(map[string]Value, len(r.values)+1),
	}
	copy(out.keys, r.keys)
	for k, val := range r.values {
		out.values[k] = val
	}
	out.set(column, v)
	return out
}

// Project returns a row holding only the given columns, in that order.
// Columns the row lacks are skipped.
func (r Row) Project(columns []string) Row {
	out := Row{
		keys:   make([]string, 0, len(columns)),
		values: make(map[string]Value, len(columns)),
	}
	for _, c := range columns {
		if v, ok := r.values[c]; ok {
			out.set(c, v)
		}
	}
	return out
}

// Map returns the row as a plain map of Go values, as used by expression
// evaluation.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		m[k] = r.values[k].Interface()
	}
	return m
}

// MarshalJSON encodes the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping its key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	row, err := decodeRow(dec)
	if err != nil {
		return err
	}
	*r = row
	return nil
}

func decodeRow(dec *json.Decoder) (Row, error) {
	tok, err := dec.Token()
	if err != nil {
		return Row{}, fmt.Errorf("failed to read row: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Row{}, fmt.Errorf("row must be a JSON object, got %v", tok)
	}

	row := Row{values: make(map[string]Value)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Row{}, fmt.Errorf("failed to read column name: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return Row{}, fmt.Errorf("invalid column name %v", tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return Row{}, fmt.Errorf("failed to read column %q: %w", name, err)
		}
		row.set(name, fromJSON(raw))
	}
	if _, err := dec.Token(); err != nil {
		return Row{}, fmt.Errorf("failed to close row: %w", err)
	}
	return row, nil
}

// DecodeRows reads a JSON array of objects.
func DecodeRows(r io.Reader) ([]Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("rows must be a JSON array, got %v", tok)
	}

	rows := []Row{}
	for dec.More() {
		row, err := decodeRow(dec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to close rows: %w", err)
	}
	return rows, nil
}

// Columns returns the display columns of a result set: the keys of its first
// row. An empty set has no columns.
func Columns(rows []Row) []string {
	if len(rows) == 0 {
		return nil
	}
	return rows[0].Keys()
}
