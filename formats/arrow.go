package formats

import (
	"fmt"
	"io"
	"math"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// arrowBatchSize is the number of rows per IPC record batch.
const arrowBatchSize = 1024

// WriteArrowIPC writes rows as an Apache Arrow IPC stream.
func WriteArrowIPC(w io.Writer, rows []resultset.Row) error {
	schema := inferSchema(rows)
	pool := memory.NewGoAllocator()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))

	for start := 0; start < len(rows); start += arrowBatchSize {
		end := min(start+arrowBatchSize, len(rows))

		record, err := buildRecordBatch(rows[start:end], schema, pool)
		if err != nil {
			writer.Close()
			return fmt.Errorf("failed to build record batch: %w", err)
		}

		if err := writer.Write(record); err != nil {
			record.Release()
			writer.Close()
			return fmt.Errorf("failed to write record batch: %w", err)
		}
		record.Release()
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close arrow stream: %w", err)
	}
	return nil
}

// inferSchema builds an Arrow schema from the first row's columns. A column
// whose non-null cells are all booleans becomes Boolean; all integral
// numbers, Int64; all numbers, Float64; anything else, String.
func inferSchema(rows []resultset.Row) *arrow.Schema {
	columns := resultset.Columns(rows)
	fields := make([]arrow.Field, len(columns))
	for i, col := range columns {
		fields[i] = arrow.Field{
			Name:     col,
			Type:     inferColumnType(rows, col),
			Nullable: true,
		}
	}
	return arrow.NewSchema(fields, nil)
}

func inferColumnType(rows []resultset.Row, column string) arrow.DataType {
	var kind resultset.Kind
	integral := true

	for _, row := range rows {
		v := row.Value(column)
		if v.IsNull() {
			continue
		}
		if kind == resultset.KindNull {
			kind = v.Kind()
		} else if kind != v.Kind() {
			return arrow.BinaryTypes.String
		}
		if n, ok := v.Num(); ok && !isInt64(n) {
			integral = false
		}
	}

	switch kind {
	case resultset.KindBool:
		return arrow.FixedWidthTypes.Boolean
	case resultset.KindNumber:
		if integral {
			return arrow.PrimitiveTypes.Int64
		}
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

func isInt64(n float64) bool {
	return n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64
}

// buildRecordBatch builds a single Arrow record batch from rows.
func buildRecordBatch(rows []resultset.Row, schema *arrow.Schema, pool memory.Allocator) (arrow.Record, error) {
	builders := make([]array.Builder, len(schema.Fields()))
	for i, field := range schema.Fields() {
		builders[i] = array.NewBuilder(pool, field.Type)
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for _, row := range rows {
		for i, field := range schema.Fields() {
			if err := appendValueToBuilder(builders[i], row.Value(field.Name)); err != nil {
				return nil, fmt.Errorf("failed to append value to builder at column %q: %w", field.Name, err)
			}
		}
	}

	arrays := make([]arrow.Array, len(builders))
	for i, builder := range builders {
		arrays[i] = builder.NewArray()
	}

	record := array.NewRecord(schema, arrays, int64(len(rows)))

	// Release arrays (record holds references)
	for _, arr := range arrays {
		arr.Release()
	}

	return record, nil
}

// appendValueToBuilder appends a cell to the builder chosen by inferSchema.
func appendValueToBuilder(builder array.Builder, v resultset.Value) error {
	if v.IsNull() {
		builder.AppendNull()
		return nil
	}

	switch b := builder.(type) {
	case *array.BooleanBuilder:
		val, ok := v.Bool()
		if !ok {
			return fmt.Errorf("expected bool, got %s", v.Kind())
		}
		b.Append(val)
	case *array.Int64Builder:
		val, ok := v.Num()
		if !ok {
			return fmt.Errorf("expected number, got %s", v.Kind())
		}
		b.Append(int64(val))
	case *array.Float64Builder:
		val, ok := v.Num()
		if !ok {
			return fmt.Errorf("expected number, got %s", v.Kind())
		}
		b.Append(val)
	case *array.StringBuilder:
		b.Append(v.Text())
	default:
		return fmt.Errorf("unsupported builder type: %T", builder)
	}

	return nil
}
