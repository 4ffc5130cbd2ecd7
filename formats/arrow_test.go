package formats

import (
	"bytes"
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

func TestWriteArrowIPC_BasicOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteArrowIPC(&buf, createTestRows()); err != nil {
		t.Fatalf("WriteArrowIPC failed: %v", err)
	}

	reader, err := ipc.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Failed to create Arrow IPC reader: %v", err)
	}
	defer reader.Release()

	schema := reader.Schema()
	if schema.NumFields() != 5 {
		t.Errorf("Expected 5 fields in schema, got %d", schema.NumFields())
	}

	totalRows := int64(0)
	for reader.Next() {
		totalRows += reader.Record().NumRows()
	}
	if totalRows != 3 {
		t.Errorf("Expected 3 rows, got %d", totalRows)
	}
}

func TestWriteArrowIPC_InferredTypes(t *testing.T) {
	rows := append(createTestRows(), createNullRow())

	var buf bytes.Buffer
	if err := WriteArrowIPC(&buf, rows); err != nil {
		t.Fatalf("WriteArrowIPC failed: %v", err)
	}

	reader, err := ipc.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Failed to create Arrow IPC reader: %v", err)
	}
	defer reader.Release()

	expected := map[string]arrow.Type{
		"id":         arrow.INT64,
		"name":       arrow.STRING,
		"score":      arrow.FLOAT64,
		"active":     arrow.BOOL,
		"created_at": arrow.STRING,
	}
	for _, field := range reader.Schema().Fields() {
		if want := expected[field.Name]; field.Type.ID() != want {
			t.Errorf("Column %s: expected %s, got %s", field.Name, want, field.Type.ID())
		}
	}

	if !reader.Next() {
		t.Fatal("Expected a record batch")
	}
	record := reader.Record()
	names, ok := record.Column(1).(*array.String)
	if !ok {
		t.Fatalf("Expected string column, got %T", record.Column(1))
	}
	if names.Value(0) != "Alice" {
		t.Errorf("Expected 'Alice', got '%s'", names.Value(0))
	}
	if !names.IsNull(3) {
		t.Error("Expected null name in last row")
	}
}

func TestWriteArrowIPC_MixedKindsBecomeStrings(t *testing.T) {
	rows := []resultset.Row{
		resultset.NewRow(resultset.F("v", 1)),
		resultset.NewRow(resultset.F("v", "two")),
	}
	schema := inferSchema(rows)
	if schema.Field(0).Type.ID() != arrow.STRING {
		t.Errorf("Expected string for mixed column, got %s", schema.Field(0).Type)
	}
}

func TestWriteArrowIPC_EmptyResult(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteArrowIPC(&buf, nil); err != nil {
		t.Fatalf("WriteArrowIPC failed: %v", err)
	}

	reader, err := ipc.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Failed to create Arrow IPC reader: %v", err)
	}
	defer reader.Release()

	if reader.Schema().NumFields() != 0 {
		t.Errorf("Expected empty schema, got %d fields", reader.Schema().NumFields())
	}
	if reader.Next() {
		t.Error("Expected no record batches")
	}
}
