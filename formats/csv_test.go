package formats

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

func TestWriteCSV_BasicOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, createTestRows()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	expected := "id,name,score,active,created_at\n" +
		"1,Alice,95.5,true,2024-01-15T10:30:00Z\n" +
		"2,Bob,87.3,false,2024-01-16T14:45:00Z\n" +
		"3,Charlie,92.1,true,2024-01-17T09:00:00Z\n"
	if buf.String() != expected {
		t.Errorf("Expected CSV:\n%s\ngot:\n%s", expected, buf.String())
	}
}

func TestWriteCSV_EmptyResult(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected empty output, got %q", buf.String())
	}
}

func TestWriteCSV_NullValues(t *testing.T) {
	var buf bytes.Buffer
	rows := append(createTestRows(), createNullRow())
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if last := lines[len(lines)-1]; last != "4,,,," {
		t.Errorf("Expected null row '4,,,,', got '%s'", last)
	}
}

func TestWriteCSV_QuotesSpecialCharacters(t *testing.T) {
	rows := []resultset.Row{
		resultset.NewRow(
			resultset.F("Name", "Acme, Inc."),
			resultset.F("Note", "said \"hi\"\nthen left"),
		),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[1][0] != "Acme, Inc." {
		t.Errorf("Expected 'Acme, Inc.', got '%s'", records[1][0])
	}
	if records[1][1] != "said \"hi\"\nthen left" {
		t.Errorf("Expected embedded quotes and newline to survive, got %q", records[1][1])
	}
}

func TestWriteCSV_UsesFirstRowColumnOrder(t *testing.T) {
	rows := []resultset.Row{
		resultset.NewRow(resultset.F("b", 1), resultset.F("a", 2)),
		resultset.NewRow(resultset.F("a", 4), resultset.F("b", 3), resultset.F("extra", "x")),
		resultset.NewRow(resultset.F("a", 5)),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	expected := "b,a\n1,2\n3,4\n,5\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}

func TestFormatCSVValue(t *testing.T) {
	tests := []struct {
		name     string
		input    resultset.Value
		expected string
	}{
		{"nil", resultset.Null(), ""},
		{"string", resultset.NewString("hello"), "hello"},
		{"int", resultset.NewNumber(42), "42"},
		{"float", resultset.NewNumber(3.14), "3.14"},
		{"large", resultset.NewNumber(15000000), "15000000"},
		{"bool true", resultset.NewBool(true), "true"},
		{"bool false", resultset.NewBool(false), "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCSVValue(tt.input); got != tt.expected {
				t.Errorf("formatCSVValue(%v) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}
