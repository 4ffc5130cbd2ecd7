package formats

import (
	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// createTestRows returns three rows covering every value kind.
func createTestRows() []resultset.Row {
	return []resultset.Row{
		resultset.NewRow(
			resultset.F("id", 1),
			resultset.F("name", "Alice"),
			resultset.F("score", 95.5),
			resultset.F("active", true),
			resultset.F("created_at", "2024-01-15T10:30:00Z"),
		),
		resultset.NewRow(
			resultset.F("id", 2),
			resultset.F("name", "Bob"),
			resultset.F("score", 87.3),
			resultset.F("active", false),
			resultset.F("created_at", "2024-01-16T14:45:00Z"),
		),
		resultset.NewRow(
			resultset.F("id", 3),
			resultset.F("name", "Charlie"),
			resultset.F("score", 92.1),
			resultset.F("active", true),
			resultset.F("created_at", "2024-01-17T09:00:00Z"),
		),
	}
}

// createNullRow returns a row with every column but id set to null.
func createNullRow() resultset.Row {
	return resultset.NewRow(
		resultset.F("id", 4),
		resultset.F("name", nil),
		resultset.F("score", nil),
		resultset.F("active", nil),
		resultset.F("created_at", nil),
	)
}
