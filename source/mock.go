package source

import (
	"context"
	"strings"
	"time"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// demoAccounts is the demonstration Account data set.
var demoAccounts = []struct {
	id, name, email, industry string
	revenue                   float64
	created                   string
}{
	{"001XX000003DHP0", "Acme Corporation", "contact@acme.com", "Technology", 5000000, "2024-01-15"},
	{"001XX000003DHP1", "Global Industries", "info@global.com", "Manufacturing", 12000000, "2024-02-20"},
	{"001XX000003DHP2", "Tech Solutions Inc", "hello@techsol.com", "Technology", 8500000, "2024-01-10"},
	{"001XX000003DHP3", "Financial Services Co", "contact@finserv.com", "Financial Services", 15000000, "2024-03-05"},
	{"001XX000003DHP4", "Healthcare Plus", "info@healthplus.com", "Healthcare", 7500000, "2024-02-28"},
}

// DemoAccounts returns the demonstration rows, each numbered by rowIndex
// starting at 1.
func DemoAccounts() []resultset.Row {
	rows := make([]resultset.Row, len(demoAccounts))
	for i, a := range demoAccounts {
		rows[i] = resultset.NewRow(
			resultset.F("Id", a.id),
			resultset.F("Name", a.name),
			resultset.F("Email", a.email),
			resultset.F("Industry", a.industry),
			resultset.F("AnnualRevenue", a.revenue),
			resultset.F("CreatedDate", a.created),
			resultset.F("rowIndex", i+1),
		)
	}
	return rows
}

// Mock answers every query with DemoAccounts after Latency.
type Mock struct {
	Latency time.Duration
}

// Execute waits for Latency, or until ctx is done, then returns the demo
// rows.
func (m Mock) Execute(ctx context.Context, soql string) ([]resultset.Row, error) {
	if strings.TrimSpace(soql) == "" {
		return nil, ErrEmptyQuery
	}

	if m.Latency > 0 {
		timer := time.NewTimer(m.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return DemoAccounts(), nil
}
