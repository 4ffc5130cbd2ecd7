// Package suggest matches typed query text against SOQL templates for
// autocomplete.
package suggest

import "strings"

// DefaultLimit is how many suggestions a Matcher returns when Limit is 0.
const DefaultLimit = 8

// DefaultTemplates are the built-in SOQL templates.
var DefaultTemplates = []string{
	"SELECT Id, Name FROM Account",
	"SELECT Id, Name, Email FROM Contact",
	"SELECT Id, Subject, Status FROM Case",
	"SELECT Id, Name, StageName, Amount FROM Opportunity",
	"SELECT Id, FirstName, LastName, Email FROM Lead",
	"SELECT Id, Name FROM User",
	"SELECT COUNT() FROM Account",
	"SELECT Id, Name FROM Account WHERE CreatedDate = TODAY",
	"SELECT Id, Name FROM Account ORDER BY Name ASC",
	"SELECT Id, Name FROM Account LIMIT 10",
}

// Suggest returns the templates containing text, ignoring case, in their
// original order.
func Suggest(text string, templates []string) []string {
	needle := strings.ToLower(text)
	out := make([]string, 0, len(templates))
	for _, tpl := range templates {
		if strings.Contains(strings.ToLower(tpl), needle) {
			out = append(out, tpl)
		}
	}
	return out
}

// Matcher is a template list with a display limit.
type Matcher struct {
	Templates []string
	Limit     int
}

// NewMatcher returns a matcher over DefaultTemplates. A limit of 0 or less
// uses DefaultLimit.
func NewMatcher(limit int) *Matcher {
	return &Matcher{Templates: DefaultTemplates, Limit: limit}
}

// Match returns at most Limit suggestions for text.
func (m *Matcher) Match(text string) []string {
	limit := m.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := Suggest(text, m.Templates)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
