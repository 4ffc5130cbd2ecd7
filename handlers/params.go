package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tobilg/caddyserver-soqlstudio-module/formats"
	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
	"github.com/tobilg/caddyserver-soqlstudio-module/view"
)

// ViewRequest carries view parameters, decoded either from a JSON body or
// from query parameters by ParseViewQuery.
type ViewRequest struct {
	Search     string           `json:"search,omitempty"`
	Logic      string           `json:"logic,omitempty"`
	Conditions []view.Condition `json:"conditions,omitempty"`
	Expression string           `json:"expr,omitempty"`
	Sort       view.SortSpec    `json:"sort"`
	Page       int              `json:"page,omitempty"`
	PageSize   int              `json:"page_size,omitempty"`
	Columns    []string         `json:"columns,omitempty"`
	Links      bool             `json:"links,omitempty"`
}

// ExportRequest adds the download encoding to a ViewRequest. Pagination and
// column selection are ignored for exports.
type ExportRequest struct {
	ViewRequest
	Format   string `json:"format,omitempty"`
	Compress string `json:"compress,omitempty"`
}

// State builds the view state for rows. A zero Page or PageSize falls back
// to the first page and defaultPageSize; PageSize is capped at maxPageSize
// when maxPageSize is positive.
func (v ViewRequest) State(rows []resultset.Row, defaultPageSize, maxPageSize int) (*view.State, error) {
	logic, err := view.ParseLogic(v.Logic)
	if err != nil {
		return nil, err
	}
	direction, err := view.ParseDirection(string(v.Sort.Direction))
	if err != nil {
		return nil, err
	}

	s := view.NewState(rows)
	s.SetSearch(v.Search)
	s.SetLogic(logic)
	s.Filter.Conditions = v.Conditions
	s.Expression = v.Expression
	if v.Sort.Key != "" {
		s.Sort = view.SortSpec{Key: v.Sort.Key, Direction: direction}
	}

	pageSize := defaultPageSize
	if v.PageSize != 0 {
		pageSize = v.PageSize
	}
	if maxPageSize > 0 && pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if err := s.SetPageSize(pageSize); err != nil {
		return nil, err
	}
	if v.Page != 0 {
		s.Page = v.Page
	}

	if len(v.Columns) > 0 {
		s.Columns = view.NewVisibleColumns(v.Columns)
	}
	return s, nil
}

// ParseViewQuery parses view parameters from query values.
//
//	filter=column:operator:value,column2:operator2:value2
//	logic=AND|OR
//	search=term
//	sort=column:direction
//	page=2&page_size=25
//	columns=Id,Name
//	expr=row.Industry == "Technology"
//	links=true
func ParseViewQuery(q url.Values) (ViewRequest, error) {
	var v ViewRequest

	conditions, err := ParseFilters(q.Get("filter"))
	if err != nil {
		return v, err
	}
	v.Conditions = conditions

	sort, err := ParseSort(q.Get("sort"))
	if err != nil {
		return v, err
	}
	v.Sort = sort

	if v.Page, err = parseIntParam(q, "page"); err != nil {
		return v, err
	}
	if v.PageSize, err = parseIntParam(q, "page_size"); err != nil {
		return v, err
	}

	v.Logic = q.Get("logic")
	v.Search = q.Get("search")
	v.Expression = q.Get("expr")
	v.Links = parseBool(q.Get("links"))
	if cols := q.Get("columns"); cols != "" {
		for _, c := range strings.Split(cols, ",") {
			if c = strings.TrimSpace(c); c != "" {
				v.Columns = append(v.Columns, c)
			}
		}
	}
	return v, nil
}

// ParseExportQuery parses an ExportRequest from query values.
func ParseExportQuery(q url.Values) (ExportRequest, error) {
	v, err := ParseViewQuery(q)
	if err != nil {
		return ExportRequest{}, err
	}
	return ExportRequest{
		ViewRequest: v,
		Format:      q.Get("format"),
		Compress:    q.Get("compress"),
	}, nil
}

// ParseFilters parses filter conditions.
// Format: column:operator:value,column2:operator2:value2
// Example: Industry:equals:technology,Name:contains:corp
// A backslash escapes the next character, so "Name:contains:acme\, inc"
// is one condition.
func ParseFilters(filterStr string) ([]view.Condition, error) {
	if filterStr == "" {
		return nil, nil
	}

	filterParts := splitFilters(filterStr)
	conditions := make([]view.Condition, 0, len(filterParts))

	for i, part := range filterParts {
		components := strings.SplitN(part, ":", 3)
		if len(components) != 3 {
			return nil, fmt.Errorf("invalid filter format: %s (expected column:operator:value)", part)
		}

		column := strings.TrimSpace(components[0])
		if column == "" {
			return nil, fmt.Errorf("invalid filter format: %s (column cannot be empty)", part)
		}
		operator, ok := view.ParseOperator(strings.TrimSpace(components[1]))
		if !ok {
			return nil, fmt.Errorf("invalid operator: %s (supported: contains, equals, notEquals, startsWith, endsWith)", components[1])
		}

		conditions = append(conditions, view.Condition{
			ID:       "f" + strconv.Itoa(i+1),
			Column:   column,
			Operator: operator,
			Value:    components[2],
		})
	}

	return conditions, nil
}

var filterEscaper = strings.NewReplacer(`\`, `\\`, `,`, `\,`)

// formatFilters is the inverse of ParseFilters.
func formatFilters(conditions []view.Condition) string {
	parts := make([]string, len(conditions))
	for i, c := range conditions {
		op, _ := view.ParseOperator(string(c.Operator))
		parts[i] = filterEscaper.Replace(c.Column) + ":" + string(op) + ":" + filterEscaper.Replace(c.Value)
	}
	return strings.Join(parts, ",")
}

// splitFilters splits s on unescaped commas and drops the escapes.
func splitFilters(s string) []string {
	var parts []string
	var b strings.Builder
	escaped := false
	for _, c := range s {
		switch {
		case escaped:
			b.WriteRune(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == ',':
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(c)
		}
	}
	if escaped {
		b.WriteRune('\\')
	}
	return append(parts, b.String())
}

// ParseSort parses the sort parameter.
// Format: column:direction, direction defaulting to asc.
// Example: AnnualRevenue:desc
func ParseSort(sortStr string) (view.SortSpec, error) {
	if sortStr == "" {
		return view.SortSpec{}, nil
	}

	components := strings.SplitN(sortStr, ":", 2)
	column := strings.TrimSpace(components[0])
	if column == "" {
		return view.SortSpec{}, fmt.Errorf("invalid sort: %s (column cannot be empty)", sortStr)
	}

	direction := view.Asc
	if len(components) == 2 {
		dir, err := view.ParseDirection(strings.ToLower(strings.TrimSpace(components[1])))
		if err != nil {
			return view.SortSpec{}, fmt.Errorf("invalid sort direction: %s (must be 'asc' or 'desc')", components[1])
		}
		direction = dir
	}

	return view.SortSpec{Key: column, Direction: direction}, nil
}

// GetAcceptFormat returns the preferred export format based on Accept header.
func GetAcceptFormat(r *http.Request) formats.Format {
	accept := r.Header.Get("Accept")

	// Check for specific formats
	if strings.Contains(accept, "text/csv") {
		return formats.FormatCSV
	}
	if strings.Contains(accept, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet") {
		return formats.FormatXLSX
	}
	if strings.Contains(accept, "application/parquet") || strings.Contains(accept, "application/vnd.apache.parquet") {
		return formats.FormatParquet
	}
	if strings.Contains(accept, "application/vnd.apache.arrow") {
		return formats.FormatArrow
	}

	// Default to JSON
	return formats.FormatJSON
}

// ResolveEncoding picks the export format and compression of req. An empty
// format falls back to the Accept header of r.
func ResolveEncoding(r *http.Request, req ExportRequest) (formats.Format, formats.Compression, error) {
	format := GetAcceptFormat(r)
	if req.Format != "" {
		f, err := formats.ParseFormat(req.Format)
		if err != nil {
			return "", "", err
		}
		format = f
	}

	compression, err := formats.ParseCompression(req.Compress)
	if err != nil {
		return "", "", err
	}
	return format, compression, nil
}

// ParseResultPath splits "/results/{id}/{action}" into its id and action.
func ParseResultPath(path string) (id, action string, err error) {
	rest, ok := strings.CutPrefix(path, "/results/")
	if !ok {
		return "", "", fmt.Errorf("invalid path: must start with /results/")
	}

	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid path: expected /results/{id}/view or /results/{id}/export")
	}
	return parts[0], parts[1], nil
}

// ParseSavedQueryPath splits "/saved-queries[/{id}[/run]]". hasID is false
// for the collection path.
func ParseSavedQueryPath(path string) (id int64, hasID bool, action string, err error) {
	rest, ok := strings.CutPrefix(path, "/saved-queries")
	if !ok {
		return 0, false, "", fmt.Errorf("invalid path: must start with /saved-queries")
	}

	rest = strings.Trim(rest, "/")
	if rest == "" {
		return 0, false, "", nil
	}

	parts := strings.Split(rest, "/")
	if len(parts) > 2 {
		return 0, false, "", fmt.Errorf("invalid path: %s", path)
	}

	id, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false, "", fmt.Errorf("invalid saved query id: %s", parts[0])
	}
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, true, action, nil
}

func parseIntParam(q url.Values, name string) (int, error) {
	s := q.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", name, s)
	}
	return n, nil
}

func parseBool(s string) bool {
	return s == "true" || s == "1"
}
