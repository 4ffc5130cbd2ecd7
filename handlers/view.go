package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tobilg/caddyserver-soqlstudio-module/formats"
	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
	"github.com/tobilg/caddyserver-soqlstudio-module/view"
)

// ViewHandler computes pages of result sets.
type ViewHandler struct {
	cache           *ResultCache
	metrics         *Metrics
	defaultPageSize int
	maxPageSize     int
	routePrefix     string
	logger          *zap.Logger
}

// NewViewHandler creates a new view handler.
func NewViewHandler(cache *ResultCache, metrics *Metrics, defaultPageSize, maxPageSize int, routePrefix string, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{
		cache:           cache,
		metrics:         metrics,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		routePrefix:     routePrefix,
		logger:          logger,
	}
}

// ServeHTTP handles the stateless POST /view endpoint. The rows travel in
// the request body together with the view parameters.
func (h *ViewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorWithRequest(w, r, "Method not allowed. Use POST to compute a view.", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req InlineViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorWithRequest(w, r, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}
	if req.Rows == nil {
		req.Rows = []resultset.Row{}
	}
	h.respond(w, r, req.Rows, req.ViewRequest, ViewResponse{}, "")
}

// ServeResult handles GET and POST /results/{id}/view for a cached result.
func (h *ViewHandler) ServeResult(w http.ResponseWriter, r *http.Request, id string) {
	entry, ok := h.cache.Get(id)
	if !ok {
		sendErrorWithRequest(w, r, "Result set '"+id+"' not found or expired", http.StatusNotFound)
		return
	}

	var req ViewRequest
	switch r.Method {
	case http.MethodGet:
		parsed, err := ParseViewQuery(r.URL.Query())
		if err != nil {
			sendErrorWithRequest(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		req = parsed
	case http.MethodPost:
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendErrorWithRequest(w, r, "Invalid JSON in request body", http.StatusBadRequest)
			return
		}
	default:
		sendErrorWithRequest(w, r, "Method not allowed. Use GET or POST to compute a view.", http.StatusMethodNotAllowed)
		return
	}

	h.respond(w, r, entry.Rows, req, entry.response(), h.resultPath(entry.ID))
}

// resultPath returns the GET view URL path of a cached result.
func (h *ViewHandler) resultPath(id string) string {
	return h.routePrefix + "/results/" + id + "/view"
}

// respond computes the page and writes it into base. Navigation links are
// built against linkPath and omitted when linkPath is empty.
func (h *ViewHandler) respond(w http.ResponseWriter, r *http.Request, rows []resultset.Row, req ViewRequest, base ViewResponse, linkPath string) {
	requestID := GetRequestIDFromContext(r.Context())

	resp, err := BuildView(rows, req, h.defaultPageSize, h.maxPageSize, base)
	h.metrics.ObserveView(err)
	if err != nil {
		h.logger.Debug("Rejected view parameters", zap.Error(err), zap.String("request_id", requestID))
		sendErrorWithRequest(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Links && linkPath != "" {
		resp.Links = formats.PageLinks(&formats.LinksConfig{
			Enabled:  true,
			BasePath: linkPath,
			Query:    req.Values(),
		}, resp.Pagination.Page, resp.Pagination.PageSize, resp.Pagination.TotalPages)
	}

	writeJSON(w, http.StatusOK, resp)
}

// BuildView computes the page described by req over rows into resp. A page
// beyond the end is pulled back to the last page; the visible columns are
// applied to the page only.
func BuildView(rows []resultset.Row, req ViewRequest, defaultPageSize, maxPageSize int, resp ViewResponse) (ViewResponse, error) {
	state, err := req.State(rows, defaultPageSize, maxPageSize)
	if err != nil {
		return resp, err
	}
	params, err := state.Params()
	if err != nil {
		return resp, err
	}

	result, err := view.ComputeView(rows, params)
	if err != nil {
		return resp, err
	}
	if result.TotalPages > 0 && state.Page > result.TotalPages {
		state.ClampPage(result.TotalPages)
		result.Page = view.Paginate(result.Filtered, state.Page, state.PageSize)
	}

	resp.Columns = state.Columns.Ordered(resultset.Columns(rows))
	resp.Data = view.Project(result.Page, resp.Columns)
	resp.Pagination = PaginationInfo{
		Page:         state.Page,
		PageSize:     state.PageSize,
		TotalResults: result.TotalResults,
		TotalPages:   result.TotalPages,
	}
	return resp, nil
}

// Values encodes v as query parameters understood by ParseViewQuery.
func (v ViewRequest) Values() url.Values {
	q := make(url.Values)
	if len(v.Conditions) > 0 {
		q.Set("filter", formatFilters(v.Conditions))
	}
	if v.Logic != "" {
		q.Set("logic", v.Logic)
	}
	if v.Search != "" {
		q.Set("search", v.Search)
	}
	if v.Expression != "" {
		q.Set("expr", v.Expression)
	}
	if v.Sort.Key != "" {
		dir := v.Sort.Direction
		if dir == "" {
			dir = view.Asc
		}
		q.Set("sort", v.Sort.Key+":"+string(dir))
	}
	if len(v.Columns) > 0 {
		q.Set("columns", strings.Join(v.Columns, ","))
	}
	if v.Page != 0 {
		q.Set("page", strconv.Itoa(v.Page))
	}
	if v.PageSize != 0 {
		q.Set("page_size", strconv.Itoa(v.PageSize))
	}
	return q
}
