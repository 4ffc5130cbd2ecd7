package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tobilg/caddyserver-soqlstudio-module/source"
)

// QueryHandler executes SOQL through the configured source and caches the
// result set for later views and exports.
type QueryHandler struct {
	src          source.Source
	cache        *ResultCache
	views        *ViewHandler
	metrics      *Metrics
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewQueryHandler creates a new query handler. The first page of every
// result is computed with views.
func NewQueryHandler(src source.Source, cache *ResultCache, views *ViewHandler, metrics *Metrics, queryTimeout time.Duration, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		src:          src,
		cache:        cache,
		views:        views,
		metrics:      metrics,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// ServeHTTP handles POST /query.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorWithRequest(w, r, "Method not allowed. Use POST to execute queries.", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorWithRequest(w, r, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SOQL) == "" {
		sendErrorWithRequest(w, r, "SOQL query is required", http.StatusBadRequest)
		return
	}

	h.run(w, r, req.SOQL, req.ViewRequest)
}

// run executes soql, caches the rows and responds with the page described
// by req.
func (h *QueryHandler) run(w http.ResponseWriter, r *http.Request, soql string, req ViewRequest) {
	requestID := GetRequestIDFromContext(r.Context())

	// Query text may carry customer data; it is logged at info level only.
	h.logger.Info("Executing query",
		zap.String("soql", soql),
		zap.String("request_id", requestID),
	)

	ctx := r.Context()
	if h.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queryTimeout)
		defer cancel()
	}

	startTime := time.Now()
	rows, err := h.src.Execute(ctx, soql)
	executionTime := time.Since(startTime)
	h.metrics.ObserveQuery(executionTime, len(rows), err)

	if err != nil {
		status := queryErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Failed to execute query", zap.Error(err), zap.String("soql", soql), zap.String("request_id", requestID))
		}
		sendErrorWithRequest(w, r, fmt.Sprintf("Query execution failed: %s", err.Error()), status)
		return
	}

	entry := h.cache.Add(soql, rows)
	elapsed := executionTime.Milliseconds()

	base := entry.response()
	base.ExecutionTimeMs = &elapsed
	h.views.respond(w, r, entry.Rows, req, base, h.views.resultPath(entry.ID))
}

// queryErrorStatus maps a source error onto an HTTP status.
func queryErrorStatus(err error) int {
	switch {
	case errors.Is(err, source.ErrEmptyQuery), errors.Is(err, source.ErrNotReadOnly):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
