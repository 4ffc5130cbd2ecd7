package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tobilg/caddyserver-soqlstudio-module/formats"
	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
	"github.com/tobilg/caddyserver-soqlstudio-module/view"
)

// ExportHandler encodes filtered result sets for download.
type ExportHandler struct {
	cache   *ResultCache
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportHandler creates a new export handler.
func NewExportHandler(cache *ResultCache, metrics *Metrics, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// ServeHTTP handles the stateless POST /export endpoint.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorWithRequest(w, r, "Method not allowed. Use POST to export rows.", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req InlineExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorWithRequest(w, r, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}

	h.export(w, r, req.Rows, req.ExportRequest)
}

// ServeResult handles GET and POST /results/{id}/export for a cached result.
func (h *ExportHandler) ServeResult(w http.ResponseWriter, r *http.Request, id string) {
	entry, ok := h.cache.Get(id)
	if !ok {
		sendErrorWithRequest(w, r, "Result set '"+id+"' not found or expired", http.StatusNotFound)
		return
	}

	var req ExportRequest
	switch r.Method {
	case http.MethodGet:
		parsed, err := ParseExportQuery(r.URL.Query())
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
		sendErrorWithRequest(w, r, "Method not allowed. Use GET or POST to export results.", http.StatusMethodNotAllowed)
		return
	}

	h.export(w, r, entry.Rows, req)
}

// export filters, searches and sorts rows, then encodes the whole set.
func (h *ExportHandler) export(w http.ResponseWriter, r *http.Request, rows []resultset.Row, req ExportRequest) {
	requestID := GetRequestIDFromContext(r.Context())

	format, compression, err := ResolveEncoding(r, req)
	if err != nil {
		sendErrorWithRequest(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	filtered, err := FilteredRows(rows, req.ViewRequest)
	if err != nil {
		sendErrorWithRequest(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	// Encode into memory first so encoding errors can still produce an
	// error envelope.
	var buf bytes.Buffer
	if err := formats.EncodeCompressed(&buf, filtered, format, compression); err != nil {
		h.logger.Error("Failed to encode export",
			zap.Error(err),
			zap.String("format", string(format)),
			zap.String("request_id", requestID),
		)
		sendErrorWithRequest(w, r, fmt.Sprintf("Failed to encode export: %s", err.Error()), http.StatusUnprocessableEntity)
		return
	}
	h.metrics.ObserveExport(string(format))

	contentType := format.ContentType()
	if compression != formats.CompressionNone {
		contentType = compression.ContentType()
	}
	filename := formats.Filename(format, compression, h.now())

	h.logger.Info("Exported results",
		zap.String("format", string(format)),
		zap.String("compression", string(compression)),
		zap.Int("rows", len(filtered)),
		zap.String("request_id", requestID),
	)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// FilteredRows runs the filter, search and sort stages of req over the whole
// set, as an export does.
func FilteredRows(rows []resultset.Row, req ViewRequest) ([]resultset.Row, error) {
	// Exports ignore pagination, so any valid page size will do.
	req.Page, req.PageSize = 1, 1
	state, err := req.State(rows, 1, 0)
	if err != nil {
		return nil, err
	}
	params, err := state.Params()
	if err != nil {
		return nil, err
	}
	result, err := view.ComputeView(rows, params)
	if err != nil {
		return nil, err
	}
	return result.Filtered, nil
}
