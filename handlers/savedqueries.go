package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tobilg/caddyserver-soqlstudio-module/savedquery"
)

// SavedQueryHandler handles CRUD operations on saved queries and runs them.
type SavedQueryHandler struct {
	store       *savedquery.Store
	queries     *QueryHandler
	routePrefix string
	logger      *zap.Logger
}

// NewSavedQueryHandler creates a new saved query handler. Saved queries run
// through queries.
func NewSavedQueryHandler(store *savedquery.Store, queries *QueryHandler, routePrefix string, logger *zap.Logger) *SavedQueryHandler {
	return &SavedQueryHandler{
		store:       store,
		queries:     queries,
		routePrefix: routePrefix,
		logger:      logger,
	}
}

// ServeHTTP handles HTTP requests below /saved-queries.
func (h *SavedQueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Extract id and action from path: /soql/saved-queries/{id}/{action}
	id, hasID, action, err := ParseSavedQueryPath(strings.TrimPrefix(r.URL.Path, h.routePrefix))
	if err != nil {
		sendErrorWithRequest(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	// Route based on path shape and HTTP method
	switch {
	case !hasID && r.Method == http.MethodGet:
		h.handleList(w, r)
	case !hasID && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case hasID && action == "" && r.Method == http.MethodGet:
		h.handleGet(w, r, id)
	case hasID && action == "" && r.Method == http.MethodPut:
		h.handleUpdate(w, r, id)
	case hasID && action == "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case hasID && action == "run" && r.Method == http.MethodPost:
		h.handleRun(w, r, id)
	case hasID && action != "" && action != "run":
		NotFound(w, r)
	default:
		sendErrorWithRequest(w, r, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleList returns every saved query in insertion order.
func (h *SavedQueryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	queries := h.store.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  queries,
		"total": len(queries),
	})
}

// handleCreate saves a new query.
func (h *SavedQueryHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestIDFromContext(r.Context())

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	q, err := h.store.Save(r.Context(), req.Name, req.Description, req.SOQL)
	if err != nil {
		h.sendStoreError(w, r, err)
		return
	}

	h.logger.Info("Saved query created", zap.Int64("id", q.ID), zap.String("name", q.Name), zap.String("request_id", requestID))
	writeJSON(w, http.StatusCreated, q)
}

// handleGet returns one saved query.
func (h *SavedQueryHandler) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	q, err := h.store.Get(id)
	if err != nil {
		h.sendStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// handleUpdate replaces name, description and query text.
func (h *SavedQueryHandler) handleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	requestID := GetRequestIDFromContext(r.Context())

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	q, err := h.store.Update(r.Context(), id, req.Name, req.Description, req.SOQL)
	if err != nil {
		h.sendStoreError(w, r, err)
		return
	}

	h.logger.Info("Saved query updated", zap.Int64("id", q.ID), zap.String("request_id", requestID))
	writeJSON(w, http.StatusOK, q)
}

// handleDelete removes a saved query. Deleting a missing id succeeds.
func (h *SavedQueryHandler) handleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	requestID := GetRequestIDFromContext(r.Context())

	h.store.Delete(r.Context(), id)

	h.logger.Info("Saved query deleted", zap.Int64("id", id), zap.String("request_id", requestID))
	w.WriteHeader(http.StatusNoContent)
}

// handleRun executes the query text of a saved query. An optional JSON body
// carries view parameters for the first page.
func (h *SavedQueryHandler) handleRun(w http.ResponseWriter, r *http.Request, id int64) {
	q, err := h.store.Get(id)
	if err != nil {
		h.sendStoreError(w, r, err)
		return
	}

	var req ViewRequest
	if r.Body != nil && r.ContentLength != 0 {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendErrorWithRequest(w, r, "Invalid JSON in request body", http.StatusBadRequest)
			return
		}
	}

	h.queries.run(w, r, q.SOQL, req)
}

func (h *SavedQueryHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (SavedQueryRequest, bool) {
	defer r.Body.Close()

	var req SavedQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorWithRequest(w, r, "Invalid JSON in request body", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// sendStoreError maps store errors onto HTTP statuses.
func (h *SavedQueryHandler) sendStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, savedquery.ErrEmptyName):
		sendErrorWithRequest(w, r, err.Error(), http.StatusBadRequest)
	case errors.Is(err, savedquery.ErrNotFound):
		sendErrorWithRequest(w, r, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("Saved query operation failed", zap.Error(err), zap.String("request_id", GetRequestIDFromContext(r.Context())))
		sendErrorWithRequest(w, r, fmt.Sprintf("Saved query operation failed: %s", err.Error()), http.StatusInternalServerError)
	}
}
