package handlers

import (
	"net/http"

	"github.com/tobilg/caddyserver-soqlstudio-module/suggest"
)

// SuggestHandler serves query template suggestions.
type SuggestHandler struct {
	matcher *suggest.Matcher
}

// NewSuggestHandler creates a new suggestion handler.
func NewSuggestHandler(matcher *suggest.Matcher) *SuggestHandler {
	return &SuggestHandler{matcher: matcher}
}

// ServeHTTP handles GET /suggestions?q=text.
func (h *SuggestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendErrorWithRequest(w, r, "Method not allowed. Use GET for suggestions.", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":       q,
		"suggestions": h.matcher.Match(q),
	})
}
