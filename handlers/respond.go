package handlers

import (
	"encoding/json"
	"net/http"
)

// sendErrorWithRequest sends an error response.
// The request ID is available in the X-Request-ID response header.
func sendErrorWithRequest(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   http.StatusText(statusCode),
		"message": message,
		"code":    statusCode,
	})
}

// writeJSON sends v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// NotFound sends the envelope for an unknown studio endpoint.
func NotFound(w http.ResponseWriter, r *http.Request) {
	sendErrorWithRequest(w, r, "Unknown SOQL studio endpoint", http.StatusNotFound)
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendErrorWithRequest(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
