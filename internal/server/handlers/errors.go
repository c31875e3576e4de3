package handlers

import (
	"encoding/json"
	"net/http"
)

// RequestIDHeader carries the request correlation id.
const RequestIDHeader = "X-Request-ID"

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one error.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// RespondWithError writes a JSON error body with the given status.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	body := ErrorResponse{Error: ErrorBody{
		Code:    code,
		Message: message,
		Details: details,
	}}
	if r != nil {
		body.Error.RequestID = w.Header().Get(RequestIDHeader)
		if body.Error.RequestID == "" {
			body.Error.RequestID = r.Header.Get(RequestIDHeader)
		}
	}
	writeJSON(w, status, body)
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found: "+r.URL.Path, nil)
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed: "+r.Method, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
