// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/newsletter/newsletter/internal/handler/dto"
)

// Result is the outcome of a handler: a status and an optional body.
// A nil Body writes no body; a string Body is written as plain text and
// anything else is encoded as JSON.
type Result struct {
	Status int
	Body   any
}

// Empty returns a Result with no body.
func Empty(status int) Result {
	return Result{Status: status}
}

// errorResult returns a Result carrying an ErrorResponse.
func errorResult(status int, code, message string) Result {
	return Result{Status: status, Body: dto.ErrorResponse{Error: message, Code: code}}
}

// Write sends the result. It must be called once per request.
func (res Result) Write(w http.ResponseWriter) {
	switch body := res.Body.(type) {
	case nil:
		w.WriteHeader(res.Status)
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(res.Status)
		_, _ = w.Write([]byte(body))
	default:
		writeJSON(w, res.Status, body)
	}
}

// Handler serves the routes that need no dependencies.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Hello is the root greeting.
// GET /
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	Result{Status: http.StatusOK, Body: "Hello, World!"}.Write(w)
}

// NotFound handles unmatched routes, including known paths requested with
// an unsupported method.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	errorResult(http.StatusNotFound, "NOT_FOUND", "resource not found").Write(w)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
