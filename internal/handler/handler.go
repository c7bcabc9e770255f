// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/recetas/recetas/internal/usecase"
)

// Handler serves the fallback routes.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode failure only means the
	// client went away.
	_ = json.NewEncoder(w).Encode(data)
}

// writeResult renders a use-case result, picking okStatus on success and
// failStatus on failure.
func writeResult[T any](w http.ResponseWriter, result usecase.Result[T], okStatus, failStatus int) {
	status := okStatus
	if !result.Ok() {
		status = failStatus
	}
	writeJSON(w, status, result)
}

// writeFailure writes {"success":false,"error":message}.
func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, usecase.Fail[usecase.Empty](errors.New(message)))
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

// isBodyTooLarge reports whether err came from the body size limit.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// handleDecodeError maps a body decoding error to a response.
func handleDecodeError(w http.ResponseWriter, err error) {
	switch {
	case isBodyTooLarge(err):
		writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		writeFailure(w, http.StatusBadRequest, "request body is empty")
	default:
		writeFailure(w, http.StatusBadRequest, "invalid request body")
	}
}
