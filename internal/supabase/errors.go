package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for client operations.
var (
	ErrMissingURL     = errors.New("supabase: project URL is required")
	ErrMissingKey     = errors.New("supabase: anonymous key is required")
	ErrInvalidURL     = errors.New("supabase: invalid project URL")
	ErrNoSession      = errors.New("auth session missing")
	ErrNoUserReturned = errors.New("could not create user")
)

// APIError is an error payload returned by the identity or database API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

// Error returns the service message, which is what callers surface to users.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// IsNotFound reports whether the error is a missing-row or missing-resource error.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	// PGRST116: single-object request matched no (or several) rows.
	return apiErr.Status == http.StatusNotFound || apiErr.Code == "PGRST116"
}

// IsUnauthorized reports whether the service rejected the credentials.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// errorPayload covers the shapes GoTrue and PostgREST use for errors.
type errorPayload struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Details          string `json:"details"`
	Hint             string `json:"hint"`
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var p errorPayload
	if err := json.Unmarshal(body, &p); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	switch {
	case p.Msg != "":
		apiErr.Message = p.Msg
	case p.ErrorDescription != "":
		apiErr.Message = p.ErrorDescription
	case p.Message != "":
		apiErr.Message = p.Message
	case p.Error != "":
		apiErr.Message = p.Error
	default:
		apiErr.Message = http.StatusText(status)
	}

	switch code := p.Code.(type) {
	case string:
		apiErr.Code = code
	case float64:
		apiErr.Code = fmt.Sprintf("%d", int(code))
	}
	if p.ErrorCode != "" {
		apiErr.Code = p.ErrorCode
	}
	apiErr.Details = p.Details
	apiErr.Hint = p.Hint

	return apiErr
}
