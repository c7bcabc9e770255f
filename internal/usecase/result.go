// Package usecase holds the auth and recipe workflows shared by the HTTP API
// and the CLI.
package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
)

// unknownError is reported when a failure carries no message.
const unknownError = "unknown error"

// Empty is the payload of results that only report success.
type Empty = struct{}

// Result is either a success carrying a value or a failure carrying a
// message for the user. Operations that return a Result never return a Go
// error alongside it.
type Result[T any] struct {
	ok    bool
	value T
	err   string
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{ok: true, value: v}
}

// Fail wraps a failure. The message is the error text as reported by the
// underlying service.
func Fail[T any](err error) Result[T] {
	msg := unknownError
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Result[T]{err: msg}
}

// Failf wraps a failure with a formatted message.
func Failf[T any](format string, args ...any) Result[T] {
	return Fail[T](fmt.Errorf(format, args...))
}

// Ok reports whether the operation succeeded.
func (r Result[T]) Ok() bool {
	return r.ok
}

// Value returns the payload. It is the zero value on failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure message, or "" on success.
func (r Result[T]) Err() string {
	return r.err
}

// AsError converts a failure back to a Go error, or nil on success.
func (r Result[T]) AsError() error {
	if r.ok {
		return nil
	}
	return errors.New(r.err)
}

type resultJSON[T any] struct {
	Success bool    `json:"success"`
	Data    *T      `json:"data,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// MarshalJSON encodes {"success":true,"data":...} or {"success":false,"error":"..."}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.ok {
		return json.Marshal(resultJSON[T]{Success: true, Data: &r.value})
	}
	msg := r.err
	return json.Marshal(resultJSON[T]{Success: false, Error: &msg})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var raw resultJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Result[T]{ok: raw.Success}
	if raw.Data != nil {
		r.value = *raw.Data
	}
	if !raw.Success {
		r.err = unknownError
		if raw.Error != nil && *raw.Error != "" {
			r.err = *raw.Error
		}
	}
	return nil
}
