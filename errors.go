package rdf2rest

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned when a requested resource has no triples.
	ErrNotFound = errors.New("rdf2rest: resource not found")

	// ErrConflict is returned for requests that clash with the current state.
	ErrConflict = errors.New("rdf2rest: conflict")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("rdf2rest: invalid configuration")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("rdf2rest: store is closed")

	// ErrUnsupportedFormat is returned for unrecognized serialization formats.
	ErrUnsupportedFormat = errors.New("rdf2rest: unsupported format")

	// ErrParsingFailed is returned when a source file cannot be parsed.
	ErrParsingFailed = errors.New("rdf2rest: parsing failed")

	// ErrLoadInProgress is returned when a load is requested while another
	// is still running.
	ErrLoadInProgress = errors.New("rdf2rest: load already in progress")
)

// APIError is an error with an HTTP status, rendered as a JSON body with a
// "message" field plus any payload fields.
type APIError struct {
	Status  int
	Message string
	Payload map[string]any
	Err     error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

// ToMap returns the response body.
func (e *APIError) ToMap() map[string]any {
	m := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		m[k] = v
	}
	m["message"] = e.Message
	return m
}

// NotFound returns a 404 error wrapping ErrNotFound.
func NotFound(msg string, payload map[string]any) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: msg, Payload: payload, Err: ErrNotFound}
}

// Conflict returns a 409 error wrapping ErrConflict.
func Conflict(msg string, payload map[string]any) *APIError {
	return &APIError{Status: http.StatusConflict, Message: msg, Payload: payload, Err: ErrConflict}
}

// StatusOf maps an error to an HTTP status: the status of an APIError in the
// chain, else 500.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}
