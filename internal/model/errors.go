package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
)

// TransportError is returned when a request could not be completed after
// exhausting the retry budget.
type TransportError struct {
	Method   string
	URL      string
	Attempts int
	// StatusCode is the last HTTP status received, 0 when the connection failed.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed after %d attempts: last status %d", e.Method, e.URL, e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is returned when the server answers with an unexpected status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Message)
}

// DecodeError is returned when a server response can't be decoded into a domain type.
type DecodeError struct {
	// Kind is the decoded resource (e.g. project, export status).
	Kind  string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("could not decode %s: field %q: %v", e.Kind, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("could not decode %s: missing required field %q", e.Kind, e.Field)
	default:
		return fmt.Sprintf("could not decode %s: %v", e.Kind, e.Err)
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EnumerationError is returned when project discovery can't determine its end.
type EnumerationError struct {
	Page   int
	Reason string
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("project enumeration failed on page %d: %s", e.Page, e.Reason)
}

// WaitLimitError is returned when the completion wait exceeds the configured limits
// with exports still pending.
type WaitLimitError struct {
	Sweeps int
	Waited time.Duration
	// Pending are the IDs of the projects that didn't finish.
	Pending []int64
}

func (e *WaitLimitError) Error() string {
	return fmt.Sprintf("gave up waiting for %d exports after %d sweeps (%s waited)", len(e.Pending), e.Sweeps, e.Waited)
}
