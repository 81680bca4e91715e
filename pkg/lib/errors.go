package lib

import (
	"errors"

	"github.com/slok/glexport/internal/model"
)

var (
	// ErrNotFound is returned when a resource (e.g. a run) does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists (e.g. an
	// archive on the same project directory).
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned on invalid input (e.g. missing access token).
	ErrNotValid = errors.New("not valid")
)

// WaitLimitError is returned by [Client.Export] when the completion wait gives
// up with exports still pending. The run is recorded as failed.
type WaitLimitError = model.WaitLimitError

// TransportError is returned when a GitLab request fails after all the retries.
type TransportError = model.TransportError

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool { return target == e.sentinel }

func (e *mappedError) Unwrap() error { return e.original }
