package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists is returned when adding an entry that is already present.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when operating on an absent entry.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when a non-admin invokes a restricted command.
	ErrPermissionDenied = errors.New("permission denied")
)

// ValidationError reports malformed command arguments together with the correct usage
type ValidationError struct {
	Usage string
}

func (e *ValidationError) Error() string {
	return "invalid arguments, usage: " + e.Usage
}

// PersistenceError reports a failure to load or save a store document
type PersistenceError struct {
	Op  string // "load" or "save"
	Key string // document name
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("moderation: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ExternalServiceError reports a failed call to the chat platform
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
