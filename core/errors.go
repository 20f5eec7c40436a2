package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// AuthorizationError signals that the caller presented valid credentials
// but is not allowed to act on the addressed resource.
type AuthorizationError struct {
	Err error
}

func NewAuthorizationError(err error) error {
	return &AuthorizationError{Err: err}
}

func (err AuthorizationError) Error() string {
	if err.Err == nil {
		return "permission denied"
	}
	return err.Err.Error()
}

// StorageError wraps a persistence failure. The underlying error is kept for
// logging but is never rendered to API callers.
type StorageError struct {
	Err error
	Msg string
}

func NewStorageError(err error, msg string) error {
	return &StorageError{Err: errors.Wrap(err, msg), Msg: msg}
}

func (err StorageError) Error() string { return err.Msg }

func (err StorageError) Unwrap() error { return err.Err }

func IsStorageError(err error) bool {
	_, ok := errors.Cause(err).(*StorageError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
