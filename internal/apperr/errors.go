// Package apperr holds the sentinel errors shared by the service, the HTTP
// layer and the client. Wrap them with fmt.Errorf("...: %w", ...).
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
)
