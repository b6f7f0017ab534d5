package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidName  = errors.New("invalid name")
	ErrInvalidKind  = errors.New("invalid kind")
	ErrUnrecognized = errors.New("unrecognized message")
	ErrConflict     = errors.New("conflict")
)
