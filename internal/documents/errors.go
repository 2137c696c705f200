package documents

import "errors"

var (
	ErrNotFound     = errors.New("document not found")
	ErrForbidden    = errors.New("not authorized for this document")
	ErrConflict     = errors.New("conflicting document state")
	ErrInvalidInput = errors.New("invalid input")
)
