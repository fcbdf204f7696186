package registry

import "errors"

var (
	ErrInvalidInput = errors.New("registry: invalid input")
	ErrNotFound     = errors.New("registry: letter not found")
	ErrConflict     = errors.New("registry: reference number conflict")
	ErrForbidden    = errors.New("registry: forbidden")
	ErrNoFile       = errors.New("registry: letter has no file attached")
)
