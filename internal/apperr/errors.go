package apperr

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrNoTarget  = errors.New("no target configured")
	ErrBadTarget = errors.New("invalid target reference")
)
