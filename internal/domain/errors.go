package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidName      = errors.New("invalid name")
	ErrHasSubcategories = errors.New("category has subcategories")
	ErrShuttingDown     = errors.New("session is shutting down")
)
