package repository

import "errors"

var (
	ErrNotFound        = errors.New("todo not found")
	ErrVersionConflict = errors.New("todo version conflict")
)
