package model

import "errors"

var (
	// ErrNotFound is returned when a referenced conversation or event does not exist
	// for the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput wraps validation failures at the store and request boundary.
	ErrInvalidInput = errors.New("invalid input")
)
