package service

import "errors"

var (
	// ErrInvalidInput rejects malformed requests before any document read.
	ErrInvalidInput = errors.New("service: invalid input")

	// ErrUnauthorized aborts a transaction after the authorizing read but
	// before any write is staged.
	ErrUnauthorized = errors.New("service: operation not allowed")

	ErrAlreadyExists = errors.New("service: already exists")
)
