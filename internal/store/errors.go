package store

import "errors"

// Failure kinds surfaced to handlers and the relay. Matched with errors.Is.
var (
	ErrNotFound     = errors.New("connection not found")
	ErrExpired      = errors.New("access code expired")
	ErrAlreadyBound = errors.New("technician already connected")
	ErrInvalidState = errors.New("session already completed")
	ErrValidation   = errors.New("invalid input")

	// ErrCodeSpaceExhausted means the generate-retry loop gave up; with a
	// nine-digit space this only happens when the generator is broken or
	// the store holds an absurd number of live sessions.
	ErrCodeSpaceExhausted = errors.New("could not generate a unique access code")
)
