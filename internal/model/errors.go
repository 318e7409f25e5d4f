package model

import "errors"

var (
	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrServerNotRunning is returned when an operation requires a running server.
	ErrServerNotRunning = errors.New("server not running")

	// ErrServerFull is returned when all session slots are occupied.
	ErrServerFull = errors.New("all session slots in use")
)
