package model

import "errors"

var (
	// ErrSessionNotFound is returned when a session lookup requires the
	// session to already exist and it does not.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnsupportedLanguage is returned when code execution is requested
	// for a language with no registered runner.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)
