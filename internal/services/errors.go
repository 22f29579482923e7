package services

import "errors"

var (
	// ErrNoContactsConfigured blocks Start entirely; the caller must
	// collect at least one emergency contact first.
	ErrNoContactsConfigured = errors.New("no emergency contacts configured")

	// ErrSessionAlreadyActive: a Start arrived while a session is live.
	// Exactly one active session per user is allowed.
	ErrSessionAlreadyActive = errors.New("an emergency session is already active")

	// ErrSessionCreateFailed: the session document could not be
	// verified after the write; no session was started.
	ErrSessionCreateFailed = errors.New("failed to create emergency session")
)
