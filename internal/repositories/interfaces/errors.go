package interfaces

import "errors"

// Store failure taxonomy. Repositories translate driver errors into
// these sentinels so services can classify with errors.Is.
var (
	// ErrNotFound: the referenced document does not exist remotely.
	ErrNotFound = errors.New("document not found")

	// ErrStoreUnavailable: the store is offline or unreachable. Fatal
	// for creates, queued-and-accepted for merge updates.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrAlreadyInactive: an end was requested for a session that is
	// already ended. Callers treat this as the desired end state.
	ErrAlreadyInactive = errors.New("session already inactive")
)
