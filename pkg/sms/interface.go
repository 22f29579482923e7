package sms

import "context"

// Outcome is the synchronous, ternary result of an SMS compose attempt.
type Outcome string

const (
	// OutcomeSent: the message left the composer.
	OutcomeSent Outcome = "sent"

	// OutcomeCancelled: the user aborted the composer. A soft failure;
	// the caller offers a manual share fallback.
	OutcomeCancelled Outcome = "cancelled"

	// OutcomeUnavailable: no SMS capability on this device or no
	// provider configured. Soft failure; the caller offers a generic
	// share sheet instead.
	OutcomeUnavailable Outcome = "unavailable"
)

// Composer abstracts the SMS surface. On a device it is the user-facing
// composer (which can report cancelled); the server-side providers below
// implement the same contract and only ever report sent or unavailable,
// since no user sits in their loop.
type Composer interface {
	IsAvailable(ctx context.Context) bool
	Compose(ctx context.Context, recipients []string, body string) (Outcome, error)
}
