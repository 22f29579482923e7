package location

import (
	"context"
	"errors"
	"time"
)

// ErrPermissionDenied is reported when the user refused location access.
var ErrPermissionDenied = errors.New("location permission denied")

// Position is a single fix from either producer.
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

// SubscribeOptions controls the foreground stream cadence: a fix is
// delivered every DistanceMeters of movement or every Interval,
// whichever comes first.
type SubscribeOptions struct {
	DistanceMeters float64
	Interval       time.Duration
}

// Subscription is a handle on a running foreground stream.
type Subscription interface {
	Unsubscribe() error
}

// Provider is the foreground half of the location contract: one-shot
// reads and a subscribable stream, both gated by runtime permission.
type Provider interface {
	// RequestPermission prompts for foreground access; returns
	// ErrPermissionDenied on refusal.
	RequestPermission(ctx context.Context) error

	GetCurrent(ctx context.Context, highAccuracy bool) (*Position, error)

	Subscribe(opts SubscribeOptions, fn func(Position)) (Subscription, error)
}

// BackgroundScheduler is the OS-level half: a registered task the host
// scheduler invokes independently of the foreground process, possibly
// while it is suspended.
type BackgroundScheduler interface {
	IsCapable(ctx context.Context) bool

	Register(ctx context.Context, taskID string, opts SubscribeOptions, fn func(context.Context, Position)) error

	Unregister(ctx context.Context, taskID string) error
}
