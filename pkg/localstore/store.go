package localstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get for an absent key.
var ErrKeyNotFound = errors.New("key not found")

// Store is the device-local key-value contract: a small persistent map
// that survives process restart. The SOS subsystem keeps exactly one
// value in it, the active session pointer.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
