package interfaces

import (
	"context"

	"readyaid/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionRepository interface {
	// Create inserts the session document and assigns its ID.
	Create(ctx context.Context, session *models.EmergencySession) error

	// GetByID returns ErrNotFound when the document is missing and
	// ErrStoreUnavailable when the store cannot be reached.
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencySession, error)

	// UpdateFields applies a field-merge write ($set); concurrent calls
	// touching different fields never overwrite one another.
	UpdateFields(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) error

	// End flips active to false and stamps end_time in one write.
	// Returns ErrAlreadyInactive if the session was already ended.
	End(ctx context.Context, id primitive.ObjectID) error

	// GetActiveByUser returns the user's active session, or ErrNotFound.
	GetActiveByUser(ctx context.Context, userID primitive.ObjectID) (*models.EmergencySession, error)
}
