package interfaces

import (
	"context"

	"readyaid/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DeliveryRepository interface {
	// CreateIfAbsent persists the record unless one already exists for
	// the same (session, contact) key. Returns true when a new record
	// was written.
	CreateIfAbsent(ctx context.Context, record *models.DeliveryRecord) (bool, error)

	// ListUnsent returns up to limit records still awaiting dispatch,
	// oldest first.
	ListUnsent(ctx context.Context, limit int64) ([]*models.DeliveryRecord, error)

	MarkSent(ctx context.Context, id primitive.ObjectID) error

	GetBySession(ctx context.Context, sessionID primitive.ObjectID) ([]*models.DeliveryRecord, error)
}
