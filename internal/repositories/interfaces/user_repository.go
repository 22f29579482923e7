package interfaces

import (
	"context"

	"readyaid/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)

	// GetByPhone resolves a registered user by phone number; used to map
	// an emergency contact onto an installed app with a device token.
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
}
