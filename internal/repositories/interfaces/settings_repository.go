package interfaces

import (
	"context"

	"readyaid/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SettingsRepository interface {
	// GetByUser returns the stored settings, or the defaults when the
	// user never saved any.
	GetByUser(ctx context.Context, userID primitive.ObjectID) (*models.SOSSettings, error)

	// Upsert replaces the user's settings document.
	Upsert(ctx context.Context, settings *models.SOSSettings) error
}
