package mongodb

import (
	"context"
	"time"

	"readyaid/internal/models"
	"readyaid/internal/repositories/interfaces"
	"readyaid/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type settingsRepository struct {
	collection *mongo.Collection
}

func NewSettingsRepository(db *database.MongoDB) interfaces.SettingsRepository {
	return &settingsRepository{
		collection: db.Collection("sos_settings"),
	}
}

// GetByUser falls back to the defaults when the user never saved
// preferences; the defaults are not persisted until the first Upsert.
func (r *settingsRepository) GetByUser(ctx context.Context, userID primitive.ObjectID) (*models.SOSSettings, error) {
	var settings models.SOSSettings
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.DefaultSOSSettings(userID), nil
		}
		return nil, wrapStoreError("failed to get sos settings", err)
	}

	return &settings, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, settings *models.SOSSettings) error {
	settings.UpdatedAt = time.Now()

	filter := bson.M{"user_id": settings.UserID}
	update := bson.M{"$set": bson.M{
		"user_id":                  settings.UserID,
		"share_blood_type":         settings.ShareBloodType,
		"share_allergies":          settings.ShareAllergies,
		"share_medical_conditions": settings.ShareMedicalConditions,
		"share_medications":        settings.ShareMedications,
		"share_notes":              settings.ShareNotes,
		"share_age":                settings.ShareAge,
		"updated_at":               settings.UpdatedAt,
	}}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return wrapStoreError("failed to upsert sos settings", err)
	}

	return nil
}
