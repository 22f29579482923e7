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

type deliveryRepository struct {
	collection *mongo.Collection
}

func NewDeliveryRepository(db *database.MongoDB) interfaces.DeliveryRepository {
	return &deliveryRepository{
		collection: db.Collection("sos_deliveries"),
	}
}

// CreateIfAbsent upserts on the (session_id, contact_id) key with
// $setOnInsert only, so a repeated NotifyAll for the same session never
// duplicates or resets an existing record.
func (r *deliveryRepository) CreateIfAbsent(ctx context.Context, record *models.DeliveryRecord) (bool, error) {
	filter := bson.M{
		"session_id": record.SessionID,
		"contact_id": record.ContactID,
	}

	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":          primitive.NewObjectID(),
			"session_id":   record.SessionID,
			"contact_id":   record.ContactID,
			"target_token": record.TargetToken,
			"platform":     record.Platform,
			"title":        record.Title,
			"body":         record.Body,
			"payload":      record.Payload,
			"sent":         false,
			"created_at":   time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, wrapStoreError("failed to create delivery record", err)
	}

	return result.UpsertedCount > 0, nil
}

func (r *deliveryRepository) ListUnsent(ctx context.Context, limit int64) ([]*models.DeliveryRecord, error) {
	filter := bson.M{"sent": false}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapStoreError("failed to list unsent deliveries", err)
	}
	defer cursor.Close(ctx)

	var records []*models.DeliveryRecord
	for cursor.Next(ctx) {
		var record models.DeliveryRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, wrapStoreError("failed to decode delivery record", err)
		}
		records = append(records, &record)
	}

	return records, nil
}

func (r *deliveryRepository) MarkSent(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"sent": true, "sent_at": now}},
	)
	if err != nil {
		return wrapStoreError("failed to mark delivery sent", err)
	}

	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

func (r *deliveryRepository) GetBySession(ctx context.Context, sessionID primitive.ObjectID) ([]*models.DeliveryRecord, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return nil, wrapStoreError("failed to find deliveries by session", err)
	}
	defer cursor.Close(ctx)

	var records []*models.DeliveryRecord
	for cursor.Next(ctx) {
		var record models.DeliveryRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, wrapStoreError("failed to decode delivery record", err)
		}
		records = append(records, &record)
	}

	return records, nil
}
