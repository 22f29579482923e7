package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"readyaid/internal/models"
	"readyaid/internal/repositories/interfaces"
	"readyaid/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type sessionRepository struct {
	db         *database.MongoDB
	collection *mongo.Collection
}

func NewSessionRepository(db *database.MongoDB) interfaces.SessionRepository {
	return &sessionRepository{
		db:         db,
		collection: db.Collection("sos_sessions"),
	}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.EmergencySession) error {
	session.ID = primitive.NewObjectID()
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return wrapStoreError("failed to create session", err)
	}

	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencySession, error) {
	var session models.EmergencySession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrNotFound
		}
		return nil, wrapStoreError("failed to get session", err)
	}

	return &session, nil
}

func (r *sessionRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": fields},
	)
	if err != nil {
		return wrapStoreError("failed to update session", err)
	}

	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}

// End flips active to false and stamps end_time. The active filter
// makes a second End report ErrAlreadyInactive; the flip and the read
// that classifies a no-match run in one transaction so the
// classification cannot race a concurrent end.
func (r *sessionRepository) End(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()

	_, err := r.db.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		result, err := r.collection.UpdateOne(
			sessCtx,
			bson.M{"_id": id, "active": true},
			bson.M{"$set": bson.M{
				"active":     false,
				"end_time":   now,
				"updated_at": now,
			}},
		)
		if err != nil {
			return nil, err
		}

		if result.MatchedCount == 0 {
			var session models.EmergencySession
			err := r.collection.FindOne(sessCtx, bson.M{"_id": id}).Decode(&session)
			if err == mongo.ErrNoDocuments {
				return nil, interfaces.ErrNotFound
			}
			if err != nil {
				return nil, err
			}
			return nil, interfaces.ErrAlreadyInactive
		}

		return nil, nil
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) || errors.Is(err, interfaces.ErrAlreadyInactive) {
			return err
		}
		return wrapStoreError("failed to end session", err)
	}

	return nil
}

func (r *sessionRepository) GetActiveByUser(ctx context.Context, userID primitive.ObjectID) (*models.EmergencySession, error) {
	filter := bson.M{"user_id": userID, "active": true}
	opts := options.FindOne().SetSort(bson.D{{Key: "start_time", Value: -1}})

	var session models.EmergencySession
	err := r.collection.FindOne(ctx, filter, opts).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrNotFound
		}
		return nil, wrapStoreError("failed to get active session", err)
	}

	return &session, nil
}

// wrapStoreError maps driver-level connectivity failures onto
// ErrStoreUnavailable so callers can tell "offline" apart from
// "document missing".
func wrapStoreError(msg string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || err == mongo.ErrClientDisconnected {
		return fmt.Errorf("%s: %w", msg, interfaces.ErrStoreUnavailable)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
