package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeliveryRecord is a persisted intent to push-notify one contact about
// one session. Keyed by (SessionID, ContactID) and created at most once
// per key; Sent is advanced by the dispatch worker, not by the
// orchestrator.
type DeliveryRecord struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID   primitive.ObjectID `json:"session_id" bson:"session_id" validate:"required"`
	ContactID   primitive.ObjectID `json:"contact_id" bson:"contact_id" validate:"required"`
	TargetToken string             `json:"target_token" bson:"target_token" validate:"required"`
	Platform    string             `json:"platform" bson:"platform"`
	Title       string             `json:"title" bson:"title"`
	Body        string             `json:"body" bson:"body"`
	Payload     map[string]string  `json:"payload" bson:"payload"`
	Sent        bool               `json:"sent" bson:"sent" default:"false"`
	SentAt      *time.Time         `json:"sent_at" bson:"sent_at"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}
