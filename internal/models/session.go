package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EmergencySession is one emergency episode, from activation to resolution.
// At most one session per user may have Active == true at a time; the
// orchestrator enforces this, not the store.
type EmergencySession struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID         primitive.ObjectID `json:"user_id" bson:"user_id" validate:"required"`
	Active         bool               `json:"active" bson:"active" default:"true"`
	StartTime      time.Time          `json:"start_time" bson:"start_time"`
	EndTime        *time.Time         `json:"end_time" bson:"end_time"`
	AccessToken    string             `json:"access_token" bson:"access_token" validate:"required"`
	TokenCreatedAt time.Time          `json:"token_created_at" bson:"token_created_at"`
	Location       *GeoPoint          `json:"location" bson:"location"`
	SharedProfile  SharedProfile      `json:"shared_profile" bson:"shared_profile"`
	Trigger        SessionTrigger     `json:"trigger" bson:"trigger" default:"manual"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

type SessionTrigger string

const (
	SessionTriggerManual SessionTrigger = "manual"
	SessionTriggerAuto   SessionTrigger = "auto"
)

// GeoPoint is the last reported position of a session. Updated by either
// tracking producer; last writer wins by write order, not by Timestamp.
type GeoPoint struct {
	Latitude  float64   `json:"latitude" bson:"latitude" validate:"required"`
	Longitude float64   `json:"longitude" bson:"longitude" validate:"required"`
	Accuracy  float64   `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// SharedProfile is the consent-filtered subset of a user's medical data,
// computed once at session creation and immutable for the session's
// lifetime. Absent optional fields are omitted entirely.
type SharedProfile struct {
	Name              string   `json:"name" bson:"name"`
	BloodType         string   `json:"blood_type,omitempty" bson:"blood_type,omitempty"`
	Age               int      `json:"age,omitempty" bson:"age,omitempty"`
	MedicalConditions []string `json:"medical_conditions,omitempty" bson:"medical_conditions,omitempty"`
	Allergies         []string `json:"allergies,omitempty" bson:"allergies,omitempty"`
	Medications       []string `json:"medications,omitempty" bson:"medications,omitempty"`
	Notes             string   `json:"notes,omitempty" bson:"notes,omitempty"`
}
