package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SOSSettings are per-user consent flags read at session creation.
// Changing them mid-session does not alter an in-flight share.
type SOSSettings struct {
	ID                     primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID                 primitive.ObjectID `json:"user_id" bson:"user_id" validate:"required"`
	ShareBloodType         bool               `json:"share_blood_type" bson:"share_blood_type"`
	ShareAllergies         bool               `json:"share_allergies" bson:"share_allergies"`
	ShareMedicalConditions bool               `json:"share_medical_conditions" bson:"share_medical_conditions"`
	ShareMedications       bool               `json:"share_medications" bson:"share_medications"`
	ShareNotes             bool               `json:"share_notes" bson:"share_notes"`
	ShareAge               bool               `json:"share_age" bson:"share_age"`
	UpdatedAt              time.Time          `json:"updated_at" bson:"updated_at"`
}

// DefaultSOSSettings returns the defaults for a user who never saved
// preferences: everything shared except free-form notes.
func DefaultSOSSettings(userID primitive.ObjectID) *SOSSettings {
	return &SOSSettings{
		UserID:                 userID,
		ShareBloodType:         true,
		ShareAllergies:         true,
		ShareMedicalConditions: true,
		ShareMedications:       true,
		ShareNotes:             false,
		ShareAge:               true,
	}
}
