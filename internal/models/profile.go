package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User carries the fields the SOS subsystem reads. The rest of the user
// document (auth, preferences, app state) belongs to other services and
// is left to bson's inline behavior on their side.
type User struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FirstName         string             `json:"first_name" bson:"first_name"`
	LastName          string             `json:"last_name" bson:"last_name"`
	Phone             string             `json:"phone" bson:"phone"`
	DateOfBirth       *time.Time         `json:"date_of_birth" bson:"date_of_birth"`
	BloodType         string             `json:"blood_type" bson:"blood_type"`
	MedicalConditions []string           `json:"medical_conditions" bson:"medical_conditions"`
	Allergies         []string           `json:"allergies" bson:"allergies"`
	Medications       []string           `json:"medications" bson:"medications"`
	MedicalNotes      string             `json:"medical_notes" bson:"medical_notes"`
	EmergencyContacts []EmergencyContact `json:"emergency_contacts" bson:"emergency_contacts"`
	DeviceToken       string             `json:"device_token" bson:"device_token"`
	DevicePlatform    string             `json:"device_platform" bson:"device_platform"` // ios, android
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Age derives the user's age at the given instant, or 0 when no
// birthdate is on file.
func (u *User) Age(at time.Time) int {
	if u.DateOfBirth == nil {
		return 0
	}
	years := at.Year() - u.DateOfBirth.Year()
	anniversary := u.DateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

type EmergencyContact struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name" validate:"required"`
	Phone        string             `json:"phone" bson:"phone" validate:"required"`
	Relationship string             `json:"relationship" bson:"relationship"`
}
