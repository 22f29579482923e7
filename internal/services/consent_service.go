package services

import (
	"time"

	"readyaid/internal/models"
)

// ConsentService reduces a full user profile and the consent flags into
// the minimal shareable payload. Pure; no errors, no side effects.
type ConsentService interface {
	BuildSharedProfile(user *models.User, settings *models.SOSSettings) models.SharedProfile
}

type consentService struct {
	now func() time.Time
}

func NewConsentService() ConsentService {
	return &consentService{now: time.Now}
}

// BuildSharedProfile always includes the name. Every other field is
// included iff its flag is set AND the profile has a non-empty value.
// Age is derived from the birthdate at call time, never stored.
func (s *consentService) BuildSharedProfile(user *models.User, settings *models.SOSSettings) models.SharedProfile {
	shared := models.SharedProfile{
		Name: user.FullName(),
	}

	if settings.ShareBloodType && user.BloodType != "" {
		shared.BloodType = user.BloodType
	}

	if settings.ShareAllergies && len(user.Allergies) > 0 {
		shared.Allergies = append([]string(nil), user.Allergies...)
	}

	if settings.ShareMedicalConditions && len(user.MedicalConditions) > 0 {
		shared.MedicalConditions = append([]string(nil), user.MedicalConditions...)
	}

	if settings.ShareMedications && len(user.Medications) > 0 {
		shared.Medications = append([]string(nil), user.Medications...)
	}

	if settings.ShareNotes && user.MedicalNotes != "" {
		shared.Notes = user.MedicalNotes
	}

	if settings.ShareAge && user.DateOfBirth != nil {
		shared.Age = user.Age(s.now())
	}

	return shared
}
