package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"readyaid/internal/models"
	"readyaid/internal/repositories/interfaces"
	"readyaid/pkg/geocode"
	"readyaid/pkg/logger"
	"readyaid/pkg/sms"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DispatchService resolves each emergency contact to a delivery channel:
// a persisted push record for contacts with a registered device, and the
// SMS fallback for everyone. It never blocks on actual delivery; the
// dispatch worker drains the records asynchronously.
type DispatchService interface {
	// NotifyAll persists one DeliveryRecord per contact with a known
	// device token. Contacts without one are skipped silently; SMS
	// remains their guaranteed channel. Returns (created, skipped).
	NotifyAll(ctx context.Context, session *models.EmergencySession, contacts []models.EmergencyContact) (int, int, error)

	// ComposeSMS builds the text body: fixed preamble + tracking link,
	// then the consent-gated medical block in a fixed field order.
	ComposeSMS(trackingLink string, shared models.SharedProfile, settings *models.SOSSettings) string

	// SendSMS composes and pushes the body through the SMS surface,
	// reporting the ternary outcome. Cancelled and unavailable are soft
	// failures; the session stays active either way.
	SendSMS(ctx context.Context, session *models.EmergencySession, contacts []models.EmergencyContact, settings *models.SOSSettings) (sms.Outcome, error)

	// TrackingLink renders the public viewer URL for a session.
	TrackingLink(session *models.EmergencySession) string

	// Deliveries lists a session's per-contact push records so the
	// status view can show who was reached.
	Deliveries(ctx context.Context, sessionID primitive.ObjectID) ([]*models.DeliveryRecord, error)
}

type dispatchService struct {
	deliveryRepo interfaces.DeliveryRepository
	userRepo     interfaces.UserRepository
	composer     sms.Composer
	geocoder     geocode.Geocoder
	webBaseURL   string
	logger       *logger.Logger
}

func NewDispatchService(deliveryRepo interfaces.DeliveryRepository, userRepo interfaces.UserRepository, composer sms.Composer, geocoder geocode.Geocoder, webBaseURL string, log *logger.Logger) DispatchService {
	return &dispatchService{
		deliveryRepo: deliveryRepo,
		userRepo:     userRepo,
		composer:     composer,
		geocoder:     geocoder,
		webBaseURL:   strings.TrimRight(webBaseURL, "/"),
		logger:       log,
	}
}

func (s *dispatchService) TrackingLink(session *models.EmergencySession) string {
	return fmt.Sprintf("%s/session/%s?token=%s", s.webBaseURL, session.ID.Hex(), session.AccessToken)
}

func (s *dispatchService) Deliveries(ctx context.Context, sessionID primitive.ObjectID) ([]*models.DeliveryRecord, error) {
	return s.deliveryRepo.GetBySession(ctx, sessionID)
}

func (s *dispatchService) NotifyAll(ctx context.Context, session *models.EmergencySession, contacts []models.EmergencyContact) (int, int, error) {
	link := s.TrackingLink(session)
	title := "Emergency alert"
	body := fmt.Sprintf("%s needs help. Tap to see their live location.", session.SharedProfile.Name)

	created := 0
	skipped := 0
	for _, contact := range contacts {
		token, platform := s.lookupDeliveryToken(ctx, contact)
		if token == "" {
			skipped++
			s.logger.LogDispatchEvent(session.ID, "push", "skipped", map[string]interface{}{
				"contact_id": contact.ID.Hex(),
			})
			continue
		}

		record := &models.DeliveryRecord{
			SessionID:   session.ID,
			ContactID:   contact.ID,
			TargetToken: token,
			Platform:    platform,
			Title:       title,
			Body:        body,
			Payload: map[string]string{
				"type":          "sos_alert",
				"session_id":    session.ID.Hex(),
				"tracking_link": link,
			},
		}

		inserted, err := s.deliveryRepo.CreateIfAbsent(ctx, record)
		if err != nil {
			return created, skipped, fmt.Errorf("failed to persist delivery record for contact %s: %w", contact.ID.Hex(), err)
		}
		if inserted {
			created++
		}
	}

	return created, skipped, nil
}

// lookupDeliveryToken maps a contact's phone onto a registered app
// install. No match means no push channel for that contact.
func (s *dispatchService) lookupDeliveryToken(ctx context.Context, contact models.EmergencyContact) (string, string) {
	user, err := s.userRepo.GetByPhone(ctx, contact.Phone)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			s.logger.WithError(err).Warn("Delivery token lookup failed")
		}
		return "", ""
	}
	return user.DeviceToken, user.DevicePlatform
}

// smsField is one consent-gated line of the medical block. The slice
// below is processed in declaration order so the output order is an
// invariant, not an accident of string concatenation.
type smsField struct {
	enabled bool
	label   string
	value   string
}

func (s *dispatchService) ComposeSMS(trackingLink string, shared models.SharedProfile, settings *models.SOSSettings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "EMERGENCY: %s needs help.\n", shared.Name)
	fmt.Fprintf(&b, "Live location: %s", trackingLink)

	age := ""
	if shared.Age > 0 {
		age = strconv.Itoa(shared.Age)
	}

	fields := []smsField{
		{settings.ShareBloodType, "Blood type", shared.BloodType},
		{settings.ShareAllergies, "Allergies", strings.Join(shared.Allergies, ", ")},
		{settings.ShareMedicalConditions, "Conditions", strings.Join(shared.MedicalConditions, ", ")},
		{settings.ShareMedications, "Medications", strings.Join(shared.Medications, ", ")},
		{settings.ShareNotes, "Notes", shared.Notes},
		{settings.ShareAge, "Age", age},
	}

	for _, f := range fields {
		if f.enabled && f.value != "" {
			fmt.Fprintf(&b, "\n%s: %s", f.label, f.value)
		}
	}

	return b.String()
}

func (s *dispatchService) SendSMS(ctx context.Context, session *models.EmergencySession, contacts []models.EmergencyContact, settings *models.SOSSettings) (sms.Outcome, error) {
	if s.composer == nil || !s.composer.IsAvailable(ctx) {
		s.logger.LogDispatchEvent(session.ID, "sms", string(sms.OutcomeUnavailable), nil)
		return sms.OutcomeUnavailable, nil
	}

	body := s.ComposeSMS(s.TrackingLink(session), session.SharedProfile, settings)

	// Best-effort address line; a geocoding failure never blocks the
	// message.
	if s.geocoder != nil && session.Location != nil {
		if address, err := s.geocoder.ReverseGeocode(ctx, session.Location.Latitude, session.Location.Longitude); err == nil && address != "" {
			body += "\nNear: " + address
		}
	}

	recipients := make([]string, 0, len(contacts))
	for _, contact := range contacts {
		recipients = append(recipients, contact.Phone)
	}

	outcome, err := s.composer.Compose(ctx, recipients, body)
	s.logger.LogDispatchEvent(session.ID, "sms", string(outcome), map[string]interface{}{
		"recipients": len(recipients),
	})

	return outcome, err
}
