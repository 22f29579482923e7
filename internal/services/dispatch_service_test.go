package services

import (
	"context"
	"strings"
	"testing"

	"readyaid/internal/models"
	"readyaid/pkg/geocode"
	"readyaid/pkg/logger"
	"readyaid/pkg/sms"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestDispatch(deliveryRepo *fakeDeliveryRepo, userRepo *fakeUserRepo, composer sms.Composer, geocoder geocode.Geocoder) DispatchService {
	return NewDispatchService(deliveryRepo, userRepo, composer, geocoder, "https://readyaid.app", logger.NewNopLogger())
}

func testSession() *models.EmergencySession {
	return &models.EmergencySession{
		ID:          primitive.NewObjectID(),
		UserID:      primitive.NewObjectID(),
		Active:      true,
		AccessToken: "tok1234567890abc",
		SharedProfile: models.SharedProfile{
			Name:      "Dana Reyes",
			BloodType: "O-",
			Allergies: []string{"penicillin"},
			Notes:     "Inhaler in jacket",
			Age:       35,
		},
		Location: &models.GeoPoint{Latitude: 37.77, Longitude: -122.42},
	}
}

func TestTrackingLinkFormat(t *testing.T) {
	dispatch := newTestDispatch(newFakeDeliveryRepo(), newFakeUserRepo(), nil, nil)
	session := testSession()

	link := dispatch.TrackingLink(session)
	want := "https://readyaid.app/session/" + session.ID.Hex() + "?token=" + session.AccessToken
	if link != want {
		t.Errorf("link = %q, want %q", link, want)
	}
}

func TestComposeSMSFieldOrderAndGating(t *testing.T) {
	dispatch := newTestDispatch(newFakeDeliveryRepo(), newFakeUserRepo(), nil, nil)
	session := testSession()
	settings := allOnSettings()

	body := dispatch.ComposeSMS("https://readyaid.app/s/x", session.SharedProfile, settings)

	if !strings.HasPrefix(body, "EMERGENCY: Dana Reyes needs help.\n") {
		t.Errorf("body missing preamble: %q", body)
	}
	if !strings.Contains(body, "Live location: https://readyaid.app/s/x") {
		t.Errorf("body missing tracking link: %q", body)
	}

	// Field order is fixed: blood type before allergies before notes
	// before age.
	bloodIdx := strings.Index(body, "Blood type: O-")
	allergyIdx := strings.Index(body, "Allergies: penicillin")
	notesIdx := strings.Index(body, "Notes: Inhaler in jacket")
	ageIdx := strings.Index(body, "Age: 35")
	if bloodIdx < 0 || allergyIdx < 0 || notesIdx < 0 || ageIdx < 0 {
		t.Fatalf("enabled fields missing from body: %q", body)
	}
	if !(bloodIdx < allergyIdx && allergyIdx < notesIdx && notesIdx < ageIdx) {
		t.Errorf("fields out of order in body: %q", body)
	}
}

func TestComposeSMSExcludesDisabledFields(t *testing.T) {
	dispatch := newTestDispatch(newFakeDeliveryRepo(), newFakeUserRepo(), nil, nil)
	session := testSession()

	settings := allOnSettings()
	settings.ShareBloodType = false
	settings.ShareNotes = false

	body := dispatch.ComposeSMS("link", session.SharedProfile, settings)

	if strings.Contains(body, "Blood type") {
		t.Errorf("disabled blood type leaked into SMS: %q", body)
	}
	if strings.Contains(body, "Inhaler") {
		t.Errorf("disabled notes leaked into SMS: %q", body)
	}
	if !strings.Contains(body, "Allergies: penicillin") {
		t.Errorf("enabled allergies missing: %q", body)
	}
}

func TestComposeSMSSkipsEmptyValues(t *testing.T) {
	dispatch := newTestDispatch(newFakeDeliveryRepo(), newFakeUserRepo(), nil, nil)

	body := dispatch.ComposeSMS("link", models.SharedProfile{Name: "Kim"}, allOnSettings())

	for _, label := range []string{"Blood type", "Allergies", "Conditions", "Medications", "Notes", "Age"} {
		if strings.Contains(body, label) {
			t.Errorf("empty field %q rendered: %q", label, body)
		}
	}
}

func TestNotifyAllPersistsOnlyRegisteredContacts(t *testing.T) {
	ctx := context.Background()
	session := testSession()

	registered := &models.User{
		ID:             primitive.NewObjectID(),
		Phone:          "+15551230001",
		DeviceToken:    "device-token-1",
		DevicePlatform: "ios",
	}
	userRepo := newFakeUserRepo(registered)
	deliveryRepo := newFakeDeliveryRepo()
	dispatch := newTestDispatch(deliveryRepo, userRepo, nil, nil)

	contacts := []models.EmergencyContact{
		{ID: primitive.NewObjectID(), Name: "With app", Phone: "+15551230001"},
		{ID: primitive.NewObjectID(), Name: "SMS only", Phone: "+15551230002"},
	}

	created, skipped, err := dispatch.NotifyAll(ctx, session, contacts)
	if err != nil {
		t.Fatalf("NotifyAll failed: %v", err)
	}
	if created != 1 || skipped != 1 {
		t.Errorf("created=%d skipped=%d, want 1 and 1", created, skipped)
	}

	records, err := deliveryRepo.GetBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetBySession failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	record := records[0]
	if record.TargetToken != "device-token-1" {
		t.Errorf("TargetToken = %q", record.TargetToken)
	}
	if record.Payload["tracking_link"] == "" {
		t.Error("payload missing tracking link")
	}

	// A second broadcast for the same session creates nothing new.
	created, _, err = dispatch.NotifyAll(ctx, session, contacts)
	if err != nil {
		t.Fatalf("repeat NotifyAll failed: %v", err)
	}
	if created != 0 {
		t.Errorf("repeat created = %d, want 0", created)
	}
}

func TestSendSMSUnavailableWithoutComposer(t *testing.T) {
	dispatch := newTestDispatch(newFakeDeliveryRepo(), newFakeUserRepo(), nil, nil)
	session := testSession()

	outcome, err := dispatch.SendSMS(context.Background(), session, nil, allOnSettings())
	if err != nil {
		t.Fatalf("SendSMS failed: %v", err)
	}
	if outcome != sms.OutcomeUnavailable {
		t.Errorf("outcome = %s, want unavailable", outcome)
	}
}

func TestSendSMSReportsComposerOutcome(t *testing.T) {
	composer := &fakeComposer{available: true, outcome: sms.OutcomeCancelled}
	dispatch := newTestDispatch(newFakeDeliveryRepo(), newFakeUserRepo(), composer, nil)
	session := testSession()

	contacts := []models.EmergencyContact{
		{ID: primitive.NewObjectID(), Phone: "+15551230001"},
		{ID: primitive.NewObjectID(), Phone: "+15551230002"},
	}

	outcome, err := dispatch.SendSMS(context.Background(), session, contacts, allOnSettings())
	if err != nil {
		t.Fatalf("SendSMS failed: %v", err)
	}
	if outcome != sms.OutcomeCancelled {
		t.Errorf("outcome = %s, want cancelled", outcome)
	}
	if len(composer.lastTo) != 2 {
		t.Errorf("recipients = %d, want 2", len(composer.lastTo))
	}
}

func TestSendSMSAppendsAddressLine(t *testing.T) {
	composer := &fakeComposer{available: true, outcome: sms.OutcomeSent}
	geocoder := &fakeGeocoder{address: "Market St, San Francisco"}
	dispatch := newTestDispatch(newFakeDeliveryRepo(), newFakeUserRepo(), composer, geocoder)
	session := testSession()

	if _, err := dispatch.SendSMS(context.Background(), session, nil, allOnSettings()); err != nil {
		t.Fatalf("SendSMS failed: %v", err)
	}
	if !strings.Contains(composer.lastBody, "Near: Market St, San Francisco") {
		t.Errorf("address line missing: %q", composer.lastBody)
	}
}
