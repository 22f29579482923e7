package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"readyaid/internal/models"
	"readyaid/internal/repositories/interfaces"
	"readyaid/pkg/logger"
	"readyaid/pkg/sms"
	"readyaid/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrchestratorState string

const (
	StateIdle     OrchestratorState = "idle"
	StateStarting OrchestratorState = "starting"
	StateActive   OrchestratorState = "active"
	StateEnding   OrchestratorState = "ending"
)

// StartResult reports what a Start achieved. Once the session document
// is confirmed created the session is live, so tracking and dispatch
// failures arrive here as warnings instead of errors.
type StartResult struct {
	SessionID            primitive.ObjectID `json:"session_id"`
	TrackingLink         string             `json:"tracking_link"`
	SMSOutcome           sms.Outcome        `json:"sms_outcome"`
	ManualShareSuggested bool               `json:"manual_share_suggested"`
	Warnings             []string           `json:"warnings,omitempty"`
}

// SessionStatus is the polling-friendly answer for shared UI chrome.
type SessionStatus struct {
	Active       bool                     `json:"active"`
	Session      *models.EmergencySession `json:"session,omitempty"`
	TrackingLink string                   `json:"tracking_link,omitempty"`
	Deliveries   []*models.DeliveryRecord `json:"deliveries,omitempty"`
}

// SOSService is the state machine that sequences session creation,
// tracking, and contact notification. One instance owns one device's
// session lifecycle.
type SOSService interface {
	// Start begins an emergency session. Refused with
	// ErrNoContactsConfigured when the user has no emergency contacts,
	// and with ErrSessionAlreadyActive when a session is live.
	Start(ctx context.Context, userID primitive.ObjectID) (*StartResult, error)

	// AutoStart is the sensor-triggered variant of Start.
	AutoStart(ctx context.Context, userID primitive.ObjectID) (*StartResult, error)

	// End stops tracking and marks the session inactive. Ending an
	// already-ended session is a no-op, not an error.
	End(ctx context.Context, userID primitive.ObjectID) error

	// IsActive is safe to poll from unrelated parts of the app.
	IsActive(ctx context.Context, userID primitive.ObjectID) (bool, error)

	// Status returns the active session with a freshly rotated (or
	// still-valid) tracking link.
	Status(ctx context.Context, userID primitive.ObjectID) (*SessionStatus, error)

	GetSettings(ctx context.Context, userID primitive.ObjectID) (*models.SOSSettings, error)
	SaveSettings(ctx context.Context, settings *models.SOSSettings) error
}

type sosService struct {
	sessionStore SessionStoreService
	tracking     TrackingService
	dispatch     DispatchService
	consent      ConsentService
	userRepo     interfaces.UserRepository
	settingsRepo interfaces.SettingsRepository
	hub          *websocket.Hub
	logger       *logger.Logger

	mu    sync.Mutex
	state OrchestratorState
}

func NewSOSService(sessionStore SessionStoreService, tracking TrackingService, dispatch DispatchService, consent ConsentService, userRepo interfaces.UserRepository, settingsRepo interfaces.SettingsRepository, hub *websocket.Hub, log *logger.Logger) SOSService {
	return &sosService{
		sessionStore: sessionStore,
		tracking:     tracking,
		dispatch:     dispatch,
		consent:      consent,
		userRepo:     userRepo,
		settingsRepo: settingsRepo,
		hub:          hub,
		logger:       log,
		state:        StateIdle,
	}
}

func (s *sosService) Start(ctx context.Context, userID primitive.ObjectID) (*StartResult, error) {
	return s.start(ctx, userID, models.SessionTriggerManual)
}

func (s *sosService) AutoStart(ctx context.Context, userID primitive.ObjectID) (*StartResult, error) {
	return s.start(ctx, userID, models.SessionTriggerAuto)
}

func (s *sosService) start(ctx context.Context, userID primitive.ObjectID, trigger models.SessionTrigger) (*StartResult, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrSessionAlreadyActive
	}
	s.state = StateStarting
	s.mu.Unlock()

	result, err := s.runStart(ctx, userID, trigger)
	if err != nil {
		// Nothing was created; roll back to idle.
		s.setState(StateIdle)
		return nil, err
	}

	s.setState(StateActive)
	return result, nil
}

func (s *sosService) runStart(ctx context.Context, userID primitive.ObjectID, trigger models.SessionTrigger) (*StartResult, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if len(user.EmergencyContacts) == 0 {
		return nil, ErrNoContactsConfigured
	}

	// At most one active session per user; re-read current state before
	// creating a new one.
	if _, active, err := s.sessionStore.GetActiveSessionID(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to check active session: %w", err)
	} else if active {
		return nil, ErrSessionAlreadyActive
	}

	settings, err := s.settingsRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sos settings: %w", err)
	}

	sharedProfile := s.consent.BuildSharedProfile(user, settings)

	session, err := s.sessionStore.CreateSession(ctx, userID, sharedProfile, trigger)
	if err != nil {
		return nil, err
	}

	// The session document exists from here on: every further failure
	// degrades functionality but must not silently drop the session.
	result := &StartResult{
		SessionID:    session.ID,
		TrackingLink: s.dispatch.TrackingLink(session),
	}

	if err := s.tracking.Begin(ctx, session.ID, userID); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("location tracking unavailable: %v", err))
		s.logger.WithSessionID(session.ID).WithError(err).Warn("Tracking failed to begin, session stays active")
	}

	// Re-read so the SMS and the push records carry the first fix when
	// tracking managed to write one.
	if refreshed, err := s.sessionStore.GetSession(ctx, session.ID); err == nil {
		session = refreshed
	}

	if _, skipped, err := s.dispatch.NotifyAll(ctx, session, user.EmergencyContacts); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("push notifications incomplete: %v", err))
		s.logger.WithSessionID(session.ID).WithError(err).Warn("Push dispatch incomplete, session stays active")
	} else if skipped > 0 {
		s.logger.WithSessionID(session.ID).Debugf("%d contacts have no registered device, SMS only", skipped)
	}

	outcome, err := s.dispatch.SendSMS(ctx, session, user.EmergencyContacts, settings)
	if err != nil {
		s.logger.WithSessionID(session.ID).WithError(err).Warn("SMS dispatch reported errors")
	}
	result.SMSOutcome = outcome
	switch outcome {
	case sms.OutcomeCancelled:
		result.ManualShareSuggested = true
		result.Warnings = append(result.Warnings, "SMS cancelled; offer manual link sharing")
	case sms.OutcomeUnavailable:
		result.ManualShareSuggested = true
		result.Warnings = append(result.Warnings, "SMS unavailable; offer the share sheet instead")
	}

	return result, nil
}

func (s *sosService) End(ctx context.Context, userID primitive.ObjectID) error {
	sessionID, active, err := s.sessionStore.GetActiveSessionID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve active session: %w", err)
	}
	if !active {
		// Nothing to end; a repeat End lands here.
		s.setState(StateIdle)
		return nil
	}

	s.setState(StateEnding)

	// Tracking first, so no new location write races the end itself.
	if err := s.tracking.End(ctx, sessionID); err != nil {
		s.logger.WithSessionID(sessionID).WithError(err).Warn("Tracking teardown reported errors")
	}

	err = s.sessionStore.EndSession(ctx, sessionID, userID)
	if err != nil && !errors.Is(err, interfaces.ErrAlreadyInactive) && !errors.Is(err, interfaces.ErrNotFound) {
		// The session is still live remotely; stay active so the caller
		// retries instead of believing SOS is off.
		s.setState(StateActive)
		return fmt.Errorf("failed to end session: %w", err)
	}

	if s.hub != nil {
		s.hub.SendSessionEnded(sessionID.Hex())
	}

	s.setState(StateIdle)
	return nil
}

func (s *sosService) IsActive(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	_, active, err := s.sessionStore.GetActiveSessionID(ctx, userID)
	return active, err
}

func (s *sosService) Status(ctx context.Context, userID primitive.ObjectID) (*SessionStatus, error) {
	sessionID, active, err := s.sessionStore.GetActiveSessionID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !active {
		return &SessionStatus{Active: false}, nil
	}

	session, err := s.sessionStore.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessionStore.EnsureFreshToken(ctx, session); err != nil {
		s.logger.WithSessionID(sessionID).WithError(err).Warn("Token rotation failed, reusing current token")
	}

	deliveries, err := s.dispatch.Deliveries(ctx, sessionID)
	if err != nil {
		// The session itself is the answer; the delivery list is extra.
		s.logger.WithSessionID(sessionID).WithError(err).Warn("Failed to load delivery records for status")
	}

	return &SessionStatus{
		Active:       true,
		Session:      session,
		TrackingLink: s.dispatch.TrackingLink(session),
		Deliveries:   deliveries,
	}, nil
}

func (s *sosService) GetSettings(ctx context.Context, userID primitive.ObjectID) (*models.SOSSettings, error) {
	return s.settingsRepo.GetByUser(ctx, userID)
}

func (s *sosService) SaveSettings(ctx context.Context, settings *models.SOSSettings) error {
	return s.settingsRepo.Upsert(ctx, settings)
}

func (s *sosService) setState(state OrchestratorState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
