package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"readyaid/internal/models"
	"readyaid/pkg/location"
	"readyaid/pkg/logger"
	"readyaid/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TrackingState string

const (
	TrackingStopped  TrackingState = "stopped"
	TrackingStarting TrackingState = "starting"
	TrackingRunning  TrackingState = "running"
	TrackingStopping TrackingState = "stopping"
)

// TrackingOptions sets the foreground cadence and the OS task id.
type TrackingOptions struct {
	DistanceMeters   float64
	Interval         time.Duration
	BackgroundTaskID string
}

// TrackingService manages the two position producers of a session: the
// foreground subscription and the OS-scheduled background task. Both
// write through SessionStoreService.UpdateLocation independently;
// ordering between them is not guaranteed, and the store layer accepts
// last-write-wins by write order. A stale background fix can therefore
// momentarily overwrite a fresher foreground one; the next foreground
// tick corrects it.
type TrackingService interface {
	// Begin requests permission, forwards one immediate high-accuracy
	// fix, subscribes the foreground stream, and attempts background
	// registration. Background failure degrades to foreground-only
	// tracking; permission denial fails the whole call.
	Begin(ctx context.Context, sessionID, userID primitive.ObjectID) error

	// End tears down both producers. Both unregistrations are attempted
	// even when one fails; failures are logged, never returned.
	End(ctx context.Context, sessionID primitive.ObjectID) error

	State() TrackingState
}

type trackingService struct {
	provider  location.Provider
	scheduler location.BackgroundScheduler
	store     SessionStoreService
	hub       *websocket.Hub
	opts      TrackingOptions
	logger    *logger.Logger

	mu           sync.Mutex
	state        TrackingState
	subscription location.Subscription
	bgRegistered bool
	sessionID    primitive.ObjectID
	userID       primitive.ObjectID
}

func NewTrackingService(provider location.Provider, scheduler location.BackgroundScheduler, store SessionStoreService, hub *websocket.Hub, opts TrackingOptions, log *logger.Logger) TrackingService {
	return &trackingService{
		provider:  provider,
		scheduler: scheduler,
		store:     store,
		hub:       hub,
		opts:      opts,
		logger:    log,
		state:     TrackingStopped,
	}
}

func (s *trackingService) State() TrackingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *trackingService) Begin(ctx context.Context, sessionID, userID primitive.ObjectID) error {
	s.mu.Lock()
	if s.state != TrackingStopped {
		s.mu.Unlock()
		return fmt.Errorf("tracking already %s", s.state)
	}
	s.state = TrackingStarting
	s.sessionID = sessionID
	s.userID = userID
	s.mu.Unlock()

	if err := s.provider.RequestPermission(ctx); err != nil {
		s.setState(TrackingStopped)
		return fmt.Errorf("foreground location: %w", err)
	}

	// Immediate fix so the first responder notification, sent shortly
	// after, already carries a position.
	if pos, err := s.provider.GetCurrent(ctx, true); err != nil {
		s.logger.WithSessionID(sessionID).WithError(err).Warn("Initial location read failed")
	} else {
		s.writeLocation(ctx, sessionID, *pos)
	}

	subOpts := location.SubscribeOptions{
		DistanceMeters: s.opts.DistanceMeters,
		Interval:       s.opts.Interval,
	}

	sub, err := s.provider.Subscribe(subOpts, func(pos location.Position) {
		s.writeLocation(context.Background(), sessionID, pos)
	})
	if err != nil {
		s.setState(TrackingStopped)
		return fmt.Errorf("failed to subscribe to location stream: %w", err)
	}

	s.mu.Lock()
	s.subscription = sub
	s.mu.Unlock()

	// Background registration is best-effort; tracking continues
	// foreground-only when the capability is missing.
	if s.scheduler != nil && s.scheduler.IsCapable(ctx) {
		err := s.scheduler.Register(ctx, s.opts.BackgroundTaskID, subOpts, s.backgroundCallback(sessionID, userID))
		if err != nil {
			s.logger.WithSessionID(sessionID).WithError(err).Warn("Background tracking unavailable, continuing foreground-only")
		} else {
			s.mu.Lock()
			s.bgRegistered = true
			s.mu.Unlock()
		}
	} else {
		s.logger.WithSessionID(sessionID).Warn("Background tracking not capable on this device, continuing foreground-only")
	}

	s.setState(TrackingRunning)
	return nil
}

// backgroundCallback re-checks the active session before every write:
// the host scheduler may fire it after the session ended elsewhere, and
// a dead session must not be resurrected by a late fix.
func (s *trackingService) backgroundCallback(sessionID, userID primitive.ObjectID) func(context.Context, location.Position) {
	return func(ctx context.Context, pos location.Position) {
		activeID, active, err := s.store.GetActiveSessionID(ctx, userID)
		if err != nil || !active || activeID != sessionID {
			if err := s.scheduler.Unregister(ctx, s.opts.BackgroundTaskID); err != nil {
				s.logger.WithSessionID(sessionID).WithError(err).Warn("Failed to unregister stale background task")
			}
			return
		}

		s.writeLocation(ctx, sessionID, pos)
	}
}

func (s *trackingService) writeLocation(ctx context.Context, sessionID primitive.ObjectID, pos location.Position) {
	ts := pos.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	point := &models.GeoPoint{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Accuracy:  pos.Accuracy,
		Timestamp: ts,
	}

	if err := s.store.UpdateLocation(ctx, sessionID, point); err != nil {
		s.logger.WithSessionID(sessionID).WithError(err).Warn("Failed to write location update")
		return
	}

	if s.hub != nil {
		s.hub.SendLocationUpdate(sessionID.Hex(), map[string]interface{}{
			"latitude":  point.Latitude,
			"longitude": point.Longitude,
			"accuracy":  point.Accuracy,
			"timestamp": point.Timestamp.Unix(),
		})
	}
}

func (s *trackingService) End(ctx context.Context, sessionID primitive.ObjectID) error {
	s.mu.Lock()
	if s.state == TrackingStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = TrackingStopping
	sub := s.subscription
	bgRegistered := s.bgRegistered
	s.subscription = nil
	s.bgRegistered = false
	s.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.WithSessionID(sessionID).WithError(err).Warn("Failed to unsubscribe foreground stream")
		}
	}

	if bgRegistered {
		if err := s.scheduler.Unregister(ctx, s.opts.BackgroundTaskID); err != nil {
			s.logger.WithSessionID(sessionID).WithError(err).Warn("Failed to unregister background task")
		}
	}

	s.setState(TrackingStopped)
	return nil
}

func (s *trackingService) setState(state TrackingState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
