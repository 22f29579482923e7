package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"readyaid/internal/models"
	"readyaid/pkg/location"
	"readyaid/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestTracking(provider *location.SimulatedProvider, store SessionStoreService) TrackingService {
	return NewTrackingService(provider, provider, store, nil, TrackingOptions{
		DistanceMeters:   7,
		Interval:         3 * time.Second,
		BackgroundTaskID: "sos-location-sync",
	}, logger.NewNopLogger())
}

func startTrackedSession(t *testing.T, store SessionStoreService) (*models.EmergencySession, primitive.ObjectID) {
	t.Helper()
	userID := primitive.NewObjectID()
	session, err := store.CreateSession(context.Background(), userID, models.SharedProfile{}, models.SessionTriggerManual)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return session, userID
}

func TestBeginDeniedPermissionStaysStopped(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSessionRepo()
	store := newTestSessionStore(repo, newFakeLocalStore())
	provider := location.NewSimulatedProvider()
	provider.SetPermissionDenied(true)
	tracking := newTestTracking(provider, store)

	session, userID := startTrackedSession(t, store)

	err := tracking.Begin(ctx, session.ID, userID)
	if !errors.Is(err, location.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if tracking.State() != TrackingStopped {
		t.Errorf("state = %s, want stopped after denial", tracking.State())
	}
}

func TestBeginWritesImmediateFix(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSessionRepo()
	store := newTestSessionStore(repo, newFakeLocalStore())
	provider := location.NewSimulatedProvider()
	provider.Emit(location.Position{Latitude: 37.77, Longitude: -122.42})
	tracking := newTestTracking(provider, store)

	session, userID := startTrackedSession(t, store)

	if err := tracking.Begin(ctx, session.ID, userID); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tracking.End(ctx, session.ID)

	stored, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if stored.Location == nil {
		t.Fatal("no immediate fix written")
	}
	if stored.Location.Latitude != 37.77 {
		t.Errorf("Latitude = %v, want 37.77", stored.Location.Latitude)
	}
	if stored.Location.Timestamp.IsZero() {
		t.Error("fix written without a timestamp")
	}
}

func TestForegroundStreamUpdatesLocation(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSessionRepo()
	store := newTestSessionStore(repo, newFakeLocalStore())
	provider := location.NewSimulatedProvider()
	tracking := newTestTracking(provider, store)

	session, userID := startTrackedSession(t, store)

	if err := tracking.Begin(ctx, session.ID, userID); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tracking.End(ctx, session.ID)

	provider.Emit(location.Position{Latitude: 40.71, Longitude: -74.00, Accuracy: 5})

	stored, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if stored.Location == nil || stored.Location.Latitude != 40.71 {
		t.Errorf("foreground fix not written: %+v", stored.Location)
	}
}

func TestBeginSurvivesMissingBackgroundCapability(t *testing.T) {
	ctx := context.Background()
	store := newTestSessionStore(newFakeSessionRepo(), newFakeLocalStore())
	provider := location.NewSimulatedProvider()
	provider.SetBackgroundCapable(false)
	tracking := newTestTracking(provider, store)

	session, userID := startTrackedSession(t, store)

	if err := tracking.Begin(ctx, session.ID, userID); err != nil {
		t.Fatalf("Begin must degrade to foreground-only, got %v", err)
	}
	defer tracking.End(ctx, session.ID)

	if tracking.State() != TrackingRunning {
		t.Errorf("state = %s, want running", tracking.State())
	}
	if provider.BackgroundTaskCount() != 0 {
		t.Error("background task registered despite missing capability")
	}
}

func TestBackgroundCallbackIgnoresEndedSession(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSessionRepo()
	store := newTestSessionStore(repo, newFakeLocalStore())
	provider := location.NewSimulatedProvider()
	tracking := newTestTracking(provider, store)

	session, userID := startTrackedSession(t, store)

	if err := tracking.Begin(ctx, session.ID, userID); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if provider.BackgroundTaskCount() != 1 {
		t.Fatal("background task not registered")
	}

	// The session ends but the host scheduler fires anyway, as it may
	// after process suspension.
	if err := store.EndSession(ctx, session.ID, userID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	before, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	provider.FireBackground(ctx, location.Position{Latitude: 51.5, Longitude: -0.12})

	after, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if before.Location == nil != (after.Location == nil) || (after.Location != nil && after.Location.Latitude == 51.5) {
		t.Error("late background fix resurrected an ended session")
	}
	if provider.BackgroundTaskCount() != 0 {
		t.Error("stale background task did not unregister itself")
	}
}

func TestEndTearsDownBothProducers(t *testing.T) {
	ctx := context.Background()
	store := newTestSessionStore(newFakeSessionRepo(), newFakeLocalStore())
	provider := location.NewSimulatedProvider()
	tracking := newTestTracking(provider, store)

	session, userID := startTrackedSession(t, store)

	if err := tracking.Begin(ctx, session.ID, userID); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if err := tracking.End(ctx, session.ID); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if tracking.State() != TrackingStopped {
		t.Errorf("state = %s, want stopped", tracking.State())
	}
	if provider.BackgroundTaskCount() != 0 {
		t.Error("background task survived End")
	}

	// A later emit must not write anywhere.
	stored, _ := store.GetSession(ctx, session.ID)
	provider.Emit(location.Position{Latitude: 99, Longitude: 99})
	after, _ := store.GetSession(ctx, session.ID)
	if stored.Location == nil != (after.Location == nil) || (after.Location != nil && after.Location.Latitude == 99) {
		t.Error("foreground stream survived End")
	}

	// Repeat End is a no-op.
	if err := tracking.End(ctx, session.ID); err != nil {
		t.Errorf("repeat End returned %v", err)
	}
}
