package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"readyaid/internal/models"
	"readyaid/internal/repositories/interfaces"
	"readyaid/pkg/localstore"
	"readyaid/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionStoreService is the consistency wrapper around the remote
// session documents and the device-local active-session pointer. It is
// the only component allowed to mutate the pointer, so no two callers
// can disagree about which session this device cares about.
type SessionStoreService interface {
	// CreateSession writes the document, verifies it with a
	// read-after-write, then records the local pointer. Offline stores
	// are a hard failure here; the caller needs a real id to proceed.
	CreateSession(ctx context.Context, userID primitive.ObjectID, sharedProfile models.SharedProfile, trigger models.SessionTrigger) (*models.EmergencySession, error)

	// GetActiveSessionID resolves the local pointer against the remote
	// document. A missing or inactive remote session clears the pointer
	// (self-healing); an unreachable store leaves it in place, since
	// offline is not evidence the session ended. When the pointer itself
	// is missing the remote store gets the final say: a live session
	// found there is re-adopted, so a lost pointer cannot open the door
	// to a second active session.
	GetActiveSessionID(ctx context.Context, userID primitive.ObjectID) (primitive.ObjectID, bool, error)

	GetSession(ctx context.Context, id primitive.ObjectID) (*models.EmergencySession, error)

	// UpdateLocation is a single-field merge write. Safe to call from
	// both tracking producers concurrently; an offline store counts as
	// accepted locally and returns success.
	UpdateLocation(ctx context.Context, sessionID primitive.ObjectID, location *models.GeoPoint) error

	// EndSession flips the session inactive and clears the pointer.
	// Repeat calls report ErrAlreadyInactive, which callers treat as
	// the desired end state.
	EndSession(ctx context.Context, sessionID primitive.ObjectID, userID primitive.ObjectID) error

	// EnsureFreshToken reuses a token younger than the rotation window
	// and persists a replacement otherwise.
	EnsureFreshToken(ctx context.Context, session *models.EmergencySession) (string, error)
}

type sessionStoreService struct {
	sessionRepo interfaces.SessionRepository
	local       localstore.Store
	tokens      TokenService
	logger      *logger.Logger
}

func NewSessionStoreService(sessionRepo interfaces.SessionRepository, local localstore.Store, tokens TokenService, log *logger.Logger) SessionStoreService {
	return &sessionStoreService{
		sessionRepo: sessionRepo,
		local:       local,
		tokens:      tokens,
		logger:      log,
	}
}

func pointerKey(userID primitive.ObjectID) string {
	return fmt.Sprintf("sos:active_session:%s", userID.Hex())
}

func (s *sessionStoreService) CreateSession(ctx context.Context, userID primitive.ObjectID, sharedProfile models.SharedProfile, trigger models.SessionTrigger) (*models.EmergencySession, error) {
	token, err := s.tokens.Mint()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &models.EmergencySession{
		UserID:         userID,
		Active:         true,
		StartTime:      now,
		AccessToken:    token,
		TokenCreatedAt: now,
		SharedProfile:  sharedProfile,
		Trigger:        trigger,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreateFailed, err)
	}

	// Read-after-write verify; guards against a store that silently
	// drops writes while offline.
	verified, err := s.sessionRepo.GetByID(ctx, session.ID)
	if err != nil || !verified.Active {
		return nil, fmt.Errorf("%w: session %s not verifiable after create", ErrSessionCreateFailed, session.ID.Hex())
	}

	if err := s.local.Set(ctx, pointerKey(userID), session.ID.Hex()); err != nil {
		// Without the pointer a retried Start would not see this session
		// and would mint a second active one. End the orphan before
		// reporting failure so the retry starts from a clean slate.
		if endErr := s.sessionRepo.End(ctx, session.ID); endErr != nil {
			s.logger.WithSessionID(session.ID).WithError(endErr).Error("Failed to end session after pointer write failure")
		}
		return nil, fmt.Errorf("%w: failed to record active session pointer: %v", ErrSessionCreateFailed, err)
	}

	s.logger.LogSessionEvent(session.ID, "created", map[string]interface{}{
		"user_id": userID.Hex(),
		"trigger": string(trigger),
	})

	return session, nil
}

func (s *sessionStoreService) GetActiveSessionID(ctx context.Context, userID primitive.ObjectID) (primitive.ObjectID, bool, error) {
	raw, err := s.local.Get(ctx, pointerKey(userID))
	if err != nil {
		if errors.Is(err, localstore.ErrKeyNotFound) {
			return s.adoptRemoteActive(ctx, userID)
		}
		return primitive.NilObjectID, false, fmt.Errorf("failed to read session pointer: %w", err)
	}

	sessionID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		// Corrupt pointer; drop it rather than loop on it forever.
		s.clearPointer(ctx, userID)
		return primitive.NilObjectID, false, nil
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			s.clearPointer(ctx, userID)
			return primitive.NilObjectID, false, nil
		}
		if errors.Is(err, interfaces.ErrStoreUnavailable) {
			// Offline says nothing about whether the session ended;
			// trust the pointer until the store is reachable again.
			return sessionID, true, nil
		}
		return primitive.NilObjectID, false, err
	}

	if !session.Active {
		// Ended elsewhere (another device or process); heal the pointer.
		s.clearPointer(ctx, userID)
		return primitive.NilObjectID, false, nil
	}

	return sessionID, true, nil
}

// adoptRemoteActive covers the pointer-loss case: the local store was
// flushed or never written, but the remote store may still hold a live
// session for this user. Re-recording the pointer keeps the device and
// the store in agreement. An unreachable store reports not-active,
// which is safe because creating a session needs the store anyway.
func (s *sessionStoreService) adoptRemoteActive(ctx context.Context, userID primitive.ObjectID) (primitive.ObjectID, bool, error) {
	session, err := s.sessionRepo.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) || errors.Is(err, interfaces.ErrStoreUnavailable) {
			return primitive.NilObjectID, false, nil
		}
		return primitive.NilObjectID, false, fmt.Errorf("failed to check remote active session: %w", err)
	}

	if err := s.local.Set(ctx, pointerKey(userID), session.ID.Hex()); err != nil {
		s.logger.WithSessionID(session.ID).WithError(err).Warn("Failed to restore active session pointer")
	}

	return session.ID, true, nil
}

func (s *sessionStoreService) GetSession(ctx context.Context, id primitive.ObjectID) (*models.EmergencySession, error) {
	return s.sessionRepo.GetByID(ctx, id)
}

func (s *sessionStoreService) UpdateLocation(ctx context.Context, sessionID primitive.ObjectID, location *models.GeoPoint) error {
	err := s.sessionRepo.UpdateFields(ctx, sessionID, map[string]interface{}{
		"location": location,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrStoreUnavailable) {
			// Accepted locally; the driver syncs the write when the
			// store comes back.
			s.logger.WithSessionID(sessionID).Debug("Location update queued while store offline")
			return nil
		}
		return err
	}

	return nil
}

func (s *sessionStoreService) EndSession(ctx context.Context, sessionID primitive.ObjectID, userID primitive.ObjectID) error {
	err := s.sessionRepo.End(ctx, sessionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrAlreadyInactive) || errors.Is(err, interfaces.ErrNotFound) {
			// Already in the desired end state; still drop the pointer.
			s.clearPointer(ctx, userID)
			return err
		}
		return err
	}

	s.clearPointer(ctx, userID)
	s.logger.LogSessionEvent(sessionID, "ended", map[string]interface{}{
		"user_id": userID.Hex(),
	})

	return nil
}

func (s *sessionStoreService) EnsureFreshToken(ctx context.Context, session *models.EmergencySession) (string, error) {
	token, rotated, err := s.tokens.EnsureFresh(session)
	if err != nil {
		return "", err
	}

	if rotated {
		now := time.Now()
		err := s.sessionRepo.UpdateFields(ctx, session.ID, map[string]interface{}{
			"access_token":     token,
			"token_created_at": now,
		})
		if err != nil {
			return "", fmt.Errorf("failed to persist rotated token: %w", err)
		}
		session.AccessToken = token
		session.TokenCreatedAt = now
	}

	return token, nil
}

func (s *sessionStoreService) clearPointer(ctx context.Context, userID primitive.ObjectID) {
	if err := s.local.Delete(ctx, pointerKey(userID)); err != nil {
		s.logger.WithError(err).Warn("Failed to clear active session pointer")
	}
}
