package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"readyaid/internal/models"
	"readyaid/internal/repositories/interfaces"
	"readyaid/pkg/localstore"
	"readyaid/pkg/sms"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeSessionRepo is an in-memory SessionRepository. The offline flag
// makes every remote operation report ErrStoreUnavailable; dropWrites
// accepts Create calls but never stores the document.
type fakeSessionRepo struct {
	mu         sync.Mutex
	sessions   map[primitive.ObjectID]*models.EmergencySession
	offline    bool
	dropWrites bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[primitive.ObjectID]*models.EmergencySession)}
}

func (r *fakeSessionRepo) setOffline(offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline = offline
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *models.EmergencySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline {
		return interfaces.ErrStoreUnavailable
	}
	session.ID = primitive.NewObjectID()
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()
	if r.dropWrites {
		return nil
	}
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline {
		return nil, interfaces.ErrStoreUnavailable
	}
	session, ok := r.sessions[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) UpdateFields(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline {
		return interfaces.ErrStoreUnavailable
	}
	session, ok := r.sessions[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "location":
			session.Location = value.(*models.GeoPoint)
		case "access_token":
			session.AccessToken = value.(string)
		case "token_created_at":
			session.TokenCreatedAt = value.(time.Time)
		default:
			return fmt.Errorf("fakeSessionRepo: unhandled field %q", key)
		}
	}
	session.UpdatedAt = time.Now()
	return nil
}

func (r *fakeSessionRepo) End(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline {
		return interfaces.ErrStoreUnavailable
	}
	session, ok := r.sessions[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	if !session.Active {
		return interfaces.ErrAlreadyInactive
	}
	now := time.Now()
	session.Active = false
	session.EndTime = &now
	session.UpdatedAt = now
	return nil
}

func (r *fakeSessionRepo) GetActiveByUser(ctx context.Context, userID primitive.ObjectID) (*models.EmergencySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline {
		return nil, interfaces.ErrStoreUnavailable
	}
	for _, session := range r.sessions {
		if session.UserID == userID && session.Active {
			copied := *session
			return &copied, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *fakeSessionRepo) activeCount(userID primitive.ObjectID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, session := range r.sessions {
		if session.UserID == userID && session.Active {
			count++
		}
	}
	return count
}

// fakeLocalStore is an in-memory localstore.Store. failNextSet makes
// the next Set call fail once, mimicking a pointer store that drops a
// write and then recovers.
type fakeLocalStore struct {
	mu          sync.Mutex
	values      map[string]string
	failNextSet bool
}

func newFakeLocalStore() *fakeLocalStore {
	return &fakeLocalStore{values: make(map[string]string)}
}

func (s *fakeLocalStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return "", localstore.ErrKeyNotFound
	}
	return value, nil
}

func (s *fakeLocalStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextSet {
		s.failNextSet = false
		return fmt.Errorf("fakeLocalStore: set rejected")
	}
	s.values[key] = value
	return nil
}

func (s *fakeLocalStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *fakeLocalStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

type fakeUserRepo struct {
	users map[primitive.ObjectID]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[primitive.ObjectID]*models.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	for _, user := range r.users {
		if user.Phone == phone {
			return user, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

type fakeSettingsRepo struct {
	mu    sync.Mutex
	saved map[primitive.ObjectID]*models.SOSSettings
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{saved: make(map[primitive.ObjectID]*models.SOSSettings)}
}

func (r *fakeSettingsRepo) GetByUser(ctx context.Context, userID primitive.ObjectID) (*models.SOSSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if settings, ok := r.saved[userID]; ok {
		return settings, nil
	}
	return models.DefaultSOSSettings(userID), nil
}

func (r *fakeSettingsRepo) Upsert(ctx context.Context, settings *models.SOSSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[settings.UserID] = settings
	return nil
}

type fakeDeliveryRepo struct {
	mu      sync.Mutex
	records map[string]*models.DeliveryRecord
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{records: make(map[string]*models.DeliveryRecord)}
}

func deliveryKey(sessionID, contactID primitive.ObjectID) string {
	return sessionID.Hex() + ":" + contactID.Hex()
}

func (r *fakeDeliveryRepo) CreateIfAbsent(ctx context.Context, record *models.DeliveryRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deliveryKey(record.SessionID, record.ContactID)
	if _, ok := r.records[key]; ok {
		return false, nil
	}
	record.ID = primitive.NewObjectID()
	record.CreatedAt = time.Now()
	r.records[key] = record
	return true, nil
}

func (r *fakeDeliveryRepo) ListUnsent(ctx context.Context, limit int64) ([]*models.DeliveryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var unsent []*models.DeliveryRecord
	for _, record := range r.records {
		if !record.Sent {
			unsent = append(unsent, record)
		}
		if int64(len(unsent)) == limit {
			break
		}
	}
	return unsent, nil
}

func (r *fakeDeliveryRepo) MarkSent(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.ID == id {
			record.Sent = true
			now := time.Now()
			record.SentAt = &now
			return nil
		}
	}
	return interfaces.ErrNotFound
}

func (r *fakeDeliveryRepo) GetBySession(ctx context.Context, sessionID primitive.ObjectID) ([]*models.DeliveryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.DeliveryRecord
	for _, record := range r.records {
		if record.SessionID == sessionID {
			out = append(out, record)
		}
	}
	return out, nil
}

// fakeComposer reports a scripted outcome and captures the last body.
type fakeComposer struct {
	mu        sync.Mutex
	available bool
	outcome   sms.Outcome
	lastBody  string
	lastTo    []string
	calls     int
}

func (c *fakeComposer) IsAvailable(ctx context.Context) bool {
	return c.available
}

func (c *fakeComposer) Compose(ctx context.Context, recipients []string, body string) (sms.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastBody = body
	c.lastTo = recipients
	return c.outcome, nil
}

type fakeGeocoder struct {
	address string
	err     error
}

func (g *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return g.address, g.err
}
