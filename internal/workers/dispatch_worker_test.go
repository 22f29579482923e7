package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"readyaid/internal/models"
	"readyaid/internal/repositories/interfaces"
	"readyaid/pkg/logger"
	"readyaid/pkg/push"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryDeliveryRepo struct {
	mu      sync.Mutex
	records []*models.DeliveryRecord
}

func (r *memoryDeliveryRepo) CreateIfAbsent(ctx context.Context, record *models.DeliveryRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.SessionID == record.SessionID && existing.ContactID == record.ContactID {
			return false, nil
		}
	}
	record.ID = primitive.NewObjectID()
	r.records = append(r.records, record)
	return true, nil
}

func (r *memoryDeliveryRepo) ListUnsent(ctx context.Context, limit int64) ([]*models.DeliveryRecord, error) {
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

func (r *memoryDeliveryRepo) MarkSent(ctx context.Context, id primitive.ObjectID) error {
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

func (r *memoryDeliveryRepo) GetBySession(ctx context.Context, sessionID primitive.ObjectID) ([]*models.DeliveryRecord, error) {
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

func (r *memoryDeliveryRepo) unsentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, record := range r.records {
		if !record.Sent {
			count++
		}
	}
	return count
}

// scriptedPushProvider accepts every token except those in rejected.
type scriptedPushProvider struct {
	mu       sync.Mutex
	rejected map[string]bool
	sent     []*push.NotificationRequest
}

func (p *scriptedPushProvider) SendNotification(ctx context.Context, request *push.NotificationRequest) (*push.NotificationResponse, error) {
	responses, err := p.SendBulkNotifications(ctx, []*push.NotificationRequest{request})
	if err != nil {
		return nil, err
	}
	return responses[0], nil
}

func (p *scriptedPushProvider) SendBulkNotifications(ctx context.Context, requests []*push.NotificationRequest) ([]*push.NotificationResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	responses := make([]*push.NotificationResponse, len(requests))
	for i, request := range requests {
		if p.rejected[request.Token] {
			responses[i] = &push.NotificationResponse{Success: false, Error: "rejected", Token: request.Token}
			continue
		}
		p.sent = append(p.sent, request)
		responses[i] = &push.NotificationResponse{Success: true, MessageID: primitive.NewObjectID().Hex(), Token: request.Token}
	}
	return responses, nil
}

func seedRecord(t *testing.T, repo *memoryDeliveryRepo, token string) *models.DeliveryRecord {
	t.Helper()
	record := &models.DeliveryRecord{
		SessionID:   primitive.NewObjectID(),
		ContactID:   primitive.NewObjectID(),
		TargetToken: token,
		Title:       "Emergency alert",
		Body:        "Dana Reyes needs help. Tap to see their live location.",
		Payload:     map[string]string{"type": "sos_alert"},
	}
	if _, err := repo.CreateIfAbsent(context.Background(), record); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return record
}

func TestDrainOnceMarksAcceptedSends(t *testing.T) {
	ctx := context.Background()
	repo := &memoryDeliveryRepo{}
	provider := &scriptedPushProvider{rejected: map[string]bool{"bad-token": true}}
	worker := NewDispatchWorker(repo, provider, time.Second, 50, logger.NewNopLogger())

	seedRecord(t, repo, "good-token-1")
	seedRecord(t, repo, "bad-token")
	seedRecord(t, repo, "good-token-2")

	if err := worker.DrainOnce(ctx); err != nil {
		t.Fatalf("DrainOnce failed: %v", err)
	}

	if got := repo.unsentCount(); got != 1 {
		t.Errorf("unsent after drain = %d, want 1 (the rejected token)", got)
	}
	if len(provider.sent) != 2 {
		t.Errorf("provider accepted %d, want 2", len(provider.sent))
	}

	// The rejected record stays queued for the next pass.
	if err := worker.DrainOnce(ctx); err != nil {
		t.Fatalf("second DrainOnce failed: %v", err)
	}
	if got := repo.unsentCount(); got != 1 {
		t.Errorf("unsent after retry = %d, want 1", got)
	}
}

func TestDrainOnceEmptyQueue(t *testing.T) {
	repo := &memoryDeliveryRepo{}
	provider := &scriptedPushProvider{}
	worker := NewDispatchWorker(repo, provider, time.Second, 50, logger.NewNopLogger())

	if err := worker.DrainOnce(context.Background()); err != nil {
		t.Fatalf("DrainOnce on empty queue failed: %v", err)
	}
	if len(provider.sent) != 0 {
		t.Error("provider called with no pending records")
	}
}

func TestDrainOnceBuildsEmergencyRequests(t *testing.T) {
	ctx := context.Background()
	repo := &memoryDeliveryRepo{}
	provider := &scriptedPushProvider{}
	worker := NewDispatchWorker(repo, provider, time.Second, 50, logger.NewNopLogger())

	record := seedRecord(t, repo, "device-token")

	if err := worker.DrainOnce(ctx); err != nil {
		t.Fatalf("DrainOnce failed: %v", err)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("provider accepted %d requests", len(provider.sent))
	}

	request := provider.sent[0]
	if request.Token != record.TargetToken {
		t.Errorf("Token = %q", request.Token)
	}
	if request.Sound != "emergency" || request.Priority != "high" {
		t.Errorf("Sound=%q Priority=%q, want emergency/high", request.Sound, request.Priority)
	}
	if request.Data["type"] != "sos_alert" {
		t.Errorf("Data = %v", request.Data)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := &memoryDeliveryRepo{}
	provider := &scriptedPushProvider{}
	worker := NewDispatchWorker(repo, provider, time.Millisecond, 50, logger.NewNopLogger())

	seedRecord(t, repo, "device-token")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for repo.unsentCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("worker never drained the queue")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}
