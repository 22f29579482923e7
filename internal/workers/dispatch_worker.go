package workers

import (
	"context"
	"time"

	"readyaid/internal/models"
	"readyaid/internal/repositories/interfaces"
	"readyaid/pkg/logger"
	"readyaid/pkg/push"
)

// DispatchWorker is the delivery side of the push channel: it drains
// unsent DeliveryRecords through the configured push provider and
// advances their sent flag. The orchestrator only ever persists records;
// it never waits on this loop.
type DispatchWorker struct {
	deliveryRepo interfaces.DeliveryRepository
	provider     push.Provider
	interval     time.Duration
	batchSize    int64
	logger       *logger.Logger
}

func NewDispatchWorker(deliveryRepo interfaces.DeliveryRepository, provider push.Provider, interval time.Duration, batchSize int64, log *logger.Logger) *DispatchWorker {
	return &DispatchWorker{
		deliveryRepo: deliveryRepo,
		provider:     provider,
		interval:     interval,
		batchSize:    batchSize,
		logger:       log,
	}
}

// Run polls until the context is cancelled.
func (w *DispatchWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.DrainOnce(ctx); err != nil {
				w.logger.WithError(err).Warn("Dispatch pass failed")
			}
		}
	}
}

// DrainOnce sends one batch of pending records. A failed send leaves
// its record unsent for the next pass; only accepted sends advance.
func (w *DispatchWorker) DrainOnce(ctx context.Context) error {
	records, err := w.deliveryRepo.ListUnsent(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	requests := make([]*push.NotificationRequest, len(records))
	for i, record := range records {
		requests[i] = w.buildRequest(record)
	}

	responses, err := w.provider.SendBulkNotifications(ctx, requests)
	if err != nil {
		return err
	}

	for i, response := range responses {
		if response == nil || !response.Success {
			continue
		}
		if err := w.deliveryRepo.MarkSent(ctx, records[i].ID); err != nil {
			w.logger.WithError(err).Warn("Failed to mark delivery sent")
		}
	}

	return nil
}

func (w *DispatchWorker) buildRequest(record *models.DeliveryRecord) *push.NotificationRequest {
	return &push.NotificationRequest{
		Token:    record.TargetToken,
		Title:    record.Title,
		Body:     record.Body,
		Data:     record.Payload,
		Sound:    "emergency",
		Priority: "high",
	}
}
