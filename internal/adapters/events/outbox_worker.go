package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

// OutboxWorker pulls unpublished outbox records and publishes them.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
	nowFn      func() time.Time
	record     func(outcome string)
}

func NewOutboxWorker(
	logger *slog.Logger,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	maxRetries int,
) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger.With("module", "events.outbox_worker", "layer", "adapter"),
		outbox:     outbox,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   claimTTL,
		maxRetries: maxRetries,
		nowFn:      func() time.Time { return time.Now().UTC() },
		record:     func(string) {},
	}
}

// WithOutcomeRecorder reports each processed record as published, failed or dead_lettered.
func (w *OutboxWorker) WithOutcomeRecorder(record func(outcome string)) *OutboxWorker {
	if record != nil {
		w.record = record
	}
	return w
}

// Run executes the periodic outbox publish loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// BatchResult summarizes one ProcessOnce pass.
type BatchResult struct {
	Claimed      int
	Published    int
	Failed       int
	DeadLettered int
}

// ProcessOnce claims one batch and publishes it.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) (BatchResult, error) {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, w.nowFn().Add(w.claimTTL))
	if err != nil {
		return BatchResult{}, err
	}

	now := w.nowFn()
	result := BatchResult{Claimed: len(records)}
	for _, rec := range records {
		if rec.RetryCount >= w.maxRetries {
			result.DeadLettered++
			w.record("dead_lettered")
			_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", now)
			continue
		}

		if err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey); err != nil {
			result.Failed++
			retries := rec.RetryCount + 1
			if retries >= w.maxRetries {
				result.DeadLettered++
				w.logger.ErrorContext(ctx, "outbox message moved to dlq",
					"operation", "publish_event",
					"outcome", "failure",
					"outbox_id", rec.OutboxID,
					"event_type", rec.EventType,
					"retry_count", retries,
					"error", err,
				)
				w.record("dead_lettered")
				_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now)
				continue
			}

			w.logger.WarnContext(ctx, "outbox publish failed; retry scheduled",
				"operation", "publish_event",
				"outcome", "failure",
				"outbox_id", rec.OutboxID,
				"event_type", rec.EventType,
				"retry_count", retries,
				"error", err,
			)
			w.record("failed")
			_ = w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now)
			continue
		}
		result.Published++
		w.record("published")
		_ = w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now)
	}
	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", len(records),
			"published_count", result.Published,
			"failed_count", result.Failed,
			"dead_lettered_count", result.DeadLettered,
		)
	}
	return result, nil
}
