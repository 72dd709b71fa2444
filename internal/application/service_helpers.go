package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

const serviceName = "planner-license-service"

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "application",
		"layer", "application",
	)
}

// enforceRateLimit counts a hit against key and rejects once threshold is exceeded.
// Store failures fail open.
func (s *Service) enforceRateLimit(ctx context.Context, key string, threshold int, window time.Duration) error {
	if s.rateLimits == nil || threshold <= 0 || window <= 0 {
		return nil
	}
	if strings.TrimSpace(key) == "" {
		return nil
	}

	count, err := s.rateLimits.Hit(ctx, key, window)
	if err != nil {
		appLogger().WarnContext(ctx, "rate-limit state unavailable",
			"operation", "rate_limit",
			"outcome", "warning",
			"key", key,
			"error", err,
		)
		return nil
	}
	if count > int64(threshold) {
		return domain.ErrRateLimited
	}
	return nil
}

// newEvent serializes payload into an outbox event keyed for partitioning.
func (s *Service) newEvent(eventType, partitionKey string, payload map[string]any) ports.OutboxEvent {
	now := s.nowFn()
	payload["occurred_at"] = now.Format(time.RFC3339)
	raw, err := json.Marshal(payload)
	if err != nil {
		appLogger().Error("failed to encode event payload",
			"operation", "encode_event",
			"outcome", "failure",
			"event_type", eventType,
			"partition_key", partitionKey,
			"error", err,
		)
		raw = []byte("{}")
	}
	return ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      raw,
		OccurredAt:   now,
	}
}

// enqueue writes an event outside a domain transaction; failures are logged only.
func (s *Service) enqueue(ctx context.Context, event ports.OutboxEvent) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		appLogger().WarnContext(ctx, "failed to enqueue outbox event",
			"operation", "enqueue_event",
			"outcome", "failure",
			"event_type", event.EventType,
			"error", err,
		)
	}
}

// createWithFreshKey inserts the license built by build, regenerating the key on collision.
func (s *Service) createWithFreshKey(
	ctx context.Context,
	durationDays, maxStudents int,
	build func(key string) domain.License,
	eventFor func(domain.License) ports.OutboxEvent,
) (domain.License, error) {
	for attempt := 0; attempt < s.cfg.KeyGenerationAttempts; attempt++ {
		lic := build(s.keyFn(durationDays, maxStudents))
		event := eventFor(lic)
		err := s.licenses.Create(ctx, lic, &event)
		if err == nil {
			return lic, nil
		}
		if domain.IsConflict(err) {
			appLogger().InfoContext(ctx, "license key collision, regenerating",
				"operation", "generate_license_key",
				"outcome", "retry",
				"attempt", attempt+1,
			)
			continue
		}
		return domain.License{}, fmt.Errorf("create license: %w", err)
	}
	return domain.License{}, domain.ErrKeySpaceExhausted
}

func (s *Service) isAdmin(actor Actor) bool {
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if role == "" {
		return false
	}
	for _, allowed := range s.cfg.AdminRoles {
		if strings.EqualFold(strings.TrimSpace(allowed), role) {
			return true
		}
	}
	return false
}

func requireCaller(actor Actor) error {
	if actor.SubjectID == uuid.Nil {
		return domain.ErrUnauthorized
	}
	return nil
}
