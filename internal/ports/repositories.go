package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

// LicenseRepository is the License Record Store.
// Ownership changes only go through ClaimUnowned, which must be a single conditional write.
type LicenseRepository interface {
	// Create inserts a license and, when event is non-nil, its outbox row in the same transaction.
	// A license_key collision returns domain.ErrConflict.
	Create(ctx context.Context, license domain.License, event *OutboxEvent) error
	GetByID(ctx context.Context, licenseID uuid.UUID) (domain.License, error)
	GetByKey(ctx context.Context, licenseKey string) (domain.License, error)
	// GetCurrentByPlanner returns the planner's most recently activated, non-superseded license.
	GetCurrentByPlanner(ctx context.Context, plannerID uuid.UUID) (domain.License, error)
	// ClaimUnowned persists an activation only while planner_id is still NULL.
	// It reports false when a concurrent writer claimed the row first.
	ClaimUnowned(ctx context.Context, claimed domain.License, event OutboxEvent) (bool, error)
	// MutateDevices locks the license row, hands the current state to fn and stores
	// the device list it returns. Errors from fn abort without writing.
	MutateDevices(ctx context.Context, licenseID uuid.UUID, fn func(current domain.License) ([]domain.DeviceToken, error)) (domain.License, error)
	// TransitionStatus moves a license to `to` only from one of the `from` states.
	TransitionStatus(ctx context.Context, licenseID uuid.UUID, from []domain.Status, to domain.Status, at time.Time, event *OutboxEvent) (bool, error)
	// ListNotifiableTrials returns claimed trials still in status trial.
	ListNotifiableTrials(ctx context.Context) ([]domain.License, error)
}

// FingerprintRepository guards trial issuance per device.
type FingerprintRepository interface {
	Get(ctx context.Context, fingerprint string) (domain.DeviceFingerprintRecord, error)
	// Insert returns domain.ErrConflict when the fingerprint already exists.
	Insert(ctx context.Context, record domain.DeviceFingerprintRecord) error
	Delete(ctx context.Context, fingerprint string) (bool, error)
}

// TrialNotificationRepository stores reminder send-state keyed by (license, type).
type TrialNotificationRepository interface {
	// Get returns nil, nil when no reminder was attempted yet.
	Get(ctx context.Context, licenseID uuid.UUID, kind domain.NotificationType) (*domain.TrialNotification, error)
	// Upsert writes the outcome; a channel already marked sent stays sent.
	Upsert(ctx context.Context, record domain.TrialNotification) error
}

// PlannerDirectory resolves license owners to contact details.
type PlannerDirectory interface {
	GetContact(ctx context.Context, plannerID uuid.UUID) (domain.PlannerContact, error)
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for license events.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
