package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

type memLicenses struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.License
}

func newMemLicenses() *memLicenses {
	return &memLicenses{rows: map[uuid.UUID]domain.License{}}
}

func (m *memLicenses) Create(_ context.Context, l domain.License, _ *ports.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.LicenseKey == l.LicenseKey {
			return domain.ErrConflict
		}
	}
	m.rows[l.ID] = l
	return nil
}

func (m *memLicenses) GetByID(_ context.Context, id uuid.UUID) (domain.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return domain.License{}, domain.ErrNotFound
	}
	return l, nil
}

func (m *memLicenses) GetByKey(_ context.Context, key string) (domain.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.rows {
		if l.LicenseKey == key {
			return l, nil
		}
	}
	return domain.License{}, domain.ErrNotFound
}

func (m *memLicenses) GetCurrentByPlanner(_ context.Context, plannerID uuid.UUID) (domain.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.rows {
		if l.OwnedBy(plannerID) && l.Status != domain.StatusSuperseded {
			return l, nil
		}
	}
	return domain.License{}, domain.ErrNotFound
}

func (m *memLicenses) ClaimUnowned(_ context.Context, claimed domain.License, _ ports.OutboxEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[claimed.ID].PlannerID != nil {
		return false, nil
	}
	m.rows[claimed.ID] = claimed
	return true, nil
}

func (m *memLicenses) MutateDevices(_ context.Context, id uuid.UUID, fn func(domain.License) ([]domain.DeviceToken, error)) (domain.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return domain.License{}, domain.ErrNotFound
	}
	devices, err := fn(l)
	if err != nil {
		return domain.License{}, err
	}
	l.DeviceTokens = devices
	m.rows[id] = l
	return l, nil
}

func (m *memLicenses) TransitionStatus(_ context.Context, id uuid.UUID, from []domain.Status, to domain.Status, at time.Time, _ *ports.OutboxEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if l.Status == s {
			l.Status = to
			l.UpdatedAt = at
			m.rows[id] = l
			return true, nil
		}
	}
	return false, nil
}

func (m *memLicenses) ListNotifiableTrials(context.Context) ([]domain.License, error) {
	return nil, nil
}

type memFingerprints struct {
	mu   sync.Mutex
	rows map[string]domain.DeviceFingerprintRecord
}

func (m *memFingerprints) Get(_ context.Context, fp string) (domain.DeviceFingerprintRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[fp]
	if !ok {
		return domain.DeviceFingerprintRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *memFingerprints) Insert(_ context.Context, rec domain.DeviceFingerprintRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[rec.Fingerprint]; ok {
		return domain.ErrConflict
	}
	m.rows[rec.Fingerprint] = rec
	return nil
}

func (m *memFingerprints) Delete(_ context.Context, fp string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[fp]
	delete(m.rows, fp)
	return ok, nil
}

type memRateLimits struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *memRateLimits) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	return m.counts[key], nil
}

type noNotifications struct{}

func (noNotifications) Get(context.Context, uuid.UUID, domain.NotificationType) (*domain.TrialNotification, error) {
	return nil, nil
}

func (noNotifications) Upsert(context.Context, domain.TrialNotification) error { return nil }

type noPlanners struct{}

func (noPlanners) GetContact(context.Context, uuid.UUID) (domain.PlannerContact, error) {
	return domain.PlannerContact{}, domain.ErrNotFound
}

type fakeVerifier struct {
	tokens map[string]ports.AuthClaims
}

func (f fakeVerifier) Verify(token string) (ports.AuthClaims, error) {
	claims, ok := f.tokens[token]
	if !ok {
		return ports.AuthClaims{}, errors.New("token is malformed")
	}
	return claims, nil
}
