package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

type memStore struct {
	mu            sync.Mutex
	licenses      map[uuid.UUID]domain.License
	fingerprints  map[string]domain.DeviceFingerprintRecord
	notifications map[string]domain.TrialNotification
	contacts      map[uuid.UUID]domain.PlannerContact
	events        []ports.OutboxEvent

	fingerprintInsertErr error
	upsertErr            error
	beforeClaim          func()
}

func newMemStore() *memStore {
	return &memStore{
		licenses:      map[uuid.UUID]domain.License{},
		fingerprints:  map[string]domain.DeviceFingerprintRecord{},
		notifications: map[string]domain.TrialNotification{},
		contacts:      map[uuid.UUID]domain.PlannerContact{},
	}
}

func cloneLicense(l domain.License) domain.License {
	out := l
	out.DeviceTokens = append([]domain.DeviceToken(nil), l.DeviceTokens...)
	return out
}

func (m *memStore) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

func (m *memStore) license(id uuid.UUID) domain.License {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneLicense(m.licenses[id])
}

func (m *memStore) put(l domain.License) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.licenses[l.ID] = cloneLicense(l)
}

type memLicenses struct{ *memStore }

func (r memLicenses) Create(_ context.Context, l domain.License, event *ports.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.licenses {
		if existing.LicenseKey == l.LicenseKey {
			return domain.ErrConflict
		}
	}
	r.licenses[l.ID] = cloneLicense(l)
	if event != nil {
		r.events = append(r.events, *event)
	}
	return nil
}

func (r memLicenses) GetByID(_ context.Context, id uuid.UUID) (domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.licenses[id]
	if !ok {
		return domain.License{}, domain.ErrNotFound
	}
	return cloneLicense(l), nil
}

func (r memLicenses) GetByKey(_ context.Context, key string) (domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.licenses {
		if l.LicenseKey == key {
			return cloneLicense(l), nil
		}
	}
	return domain.License{}, domain.ErrNotFound
}

func (r memLicenses) GetCurrentByPlanner(_ context.Context, plannerID uuid.UUID) (domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		best  domain.License
		found bool
	)
	for _, l := range r.licenses {
		if !l.OwnedBy(plannerID) || l.Status == domain.StatusSuperseded {
			continue
		}
		if !found || (l.ActivatedAt != nil && best.ActivatedAt != nil && l.ActivatedAt.After(*best.ActivatedAt)) {
			best, found = l, true
		}
	}
	if !found {
		return domain.License{}, domain.ErrNotFound
	}
	return cloneLicense(best), nil
}

func (r memLicenses) ClaimUnowned(_ context.Context, claimed domain.License, event ports.OutboxEvent) (bool, error) {
	if r.beforeClaim != nil {
		r.beforeClaim()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.licenses[claimed.ID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if current.PlannerID != nil {
		return false, nil
	}
	if current.Status != domain.StatusPending && current.Status != domain.StatusTrial {
		return false, nil
	}
	r.licenses[claimed.ID] = cloneLicense(claimed)
	r.events = append(r.events, event)
	return true, nil
}

func (r memLicenses) MutateDevices(_ context.Context, id uuid.UUID, fn func(domain.License) ([]domain.DeviceToken, error)) (domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.licenses[id]
	if !ok {
		return domain.License{}, domain.ErrNotFound
	}
	devices, err := fn(cloneLicense(current))
	if err != nil {
		return domain.License{}, err
	}
	current.DeviceTokens = devices
	r.licenses[id] = cloneLicense(current)
	return cloneLicense(current), nil
}

func (r memLicenses) TransitionStatus(_ context.Context, id uuid.UUID, from []domain.Status, to domain.Status, at time.Time, event *ports.OutboxEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.licenses[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if current.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	current.Status = to
	current.UpdatedAt = at
	r.licenses[id] = current
	if event != nil {
		r.events = append(r.events, *event)
	}
	return true, nil
}

func (r memLicenses) ListNotifiableTrials(_ context.Context) ([]domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.License{}
	for _, l := range r.licenses {
		if l.IsTrial && l.Status == domain.StatusTrial && l.PlannerID != nil {
			out = append(out, cloneLicense(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LicenseKey < out[j].LicenseKey })
	return out, nil
}

type memFingerprints struct{ *memStore }

func (r memFingerprints) Get(_ context.Context, fp string) (domain.DeviceFingerprintRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.fingerprints[fp]
	if !ok {
		return domain.DeviceFingerprintRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (r memFingerprints) Insert(_ context.Context, rec domain.DeviceFingerprintRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fingerprintInsertErr != nil {
		return r.fingerprintInsertErr
	}
	if _, ok := r.fingerprints[rec.Fingerprint]; ok {
		return domain.ErrConflict
	}
	r.fingerprints[rec.Fingerprint] = rec
	return nil
}

func (r memFingerprints) Delete(_ context.Context, fp string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.fingerprints[fp]
	delete(r.fingerprints, fp)
	return ok, nil
}

type memNotifications struct{ *memStore }

func notificationKey(id uuid.UUID, kind domain.NotificationType) string {
	return id.String() + "/" + string(kind)
}

func (r memNotifications) Get(_ context.Context, id uuid.UUID, kind domain.NotificationType) (*domain.TrialNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.notifications[notificationKey(id, kind)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r memNotifications) Upsert(_ context.Context, rec domain.TrialNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	key := notificationKey(rec.LicenseID, rec.Type)
	if prev, ok := r.notifications[key]; ok {
		rec.EmailSent = rec.EmailSent || prev.EmailSent
		rec.SMSSent = rec.SMSSent || prev.SMSSent
	}
	r.notifications[key] = rec
	return nil
}

type memPlanners struct{ *memStore }

func (r memPlanners) GetContact(_ context.Context, id uuid.UUID) (domain.PlannerContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return domain.PlannerContact{}, domain.ErrNotFound
	}
	return c, nil
}

type memOutbox struct{ *memStore }

func (r memOutbox) Enqueue(_ context.Context, e ports.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r memOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}

func (r memOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }

func (r memOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

func (r memOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

type fakeRateLimits struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (f *fakeRateLimits) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return f.counts[key], nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	fail map[string]error
}

func (f *fakeSender) record(to string) (ports.DeliveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[to]; err != nil {
		return ports.DeliveryResult{}, err
	}
	f.sent = append(f.sent, to)
	return ports.DeliveryResult{MessageID: "msg-" + to}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) SendEmail(_ context.Context, msg ports.EmailMessage) (ports.DeliveryResult, error) {
	return f.record(msg.To)
}

func (f *fakeSender) SendSMS(_ context.Context, to, _ string) (ports.DeliveryResult, error) {
	return f.record(to)
}

type fakeRenderer struct{}

func (fakeRenderer) Render(kind domain.NotificationType, data ports.ReminderData) (ports.RenderedReminder, error) {
	return ports.RenderedReminder{
		Subject: "trial " + string(kind),
		HTML:    "<p>" + data.LicenseKey + "</p>",
		Text:    data.LicenseKey,
		SMS:     data.LicenseKey,
	}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	service *Service
	store   *memStore
	clock   *clock
	limits  *fakeRateLimits
	email   *fakeSender
	sms     *fakeSender
}

var errBoom = errors.New("boom")

func newFixture(mutators ...func(*Dependencies)) fixture {
	store := newMemStore()
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	limits := &fakeRateLimits{}
	email := &fakeSender{fail: map[string]error{}}
	sms := &fakeSender{fail: map[string]error{}}
	deps := Dependencies{
		Config: Config{
			TrialDurationDays:            7,
			TrialMaxStudents:             5,
			DefaultMaxDevices:            2,
			TrialRateLimitThreshold:      100,
			TrialRateLimitWindow:         time.Hour,
			ActivationRateLimitThreshold: 100,
			ActivationRateLimitWindow:    10 * time.Minute,
			SMSEnabled:                   true,
		},
		Licenses:      memLicenses{store},
		Fingerprints:  memFingerprints{store},
		Notifications: memNotifications{store},
		Planners:      memPlanners{store},
		Outbox:        memOutbox{store},
		RateLimits:    limits,
		Email:         email,
		SMS:           sms,
		Renderer:      fakeRenderer{},
		Clock:         c.Now,
	}
	for _, mutate := range mutators {
		mutate(&deps)
	}
	return fixture{
		service: NewService(deps),
		store:   store,
		clock:   c,
		limits:  limits,
		email:   email,
		sms:     sms,
	}
}

func planner() Actor {
	return Actor{SubjectID: uuid.New(), Role: "authenticated"}
}
