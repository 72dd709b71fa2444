package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

func seedPending(f fixture, key string, devices ...string) domain.License {
	info, err := domain.ParseLicenseKey(key)
	if err != nil {
		panic(err)
	}
	lic := domain.NewPaidLicense(key, info.DurationDays, info.MaxStudents, 2, f.clock.Now())
	for _, fp := range devices {
		lic.DeviceTokens = append(lic.DeviceTokens, domain.DeviceToken{Fingerprint: fp, RegisteredAt: f.clock.Now(), LastSeen: f.clock.Now()})
	}
	f.store.put(lic)
	return lic
}

func TestTrialActivationScenario(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	trial, err := f.service.IssueTrial(ctx, IssueTrialRequest{DeviceFingerprint: "abc123"})
	if err != nil {
		t.Fatalf("issue trial: %v", err)
	}

	u1, u2 := planner(), planner()
	resp, err := f.service.Activate(ctx, u1, ActivateRequest{LicenseKey: trial.LicenseKey, DeviceFingerprint: "abc123"})
	if err != nil {
		t.Fatalf("activate as U1: %v", err)
	}
	if resp.License.DurationDays != 7 || resp.License.MaxStudents != 5 || resp.Message == "" {
		t.Fatalf("unexpected activation response: %+v", resp)
	}

	lic, _ := memLicenses{f.store}.GetByKey(ctx, trial.LicenseKey)
	if !lic.OwnedBy(u1.SubjectID) || lic.Status != domain.StatusTrial {
		t.Fatalf("expected trial owned by U1, got planner=%v status=%s", lic.PlannerID, lic.Status)
	}
	if lic.ActivatedAt == nil || lic.ActivatedByUserID == nil || *lic.ActivatedByUserID != u1.SubjectID {
		t.Fatalf("activation audit fields not set: %+v", lic)
	}
	if len(lic.DeviceTokens) != 1 {
		t.Fatalf("same device must not be registered twice, got %+v", lic.DeviceTokens)
	}

	if _, err := f.service.Activate(ctx, u2, ActivateRequest{LicenseKey: trial.LicenseKey}); !errors.Is(err, domain.ErrOwnedByOther) {
		t.Fatalf("expected ErrOwnedByOther for U2, got %v", err)
	}
	if _, err := f.service.Activate(ctx, u1, ActivateRequest{LicenseKey: trial.LicenseKey}); !errors.Is(err, domain.ErrAlreadyActivated) {
		t.Fatalf("expected ErrAlreadyActivated for U1, got %v", err)
	}

	after, _ := memLicenses{f.store}.GetByKey(ctx, trial.LicenseKey)
	if !after.OwnedBy(u1.SubjectID) || !after.ActivatedAt.Equal(*lic.ActivatedAt) {
		t.Fatalf("ownership and activated_at must be immutable")
	}
}

func TestActivatePendingLicenseSetsPaidExpiry(t *testing.T) {
	t.Parallel()

	f := newFixture()
	lic := seedPending(f, "30D-15P-ABCDEF")
	u := planner()

	resp, err := f.service.Activate(context.Background(), u, ActivateRequest{LicenseKey: " 30d-15p-abcdef "})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if resp.License.DurationDays != 30 || resp.License.MaxStudents != 15 {
		t.Fatalf("unexpected entitlement: %+v", resp.License)
	}
	got := f.store.license(lic.ID)
	if got.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", got.Status)
	}
	if want := f.clock.Now().Add(30 * domain.Day); got.ExpiresAt == nil || !got.ExpiresAt.Equal(want) {
		t.Fatalf("expected expires_at %s, got %v", want, got.ExpiresAt)
	}
	if types := f.store.eventTypes(); len(types) != 1 || types[0] != eventTypeLicenseActivated {
		t.Fatalf("expected license.activated event, got %v", types)
	}
}

func TestActivateRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		key     string
		prepare func(f fixture)
		want    error
	}{
		{name: "malformed", key: "NOT-A-KEY", want: domain.ErrInvalidFormat},
		{name: "confusable characters", key: "30D-15P-ABCDE0", want: domain.ErrInvalidFormat},
		{name: "unknown", key: "30D-15P-ZZZZZZ", want: domain.ErrNotFound},
		{
			name: "expired status",
			key:  "30D-15P-EXPRED",
			prepare: func(f fixture) {
				lic := seedPending(f, "30D-15P-EXPRED")
				lic.Status = domain.StatusExpired
				f.store.put(lic)
			},
			want: domain.ErrExpired,
		},
		{
			name: "lapsed trial",
			key:  "7D-5P-LAPSED",
			prepare: func(f fixture) {
				lic := domain.NewTrialLicense("7D-5P-LAPSED", "d1", 7, 5, 2, "", f.clock.Now().Add(-8*domain.Day))
				f.store.put(lic)
			},
			want: domain.ErrExpired,
		},
		{
			name: "superseded",
			key:  "30D-15P-SPRSDD",
			prepare: func(f fixture) {
				lic := seedPending(f, "30D-15P-SPRSDD")
				lic.Status = domain.StatusSuperseded
				f.store.put(lic)
			},
			want: domain.ErrInvalidState,
		},
		{
			name: "suspended",
			key:  "30D-15P-SPNDED",
			prepare: func(f fixture) {
				lic := seedPending(f, "30D-15P-SPNDED")
				lic.Status = domain.StatusSuspended
				f.store.put(lic)
			},
			want: domain.ErrInvalidState,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			if tc.prepare != nil {
				tc.prepare(f)
			}
			_, err := f.service.Activate(context.Background(), planner(), ActivateRequest{LicenseKey: tc.key})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			for _, lic := range f.store.licenses {
				if lic.PlannerID != nil {
					t.Fatalf("rejected activation must not bind an owner")
				}
			}
		})
	}
}

func TestActivateRequiresCaller(t *testing.T) {
	t.Parallel()

	f := newFixture()
	seedPending(f, "30D-15P-ABCDEF")
	_, err := f.service.Activate(context.Background(), Actor{}, ActivateRequest{LicenseKey: "30D-15P-ABCDEF"})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestConcurrentActivationHasExactlyOneWinner(t *testing.T) {
	t.Parallel()

	f := newFixture()
	lic := seedPending(f, "30D-15P-RACEKY")

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		owned   int
		unknown []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.service.Activate(context.Background(), planner(), ActivateRequest{LicenseKey: lic.LicenseKey})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrOwnedByOther):
				owned++
			default:
				unknown = append(unknown, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 || owned != callers-1 || len(unknown) != 0 {
		t.Fatalf("expected 1 winner and %d OwnedByOther, got wins=%d owned=%d other=%v", callers-1, wins, owned, unknown)
	}
}

func TestActivateLosingToSupersedeReportsInvalidState(t *testing.T) {
	t.Parallel()

	f := newFixture()
	lic := seedPending(f, "30D-15P-SPRCDE")
	f.store.beforeClaim = func() {
		current := f.store.license(lic.ID)
		current.Status = domain.StatusSuperseded
		f.store.put(current)
	}

	_, err := f.service.Activate(context.Background(), planner(), ActivateRequest{LicenseKey: lic.LicenseKey})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState after a concurrent supersede, got %v", err)
	}
	if got := f.store.license(lic.ID); got.PlannerID != nil || got.Status != domain.StatusSuperseded {
		t.Fatalf("superseded license must stay unowned: %+v", got)
	}
}

func TestActivateDeviceLimitReturnsRegisteredDevices(t *testing.T) {
	t.Parallel()

	f := newFixture()
	lic := seedPending(f, "30D-15P-DEVCES", "laptop", "tablet")

	_, err := f.service.Activate(context.Background(), planner(), ActivateRequest{LicenseKey: lic.LicenseKey, DeviceFingerprint: "phone"})
	var limit *domain.DeviceLimitError
	if !errors.As(err, &limit) {
		t.Fatalf("expected DeviceLimitError, got %v", err)
	}
	if limit.MaxDevices != 2 || len(limit.Devices) != 2 {
		t.Fatalf("expected 2 registered devices, got %+v", limit)
	}
	if limit.Devices[0].Fingerprint != "laptop" || limit.Devices[1].Fingerprint != "tablet" {
		t.Fatalf("unexpected devices: %+v", limit.Devices)
	}
	if f.store.license(lic.ID).PlannerID != nil {
		t.Fatalf("device refusal must not claim the license")
	}
}

func TestActivateHonorsPerLicenseDeviceCeiling(t *testing.T) {
	t.Parallel()

	f := newFixture()
	lic := seedPending(f, "30D-15P-THREEE", "laptop", "tablet")
	lic.MaxDevices = 3
	f.store.put(lic)

	if _, err := f.service.Activate(context.Background(), planner(), ActivateRequest{LicenseKey: lic.LicenseKey, DeviceFingerprint: "phone"}); err != nil {
		t.Fatalf("third device within ceiling of 3: %v", err)
	}
	if got := len(f.store.license(lic.ID).DeviceTokens); got != 3 {
		t.Fatalf("expected 3 devices, got %d", got)
	}
}

func TestOwnerReactivationFromNewDeviceBindsOrRefuses(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	lic := seedPending(f, "30D-15P-WNERSS")
	owner := planner()

	if _, err := f.service.Activate(ctx, owner, ActivateRequest{LicenseKey: lic.LicenseKey, DeviceFingerprint: "laptop"}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	_, err := f.service.Activate(ctx, owner, ActivateRequest{LicenseKey: lic.LicenseKey, DeviceFingerprint: "tablet"})
	if !errors.Is(err, domain.ErrAlreadyActivated) {
		t.Fatalf("expected ErrAlreadyActivated, got %v", err)
	}
	if got := len(f.store.license(lic.ID).DeviceTokens); got != 2 {
		t.Fatalf("expected tablet registered, got %d devices", got)
	}

	_, err = f.service.Activate(ctx, owner, ActivateRequest{LicenseKey: lic.LicenseKey, DeviceFingerprint: "phone"})
	if !errors.Is(err, domain.ErrDeviceLimit) {
		t.Fatalf("expected ErrDeviceLimit for third device, got %v", err)
	}
}

func TestActivationRateLimitedPerCaller(t *testing.T) {
	t.Parallel()

	f := newFixture(func(d *Dependencies) { d.Config.ActivationRateLimitThreshold = 2 })
	u := planner()
	for i := 0; i < 2; i++ {
		_, err := f.service.Activate(context.Background(), u, ActivateRequest{LicenseKey: "30D-15P-ZZZZZZ"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("attempt %d: expected ErrNotFound, got %v", i, err)
		}
	}
	_, err := f.service.Activate(context.Background(), u, ActivateRequest{LicenseKey: "30D-15P-ZZZZZZ"})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if !strings.HasPrefix(firstKey(f.limits), "activate:user:") {
		t.Fatalf("unexpected limiter key %q", firstKey(f.limits))
	}
}

func firstKey(l *fakeRateLimits) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.counts {
		return k
	}
	return ""
}

func TestGetEntitlementReportsDaysRemaining(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	trial, _ := f.service.IssueTrial(ctx, IssueTrialRequest{DeviceFingerprint: "abc123"})
	u := planner()
	if _, err := f.service.Activate(ctx, u, ActivateRequest{LicenseKey: trial.LicenseKey}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	f.clock.Advance(2*domain.Day + time.Hour)

	view, err := f.service.GetEntitlement(ctx, u.SubjectID)
	if err != nil {
		t.Fatalf("entitlement: %v", err)
	}
	if view.DaysRemaining == nil || *view.DaysRemaining != 5 {
		t.Fatalf("expected 5 days remaining, got %v", view.DaysRemaining)
	}
	if !view.IsTrial || view.MaxStudents != 5 || view.MaxDevices != 2 {
		t.Fatalf("unexpected entitlement view: %+v", view)
	}

	if _, err := f.service.GetEntitlement(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for planner without license, got %v", err)
	}
}
