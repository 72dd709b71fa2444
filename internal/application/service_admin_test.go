package application

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

func admin() Actor {
	return Actor{SubjectID: uuid.New(), Role: "admin"}
}

func TestIssueLicensesRequiresAdminRole(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.IssueLicenses(context.Background(), planner(), IssueLicensesRequest{DurationDays: 30, MaxStudents: 15})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.service.IssueLicenses(context.Background(), Actor{}, IssueLicensesRequest{DurationDays: 30, MaxStudents: 15}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestIssueLicensesCreatesPendingKeys(t *testing.T) {
	t.Parallel()

	f := newFixture()
	resp, err := f.service.IssueLicenses(context.Background(), admin(), IssueLicensesRequest{DurationDays: 30, MaxStudents: 15, Count: 3})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(resp.Licenses) != 3 {
		t.Fatalf("expected 3 licenses, got %d", len(resp.Licenses))
	}
	pattern := regexp.MustCompile(`^30D-15P-[A-HJ-NP-Z2-9]{6}$`)
	seen := map[string]bool{}
	for _, l := range resp.Licenses {
		if !pattern.MatchString(l.LicenseKey) {
			t.Fatalf("unexpected key %q", l.LicenseKey)
		}
		if l.Status != string(domain.StatusPending) || l.MaxDevices != 2 {
			t.Fatalf("unexpected issued license: %+v", l)
		}
		seen[l.LicenseKey] = true
		stored := f.store.license(l.LicenseID)
		if stored.PlannerID != nil || stored.IsTrial {
			t.Fatalf("paid license must be unclaimed: %+v", stored)
		}
	}
	if len(seen) != 3 {
		t.Fatalf("expected distinct keys, got %v", seen)
	}
}

func TestIssueLicensesRejectsInvalidEntitlement(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.IssueLicenses(context.Background(), admin(), IssueLicensesRequest{DurationDays: 0, MaxStudents: 15})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSupersedeReleasesLicenseFromActivation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	lic := seedPending(f, "30D-15P-RETREE")

	resp, err := f.service.SupersedeLicense(ctx, admin(), lic.ID)
	if err != nil {
		t.Fatalf("supersede: %v", err)
	}
	if resp.Status != string(domain.StatusSuperseded) {
		t.Fatalf("unexpected status %q", resp.Status)
	}
	if _, err := f.service.Activate(ctx, planner(), ActivateRequest{LicenseKey: lic.LicenseKey}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState after supersede, got %v", err)
	}
	if _, err := f.service.SupersedeLicense(ctx, admin(), lic.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second supersede, got %v", err)
	}
	if _, err := f.service.SupersedeLicense(ctx, admin(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown license, got %v", err)
	}
}

func TestResetFingerprintAllowsNewTrial(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	if _, err := f.service.IssueTrial(ctx, IssueTrialRequest{DeviceFingerprint: "abc123"}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.service.ResetFingerprint(ctx, admin(), "abc123"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := f.service.IssueTrial(ctx, IssueTrialRequest{DeviceFingerprint: "abc123"}); err != nil {
		t.Fatalf("trial after reset: %v", err)
	}
	if _, err := f.service.ResetFingerprint(ctx, admin(), "never-seen"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
