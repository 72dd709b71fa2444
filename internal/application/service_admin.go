package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

const maxIssueBatch = 500

// IssueLicenses mints unclaimed paid licenses.
func (s *Service) IssueLicenses(ctx context.Context, actor Actor, req IssueLicensesRequest) (IssueLicensesResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return IssueLicensesResponse{}, err
	}
	if req.DurationDays <= 0 || req.MaxStudents <= 0 {
		return IssueLicensesResponse{}, fmt.Errorf("%w: duration_days and max_students must be positive", domain.ErrInvalidInput)
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}
	if count > maxIssueBatch {
		return IssueLicensesResponse{}, fmt.Errorf("%w: count must be <= %d", domain.ErrInvalidInput, maxIssueBatch)
	}
	maxDevices := req.MaxDevices
	if maxDevices <= 0 {
		maxDevices = s.cfg.DefaultMaxDevices
	}

	now := s.nowFn()
	out := make([]IssuedLicense, 0, count)
	for i := 0; i < count; i++ {
		lic, err := s.createWithFreshKey(ctx, req.DurationDays, req.MaxStudents,
			func(key string) domain.License {
				return domain.NewPaidLicense(key, req.DurationDays, req.MaxStudents, maxDevices, now)
			},
			func(l domain.License) ports.OutboxEvent {
				return s.newEvent(eventTypeLicenseIssued, l.ID.String(), map[string]any{
					"license_id":    l.ID.String(),
					"duration_days": l.DurationDays,
					"max_students":  l.MaxStudents,
					"issued_by":     actor.SubjectID.String(),
				})
			},
		)
		if err != nil {
			return IssueLicensesResponse{}, err
		}
		out = append(out, IssuedLicense{
			LicenseID:    lic.ID,
			LicenseKey:   lic.LicenseKey,
			DurationDays: lic.DurationDays,
			MaxStudents:  lic.MaxStudents,
			MaxDevices:   lic.DeviceLimit(),
			Status:       string(lic.Status),
		})
	}

	appLogger().InfoContext(ctx, "paid licenses issued",
		"operation", "issue_licenses",
		"outcome", "success",
		"count", len(out),
		"actor_id", actor.SubjectID.String(),
	)
	return IssueLicensesResponse{Licenses: out}, nil
}

// SupersedeLicense retires a license; this is the only path that releases a binding.
func (s *Service) SupersedeLicense(ctx context.Context, actor Actor, licenseID uuid.UUID) (SupersedeResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return SupersedeResponse{}, err
	}
	from := []domain.Status{
		domain.StatusPending,
		domain.StatusActive,
		domain.StatusTrial,
		domain.StatusSuspended,
		domain.StatusExpired,
	}
	event := s.newEvent(eventTypeLicenseSuperseded, licenseID.String(), map[string]any{
		"license_id": licenseID.String(),
		"actor_id":   actor.SubjectID.String(),
	})
	ok, err := s.licenses.TransitionStatus(ctx, licenseID, from, domain.StatusSuperseded, s.nowFn(), &event)
	if err != nil {
		return SupersedeResponse{}, err
	}
	if !ok {
		if _, err := s.licenses.GetByID(ctx, licenseID); err != nil {
			return SupersedeResponse{}, err
		}
		return SupersedeResponse{}, fmt.Errorf("%w: license already superseded", domain.ErrInvalidState)
	}
	return SupersedeResponse{LicenseID: licenseID, Status: string(domain.StatusSuperseded)}, nil
}

// ResetFingerprint lets a device request a trial again.
func (s *Service) ResetFingerprint(ctx context.Context, actor Actor, fingerprint string) (FingerprintResetResponse, error) {
	if err := s.requireAdmin(actor); err != nil {
		return FingerprintResetResponse{}, err
	}
	fp, err := domain.NormalizeFingerprint(fingerprint)
	if err != nil {
		return FingerprintResetResponse{}, err
	}
	removed, err := s.fingerprints.Delete(ctx, fp)
	if err != nil {
		return FingerprintResetResponse{}, err
	}
	if !removed {
		return FingerprintResetResponse{}, domain.ErrNotFound
	}
	appLogger().InfoContext(ctx, "trial fingerprint reset",
		"operation", "reset_fingerprint",
		"outcome", "success",
		"actor_id", actor.SubjectID.String(),
	)
	return FingerprintResetResponse{Fingerprint: fp, Removed: true}, nil
}

func (s *Service) requireAdmin(actor Actor) error {
	if err := requireCaller(actor); err != nil {
		return err
	}
	if !s.isAdmin(actor) {
		return fmt.Errorf("%w: role %q may not administer licenses", domain.ErrForbidden, actor.Role)
	}
	return nil
}
