package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

// IssueTrial mints the single trial license a device fingerprint is entitled to.
func (s *Service) IssueTrial(ctx context.Context, req IssueTrialRequest) (IssueTrialResponse, error) {
	fingerprint, err := domain.NormalizeFingerprint(req.DeviceFingerprint)
	if err != nil {
		s.observer.TrialIssued("invalid")
		return IssueTrialResponse{}, err
	}
	ip := strings.TrimSpace(req.IPAddress)
	limitKey := strings.TrimSpace(req.ClientIP)
	if limitKey == "" {
		limitKey = ip
	}
	if limitKey != "" {
		if err := s.enforceRateLimit(ctx, "trial:ip:"+limitKey, s.cfg.TrialRateLimitThreshold, s.cfg.TrialRateLimitWindow); err != nil {
			s.observer.TrialIssued("rate_limited")
			return IssueTrialResponse{}, err
		}
	}

	existing, err := s.fingerprints.Get(ctx, fingerprint)
	switch {
	case err == nil:
		s.observer.TrialIssued("already_used")
		return IssueTrialResponse{}, &domain.TrialUsedError{FirstTrialAt: existing.FirstTrialAt}
	case !errors.Is(err, domain.ErrNotFound):
		return IssueTrialResponse{}, fmt.Errorf("lookup fingerprint: %w", err)
	}

	now := s.nowFn()
	days, students, devices := s.cfg.TrialDurationDays, s.cfg.TrialMaxStudents, s.cfg.DefaultMaxDevices
	lic, err := s.createWithFreshKey(ctx, days, students,
		func(key string) domain.License {
			return domain.NewTrialLicense(key, fingerprint, days, students, devices, req.UserEmail, now)
		},
		func(l domain.License) ports.OutboxEvent {
			return s.newEvent(eventTypeTrialIssued, l.ID.String(), map[string]any{
				"license_id":       l.ID.String(),
				"license_key":      l.LicenseKey,
				"trial_expires_at": l.TrialExpiresAt,
				"max_students":     l.MaxStudents,
			})
		},
	)
	if err != nil {
		s.observer.TrialIssued("error")
		return IssueTrialResponse{}, err
	}

	record := domain.DeviceFingerprintRecord{
		Fingerprint:    fingerprint,
		FirstTrialAt:   now,
		TrialLicenseID: lic.ID,
		IPAddress:      ip,
		UserAgent:      strings.TrimSpace(req.UserAgent),
	}
	if err := s.fingerprints.Insert(ctx, record); err != nil {
		if domain.IsConflict(err) {
			return IssueTrialResponse{}, s.resolveTrialRace(ctx, lic, fingerprint)
		}
		appLogger().WarnContext(ctx, "trial issued without fingerprint guard",
			"operation", "issue_trial",
			"outcome", "warning",
			"license_id", lic.ID.String(),
			"error", err,
		)
	}

	s.observer.TrialIssued("issued")
	return IssueTrialResponse{
		LicenseKey:     lic.LicenseKey,
		MaxStudents:    lic.MaxStudents,
		DurationDays:   lic.DurationDays,
		Status:         string(lic.Status),
		TrialExpiresAt: *lic.TrialExpiresAt,
	}, nil
}

// resolveTrialRace retires a license minted by a request that lost the
// fingerprint insert and reports the winner's timestamp.
func (s *Service) resolveTrialRace(ctx context.Context, orphan domain.License, fingerprint string) error {
	now := s.nowFn()
	if _, err := s.licenses.TransitionStatus(ctx, orphan.ID, []domain.Status{domain.StatusTrial}, domain.StatusSuperseded, now, nil); err != nil {
		appLogger().WarnContext(ctx, "failed to retire orphan trial license",
			"operation", "issue_trial",
			"outcome", "warning",
			"license_id", orphan.ID.String(),
			"error", err,
		)
	}
	s.observer.TrialIssued("already_used")
	winner, err := s.fingerprints.Get(ctx, fingerprint)
	if err != nil {
		return &domain.TrialUsedError{FirstTrialAt: now}
	}
	return &domain.TrialUsedError{FirstTrialAt: winner.FirstTrialAt}
}
