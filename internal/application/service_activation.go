package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

const activationSuccessMessage = "License activated successfully"

// Activate binds the license identified by req.LicenseKey to the calling planner.
func (s *Service) Activate(ctx context.Context, actor Actor, req ActivateRequest) (ActivateResponse, error) {
	if err := requireCaller(actor); err != nil {
		return ActivateResponse{}, err
	}
	caller := actor.SubjectID

	key := domain.NormalizeLicenseKey(req.LicenseKey)
	if _, err := domain.ParseLicenseKey(key); err != nil {
		s.observer.Activation("invalid_format")
		return ActivateResponse{}, err
	}

	var fingerprint string
	if strings.TrimSpace(req.DeviceFingerprint) != "" {
		fp, err := domain.NormalizeFingerprint(req.DeviceFingerprint)
		if err != nil {
			return ActivateResponse{}, err
		}
		fingerprint = fp
	}

	if err := s.enforceRateLimit(ctx, "activate:user:"+caller.String(), s.cfg.ActivationRateLimitThreshold, s.cfg.ActivationRateLimitWindow); err != nil {
		s.observer.Activation("rate_limited")
		return ActivateResponse{}, err
	}

	lic, err := s.licenses.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.observer.Activation("not_found")
		}
		return ActivateResponse{}, err
	}

	now := s.nowFn()
	target, err := lic.ActivationTarget(caller, now)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyActivated) && fingerprint != "" {
			if _, bindErr := s.bindDevice(ctx, lic.ID, caller, fingerprint); bindErr != nil {
				s.observer.Activation(activationOutcome(bindErr))
				return ActivateResponse{}, bindErr
			}
		}
		s.observer.Activation(activationOutcome(err))
		return ActivateResponse{}, err
	}

	claimed := lic
	claimed.Claim(caller, target, now)
	if fingerprint != "" {
		devices, _, err := domain.RegisterDevice(claimed.DeviceTokens, fingerprint, claimed.DeviceLimit(), now)
		if err != nil {
			s.observer.Activation(activationOutcome(err))
			return ActivateResponse{}, err
		}
		claimed.DeviceTokens = devices
	}

	event := s.newEvent(eventTypeLicenseActivated, claimed.ID.String(), map[string]any{
		"license_id":   claimed.ID.String(),
		"planner_id":   caller.String(),
		"status":       string(claimed.Status),
		"is_trial":     claimed.IsTrial,
		"max_students": claimed.MaxStudents,
		"expires_at":   claimed.ExpiresAt,
	})
	won, err := s.licenses.ClaimUnowned(ctx, claimed, event)
	if err != nil {
		return ActivateResponse{}, fmt.Errorf("claim license: %w", err)
	}
	if !won {
		err := domain.ErrOwnedByOther
		if current, getErr := s.licenses.GetByID(ctx, lic.ID); getErr == nil {
			if _, stateErr := current.ActivationTarget(caller, now); stateErr != nil {
				err = stateErr
			}
		}
		s.observer.Activation(activationOutcome(err))
		return ActivateResponse{}, err
	}

	s.observer.Activation("activated")
	appLogger().InfoContext(ctx, "license activated",
		"operation", "activate_license",
		"outcome", "success",
		"license_id", claimed.ID.String(),
		"planner_id", caller.String(),
		"status", string(claimed.Status),
	)
	return ActivateResponse{
		Message: activationSuccessMessage,
		License: ActivatedLicense{
			DurationDays: claimed.DurationDays,
			MaxStudents:  claimed.MaxStudents,
		},
	}, nil
}

func activationOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyActivated):
		return "already_activated"
	case errors.Is(err, domain.ErrOwnedByOther):
		return "owned_by_other"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrDeviceLimit):
		return "device_limit_exceeded"
	default:
		return "error"
	}
}

// bindDevice registers fingerprint on a license the caller owns.
func (s *Service) bindDevice(ctx context.Context, licenseID, caller uuid.UUID, fingerprint string) (domain.License, error) {
	now := s.nowFn()
	added := false
	updated, err := s.licenses.MutateDevices(ctx, licenseID, func(current domain.License) ([]domain.DeviceToken, error) {
		if !current.OwnedBy(caller) {
			return nil, domain.ErrOwnedByOther
		}
		devices, isNew, err := domain.RegisterDevice(current.DeviceTokens, fingerprint, current.DeviceLimit(), now)
		if err != nil {
			return nil, err
		}
		added = isNew
		return devices, nil
	})
	if err != nil {
		return domain.License{}, err
	}
	if added {
		s.enqueue(ctx, s.newEvent(eventTypeDeviceRegistered, licenseID.String(), map[string]any{
			"license_id":  licenseID.String(),
			"planner_id":  caller.String(),
			"fingerprint": fingerprint,
		}))
	}
	return updated, nil
}
