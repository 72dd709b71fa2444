package application

import (
	"context"
	"fmt"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

// RegisterDevice records use of the caller's license from a device.
func (s *Service) RegisterDevice(ctx context.Context, actor Actor, req DeviceRequest) (DevicesResponse, error) {
	if err := requireCaller(actor); err != nil {
		return DevicesResponse{}, err
	}
	fingerprint, err := domain.NormalizeFingerprint(req.DeviceFingerprint)
	if err != nil {
		return DevicesResponse{}, err
	}
	lic, err := s.licenses.GetCurrentByPlanner(ctx, actor.SubjectID)
	if err != nil {
		return DevicesResponse{}, err
	}
	updated, err := s.bindDevice(ctx, lic.ID, actor.SubjectID, fingerprint)
	if err != nil {
		return DevicesResponse{}, err
	}
	return devicesResponse(updated), nil
}

// RevokeDevice frees a device slot on the caller's license.
func (s *Service) RevokeDevice(ctx context.Context, actor Actor, fingerprint string) (DevicesResponse, error) {
	if err := requireCaller(actor); err != nil {
		return DevicesResponse{}, err
	}
	fp, err := domain.NormalizeFingerprint(fingerprint)
	if err != nil {
		return DevicesResponse{}, err
	}
	lic, err := s.licenses.GetCurrentByPlanner(ctx, actor.SubjectID)
	if err != nil {
		return DevicesResponse{}, err
	}
	updated, err := s.licenses.MutateDevices(ctx, lic.ID, func(current domain.License) ([]domain.DeviceToken, error) {
		if !current.OwnedBy(actor.SubjectID) {
			return nil, domain.ErrOwnedByOther
		}
		devices, removed := domain.RevokeDevice(current.DeviceTokens, fp)
		if !removed {
			return nil, fmt.Errorf("%w: device is not registered", domain.ErrNotFound)
		}
		return devices, nil
	})
	if err != nil {
		return DevicesResponse{}, err
	}
	s.enqueue(ctx, s.newEvent(eventTypeDeviceRevoked, lic.ID.String(), map[string]any{
		"license_id":  lic.ID.String(),
		"planner_id":  actor.SubjectID.String(),
		"fingerprint": fp,
	}))
	return devicesResponse(updated), nil
}

func devicesResponse(lic domain.License) DevicesResponse {
	return DevicesResponse{
		LicenseID:  lic.ID,
		MaxDevices: lic.DeviceLimit(),
		Devices:    toDeviceViews(lic.DeviceTokens),
	}
}
