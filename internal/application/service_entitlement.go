package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

// GetEntitlement returns the planner's current license with derived remaining days.
func (s *Service) GetEntitlement(ctx context.Context, plannerID uuid.UUID) (EntitlementView, error) {
	if plannerID == uuid.Nil {
		return EntitlementView{}, domain.ErrUnauthorized
	}
	lic, err := s.licenses.GetCurrentByPlanner(ctx, plannerID)
	if err != nil {
		return EntitlementView{}, err
	}
	view := EntitlementView{
		LicenseID:    lic.ID,
		PlannerID:    plannerID,
		Status:       string(lic.Status),
		IsTrial:      lic.IsTrial,
		DurationDays: lic.DurationDays,
		MaxStudents:  lic.MaxStudents,
		MaxDevices:   lic.DeviceLimit(),
		ActivatedAt:  lic.ActivatedAt,
		ExpiresAt:    lic.EffectiveExpiry(),
		Devices:      toDeviceViews(lic.DeviceTokens),
	}
	if expiry := lic.EffectiveExpiry(); expiry != nil {
		days := domain.DaysRemaining(*expiry, s.nowFn())
		view.DaysRemaining = &days
	}
	return view, nil
}
