package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// claimableStatuses guards the ownership write against a concurrent supersede.
var claimableStatuses = []string{string(domain.StatusPending), string(domain.StatusTrial)}

type licenseRepository struct {
	db *gorm.DB
}

func (r *licenseRepository) Create(ctx context.Context, license domain.License, event *ports.OutboxEvent) error {
	row, err := toLicenseModel(license)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		if event == nil {
			return nil
		}
		outbox := toOutboxModel(*event)
		return tx.Create(&outbox).Error
	})
}

func (r *licenseRepository) GetByID(ctx context.Context, licenseID uuid.UUID) (domain.License, error) {
	return r.take(r.db.WithContext(ctx).Where("id = ?", licenseID))
}

func (r *licenseRepository) GetByKey(ctx context.Context, licenseKey string) (domain.License, error) {
	return r.take(r.db.WithContext(ctx).Where("license_key = ?", licenseKey))
}

func (r *licenseRepository) GetCurrentByPlanner(ctx context.Context, plannerID uuid.UUID) (domain.License, error) {
	return r.take(r.db.WithContext(ctx).
		Where("planner_id = ?", plannerID).
		Where("status <> ?", string(domain.StatusSuperseded)).
		Order("activated_at DESC NULLS LAST").
		Order("created_at DESC"))
}

func (r *licenseRepository) take(query *gorm.DB) (domain.License, error) {
	var row licenseModel
	if err := query.Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.License{}, domain.ErrNotFound
		}
		return domain.License{}, err
	}
	return toDomainLicense(row)
}

// ClaimUnowned is the single conditional write that decides an activation race.
func (r *licenseRepository) ClaimUnowned(ctx context.Context, claimed domain.License, event ports.OutboxEvent) (bool, error) {
	devices, err := encodeDevices(claimed.DeviceTokens)
	if err != nil {
		return false, err
	}

	won := false
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := claimStatement(tx, claimed, devices)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true
		outbox := toOutboxModel(event)
		return tx.Create(&outbox).Error
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func claimStatement(tx *gorm.DB, claimed domain.License, devices datatypes.JSON) *gorm.DB {
	return tx.Model(&licenseModel{}).
		Where("id = ?", claimed.ID).
		Where("planner_id IS NULL").
		Where("status IN ?", claimableStatuses).
		Updates(map[string]any{
			"planner_id":           claimed.PlannerID,
			"status":               string(claimed.Status),
			"activated_at":         claimed.ActivatedAt,
			"activated_by_user_id": claimed.ActivatedByUserID,
			"expires_at":           claimed.ExpiresAt,
			"device_tokens":        devices,
			"updated_at":           claimed.UpdatedAt,
		})
}

func lockedLicense(tx *gorm.DB, licenseID uuid.UUID) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", licenseID)
}

func (r *licenseRepository) MutateDevices(ctx context.Context, licenseID uuid.UUID, fn func(current domain.License) ([]domain.DeviceToken, error)) (domain.License, error) {
	var result domain.License
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row licenseModel
		if err := lockedLicense(tx, licenseID).Take(&row).Error; err != nil {
			if isNotFound(err) {
				return domain.ErrNotFound
			}
			return err
		}
		current, err := toDomainLicense(row)
		if err != nil {
			return err
		}

		devices, err := fn(current)
		if err != nil {
			return err
		}
		encoded, err := encodeDevices(devices)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.Model(&licenseModel{}).
			Where("id = ?", licenseID).
			Updates(map[string]any{
				"device_tokens": encoded,
				"updated_at":    now,
			}).Error; err != nil {
			return err
		}

		current.DeviceTokens = devices
		current.UpdatedAt = now
		result = current
		return nil
	})
	if err != nil {
		return domain.License{}, err
	}
	return result, nil
}

func (r *licenseRepository) TransitionStatus(ctx context.Context, licenseID uuid.UUID, from []domain.Status, to domain.Status, at time.Time, event *ports.OutboxEvent) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}

	moved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&licenseModel{}).
			Where("id = ?", licenseID).
			Where("status IN ?", allowed).
			Updates(map[string]any{
				"status":     string(to),
				"updated_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		moved = true
		if event == nil {
			return nil
		}
		outbox := toOutboxModel(*event)
		return tx.Create(&outbox).Error
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

func (r *licenseRepository) ListNotifiableTrials(ctx context.Context) ([]domain.License, error) {
	var rows []licenseModel
	if err := r.db.WithContext(ctx).
		Where("is_trial = ?", true).
		Where("status = ?", string(domain.StatusTrial)).
		Where("planner_id IS NOT NULL").
		Order("trial_expires_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.License, 0, len(rows))
	for _, row := range rows {
		lic, err := toDomainLicense(row)
		if err != nil {
			return nil, err
		}
		out = append(out, lic)
	}
	return out, nil
}
