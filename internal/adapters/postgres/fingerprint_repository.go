package postgres

import (
	"context"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"gorm.io/gorm"
)

type fingerprintRepository struct {
	db *gorm.DB
}

func (r *fingerprintRepository) Get(ctx context.Context, fingerprint string) (domain.DeviceFingerprintRecord, error) {
	var row deviceFingerprintModel
	if err := r.db.WithContext(ctx).Where("device_fingerprint = ?", fingerprint).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.DeviceFingerprintRecord{}, domain.ErrNotFound
		}
		return domain.DeviceFingerprintRecord{}, err
	}
	return toDomainFingerprint(row), nil
}

// Insert relies on the primary key to reject a second trial for the same device.
func (r *fingerprintRepository) Insert(ctx context.Context, record domain.DeviceFingerprintRecord) error {
	row := toFingerprintModel(record)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *fingerprintRepository) Delete(ctx context.Context, fingerprint string) (bool, error) {
	res := r.db.WithContext(ctx).Where("device_fingerprint = ?", fingerprint).Delete(&deviceFingerprintModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
