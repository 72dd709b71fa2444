package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type notificationRepository struct {
	db *gorm.DB
}

func (r *notificationRepository) Get(ctx context.Context, licenseID uuid.UUID, kind domain.NotificationType) (*domain.TrialNotification, error) {
	var row trialNotificationModel
	if err := r.db.WithContext(ctx).
		Where("license_id = ?", licenseID).
		Where("notification_type = ?", string(kind)).
		Take(&row).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	rec := toDomainNotification(row)
	return &rec, nil
}

// Upsert merges sent flags with OR so a concurrent run can never unmark a delivered channel.
func (r *notificationRepository) Upsert(ctx context.Context, record domain.TrialNotification) error {
	row := toNotificationModel(record)
	return upsertNotificationStatement(r.db.WithContext(ctx), &row).Error
}

func upsertNotificationStatement(db *gorm.DB, row *trialNotificationModel) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "license_id"}, {Name: "notification_type"}},
		DoUpdates: clause.Assignments(map[string]any{
			"email_sent":    gorm.Expr("trial_notifications.email_sent OR EXCLUDED.email_sent"),
			"sms_sent":      gorm.Expr("trial_notifications.sms_sent OR EXCLUDED.sms_sent"),
			"email_sent_at": gorm.Expr("COALESCE(trial_notifications.email_sent_at, EXCLUDED.email_sent_at)"),
			"sms_sent_at":   gorm.Expr("COALESCE(trial_notifications.sms_sent_at, EXCLUDED.sms_sent_at)"),
			"email_error":   gorm.Expr("CASE WHEN trial_notifications.email_sent THEN NULL ELSE EXCLUDED.email_error END"),
			"sms_error":     gorm.Expr("CASE WHEN trial_notifications.sms_sent THEN NULL ELSE EXCLUDED.sms_error END"),
			"attempted_at":  gorm.Expr("EXCLUDED.attempted_at"),
		}),
	}).Create(row)
}
