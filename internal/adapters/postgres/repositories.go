package postgres

import (
	"errors"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Licenses      ports.LicenseRepository
	Fingerprints  ports.FingerprintRepository
	Notifications ports.TrialNotificationRepository
	Planners      ports.PlannerDirectory
	Outbox        ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Licenses:      &licenseRepository{db: db},
		Fingerprints:  &fingerprintRepository{db: db},
		Notifications: &notificationRepository{db: db},
		Planners:      &plannerDirectory{db: db},
		Outbox:        &outboxRepository{db: db},
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
