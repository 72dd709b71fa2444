package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type licenseModel struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	LicenseKey        string         `gorm:"column:license_key"`
	PlannerID         *uuid.UUID     `gorm:"column:planner_id;type:uuid"`
	Status            string         `gorm:"column:status"`
	DurationDays      int            `gorm:"column:duration_days"`
	MaxStudents       int            `gorm:"column:max_students"`
	MaxDevices        int            `gorm:"column:max_devices"`
	IsTrial           bool           `gorm:"column:is_trial"`
	TrialStartedAt    *time.Time     `gorm:"column:trial_started_at"`
	TrialExpiresAt    *time.Time     `gorm:"column:trial_expires_at"`
	ActivatedAt       *time.Time     `gorm:"column:activated_at"`
	ActivatedByUserID *uuid.UUID     `gorm:"column:activated_by_user_id;type:uuid"`
	ExpiresAt         *time.Time     `gorm:"column:expires_at"`
	DeviceTokens      datatypes.JSON `gorm:"column:device_tokens;type:jsonb"`
	IssuedToEmail     *string        `gorm:"column:issued_to_email"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at"`
}

func (licenseModel) TableName() string { return "licenses" }

type deviceFingerprintModel struct {
	Fingerprint    string    `gorm:"column:device_fingerprint;primaryKey"`
	FirstTrialAt   time.Time `gorm:"column:first_trial_at"`
	TrialLicenseID uuid.UUID `gorm:"column:trial_license_id;type:uuid"`
	IPAddress      *string   `gorm:"column:ip_address"`
	UserAgent      *string   `gorm:"column:user_agent"`
}

func (deviceFingerprintModel) TableName() string { return "device_fingerprints" }

type trialNotificationModel struct {
	LicenseID        uuid.UUID  `gorm:"column:license_id;type:uuid;primaryKey"`
	NotificationType string     `gorm:"column:notification_type;primaryKey"`
	EmailSent        bool       `gorm:"column:email_sent"`
	SMSSent          bool       `gorm:"column:sms_sent"`
	EmailSentAt      *time.Time `gorm:"column:email_sent_at"`
	SMSSentAt        *time.Time `gorm:"column:sms_sent_at"`
	EmailError       *string    `gorm:"column:email_error"`
	SMSError         *string    `gorm:"column:sms_error"`
	AttemptedAt      time.Time  `gorm:"column:attempted_at"`
}

func (trialNotificationModel) TableName() string { return "trial_notifications" }

type plannerModel struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email       string    `gorm:"column:email"`
	Phone       string    `gorm:"column:phone"`
	DisplayName string    `gorm:"column:display_name"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (plannerModel) TableName() string { return "planners" }

type licenseOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (licenseOutboxModel) TableName() string { return "license_outbox" }
