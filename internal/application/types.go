package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

type Config struct {
	TrialDurationDays int
	TrialMaxStudents  int
	DefaultMaxDevices int

	TrialRateLimitThreshold      int
	TrialRateLimitWindow         time.Duration
	ActivationRateLimitThreshold int
	ActivationRateLimitWindow    time.Duration

	KeyGenerationAttempts int
	AdminRoles            []string
	SMSEnabled            bool
	UpgradeURL            string
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	SubjectID uuid.UUID
	Email     string
	Role      string
}

type IssueTrialRequest struct {
	DeviceFingerprint string `json:"device_fingerprint" validate:"required,max=256"`
	UserEmail         string `json:"user_email" validate:"omitempty,email,max=320"`
	IPAddress         string `json:"ip_address"`
	UserAgent         string `json:"user_agent"`
	// ClientIP is the transport-observed peer address; it keys the per-IP limit.
	ClientIP          string `json:"-"`
}

type IssueTrialResponse struct {
	LicenseKey     string    `json:"license_key"`
	MaxStudents    int       `json:"max_students"`
	DurationDays   int       `json:"duration_days"`
	Status         string    `json:"status"`
	TrialExpiresAt time.Time `json:"trial_expires_at"`
}

type ActivateRequest struct {
	LicenseKey        string `json:"licenseKey" validate:"required,max=64"`
	DeviceFingerprint string `json:"device_fingerprint" validate:"omitempty,max=256"`
}

type ActivatedLicense struct {
	DurationDays int `json:"duration_days"`
	MaxStudents  int `json:"max_students"`
}

type ActivateResponse struct {
	Message string           `json:"message"`
	License ActivatedLicense `json:"license"`
}

type DeviceRequest struct {
	DeviceFingerprint string `json:"device_fingerprint" validate:"required,max=256"`
}

type DeviceView struct {
	Fingerprint  string    `json:"fingerprint"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
}

type DevicesResponse struct {
	LicenseID  uuid.UUID    `json:"license_id"`
	MaxDevices int          `json:"max_devices"`
	Devices    []DeviceView `json:"devices"`
}

type EntitlementView struct {
	LicenseID     uuid.UUID    `json:"license_id"`
	PlannerID     uuid.UUID    `json:"planner_id"`
	Status        string       `json:"status"`
	IsTrial       bool         `json:"is_trial"`
	DurationDays  int          `json:"duration_days"`
	MaxStudents   int          `json:"max_students"`
	MaxDevices    int          `json:"max_devices"`
	ActivatedAt   *time.Time   `json:"activated_at,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	DaysRemaining *int         `json:"days_remaining,omitempty"`
	Devices       []DeviceView `json:"devices"`
}

type IssueLicensesRequest struct {
	DurationDays int `json:"duration_days" validate:"required,min=1,max=99999"`
	MaxStudents  int `json:"max_students" validate:"required,min=1,max=999999"`
	MaxDevices   int `json:"max_devices" validate:"omitempty,min=1,max=50"`
	Count        int `json:"count" validate:"omitempty,min=1,max=500"`
}

type IssuedLicense struct {
	LicenseID    uuid.UUID `json:"license_id"`
	LicenseKey   string    `json:"license_key"`
	DurationDays int       `json:"duration_days"`
	MaxStudents  int       `json:"max_students"`
	MaxDevices   int       `json:"max_devices"`
	Status       string    `json:"status"`
}

type IssueLicensesResponse struct {
	Licenses []IssuedLicense `json:"licenses"`
}

type SupersedeResponse struct {
	LicenseID uuid.UUID `json:"license_id"`
	Status    string    `json:"status"`
}

type FingerprintResetResponse struct {
	Fingerprint string `json:"fingerprint"`
	Removed     bool   `json:"removed"`
}

// Notification run outcomes per license.
const (
	ReminderSent     = "sent"
	ReminderPartial  = "partial"
	ReminderFailed   = "failed"
	ReminderSkipped  = "skipped"
	ReminderNoAction = "no_action"
)

type RunStats struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

type ChannelOutcome struct {
	Channel   string `json:"channel"`
	Sent      bool   `json:"sent"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type NotificationDetail struct {
	LicenseID        uuid.UUID        `json:"license_id"`
	PlannerID        *uuid.UUID       `json:"planner_id,omitempty"`
	DaysRemaining    int              `json:"days_remaining"`
	NotificationType string           `json:"notification_type,omitempty"`
	Status           string           `json:"status"`
	Reason           string           `json:"reason,omitempty"`
	Channels         []ChannelOutcome `json:"channels,omitempty"`
	Expired          bool             `json:"expired,omitempty"`
}

type NotificationRunResult struct {
	Stats   RunStats             `json:"stats"`
	Details []NotificationDetail `json:"details"`
}

func toDeviceViews(devices []domain.DeviceToken) []DeviceView {
	out := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, DeviceView{
			Fingerprint:  d.Fingerprint,
			RegisteredAt: d.RegisteredAt,
			LastSeen:     d.LastSeen,
		})
	}
	return out
}
