package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of license lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusTrial      Status = "trial"
	StatusSuspended  Status = "suspended"
	StatusExpired    Status = "expired"
	StatusSuperseded Status = "superseded"
)

const (
	// DefaultMaxDevices applies when a license row carries no explicit device ceiling.
	DefaultMaxDevices = 2
	Day               = 24 * time.Hour
)

// ParseStatus maps a stored status label onto the enum.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusActive, StatusTrial, StatusSuspended, StatusExpired, StatusSuperseded:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown license status %q", ErrInvalidInput, raw)
	}
}

// DeviceToken is one registered client device on a license.
type DeviceToken struct {
	Fingerprint  string    `json:"fingerprint"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// License is the entitlement aggregate: a student ceiling and an access window
// bound at most once to a planner account.
type License struct {
	ID                uuid.UUID
	LicenseKey        string
	PlannerID         *uuid.UUID
	Status            Status
	DurationDays      int
	MaxStudents       int
	MaxDevices        int
	IsTrial           bool
	TrialStartedAt    *time.Time
	TrialExpiresAt    *time.Time
	ActivatedAt       *time.Time
	ActivatedByUserID *uuid.UUID
	ExpiresAt         *time.Time
	DeviceTokens      []DeviceToken
	IssuedToEmail     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DeviceLimit returns the authoritative per-license device ceiling.
func (l License) DeviceLimit() int {
	if l.MaxDevices <= 0 {
		return DefaultMaxDevices
	}
	return l.MaxDevices
}

// IsClaimed reports whether an owner has been bound.
func (l License) IsClaimed() bool { return l.PlannerID != nil }

// OwnedBy reports whether the license is bound to the given planner.
func (l License) OwnedBy(plannerID uuid.UUID) bool {
	return l.PlannerID != nil && *l.PlannerID == plannerID
}

// TrialLapsed reports whether a trial window has closed at now.
func (l License) TrialLapsed(now time.Time) bool {
	return l.IsTrial && l.TrialExpiresAt != nil && !l.TrialExpiresAt.After(now)
}

// EffectiveExpiry is the instant access ends, if known.
func (l License) EffectiveExpiry() *time.Time {
	if l.IsTrial {
		return l.TrialExpiresAt
	}
	return l.ExpiresAt
}

// ActivationTarget runs the activation state machine for caller and returns the
// status the license moves to when the claim succeeds.
func (l License) ActivationTarget(caller uuid.UUID, now time.Time) (Status, error) {
	if l.PlannerID != nil {
		if *l.PlannerID == caller {
			return "", ErrAlreadyActivated
		}
		return "", ErrOwnedByOther
	}

	switch l.Status {
	case StatusPending:
		return StatusActive, nil
	case StatusTrial:
		if l.TrialLapsed(now) {
			return "", ErrExpired
		}
		return StatusTrial, nil
	case StatusExpired:
		return "", ErrExpired
	case StatusActive, StatusSuspended, StatusSuperseded:
		return "", ErrInvalidState
	default:
		return "", ErrInvalidState
	}
}

// Claim binds the license to caller. It is applied to the in-memory copy that a
// conditional store write persists.
func (l *License) Claim(caller uuid.UUID, target Status, now time.Time) {
	owner := caller
	at := now.UTC()
	l.PlannerID = &owner
	l.ActivatedByUserID = &owner
	l.ActivatedAt = &at
	l.Status = target
	if l.IsTrial {
		l.ExpiresAt = l.TrialExpiresAt
	} else if l.DurationDays > 0 {
		expires := at.Add(time.Duration(l.DurationDays) * Day)
		l.ExpiresAt = &expires
	}
	l.UpdatedAt = at
}

// DaysRemaining rounds the time left up to whole days; zero or negative means lapsed.
func DaysRemaining(expiresAt, now time.Time) int {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return -int(-left / Day)
	}
	return int((left + Day - 1) / Day)
}

// NewTrialLicense builds the time-boxed trial entitlement minted for a device.
func NewTrialLicense(key string, fingerprint string, durationDays, maxStudents, maxDevices int, email string, now time.Time) License {
	at := now.UTC()
	expires := at.Add(time.Duration(durationDays) * Day)
	return License{
		ID:             uuid.New(),
		LicenseKey:     key,
		Status:         StatusTrial,
		DurationDays:   durationDays,
		MaxStudents:    maxStudents,
		MaxDevices:     maxDevices,
		IsTrial:        true,
		TrialStartedAt: &at,
		TrialExpiresAt: &expires,
		DeviceTokens: []DeviceToken{{
			Fingerprint:  fingerprint,
			RegisteredAt: at,
			LastSeen:     at,
		}},
		IssuedToEmail: strings.TrimSpace(email),
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

// NewPaidLicense builds an unclaimed license issued by an administrator.
func NewPaidLicense(key string, durationDays, maxStudents, maxDevices int, now time.Time) License {
	at := now.UTC()
	return License{
		ID:           uuid.New(),
		LicenseKey:   key,
		Status:       StatusPending,
		DurationDays: durationDays,
		MaxStudents:  maxStudents,
		MaxDevices:   maxDevices,
		DeviceTokens: []DeviceToken{},
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}
