package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested license or record does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidFormat rejects malformed license keys before any lookup happens.
	ErrInvalidFormat = errors.New("invalid license key format")
	// ErrAlreadyUsed signals that a device fingerprint already consumed its trial.
	ErrAlreadyUsed = errors.New("trial already used")
	// ErrAlreadyActivated is returned when the caller already owns the license.
	ErrAlreadyActivated = errors.New("license already activated")
	// ErrOwnedByOther is returned when another planner holds the license.
	// Ownership races surface this verbatim; retrying cannot change the outcome.
	ErrOwnedByOther      = errors.New("license owned by another account")
	ErrExpired           = errors.New("license expired")
	ErrInvalidState      = errors.New("license not in an activatable state")
	ErrDeviceLimit       = errors.New("device limit exceeded")
	ErrDeliveryFailed    = errors.New("delivery failed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrKeySpaceExhausted = errors.New("could not allocate a unique license key")
)

// TrialUsedError carries the original trial timestamp so the client can explain the refusal.
type TrialUsedError struct {
	FirstTrialAt time.Time
}

func (e *TrialUsedError) Error() string {
	return fmt.Sprintf("%s (first trial at %s)", ErrAlreadyUsed, e.FirstTrialAt.UTC().Format(time.RFC3339))
}

func (e *TrialUsedError) Unwrap() error { return ErrAlreadyUsed }

// DeviceLimitError lists the devices already registered on the license so the user
// can pick one to revoke.
type DeviceLimitError struct {
	MaxDevices int
	Devices    []DeviceToken
}

func (e *DeviceLimitError) Error() string {
	return fmt.Sprintf("%s: %d of %d devices registered", ErrDeviceLimit, len(e.Devices), e.MaxDevices)
}

func (e *DeviceLimitError) Unwrap() error { return ErrDeviceLimit }

// IsConflict reports whether err is a uniqueness or concurrent-write conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
