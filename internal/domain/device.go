package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxFingerprintLength = 256

// DeviceFingerprintRecord guards trial issuance: one row per physical device.
type DeviceFingerprintRecord struct {
	Fingerprint    string
	FirstTrialAt   time.Time
	TrialLicenseID uuid.UUID
	IPAddress      string
	UserAgent      string
}

// NormalizeFingerprint trims a client-supplied fingerprint and enforces presence.
func NormalizeFingerprint(raw string) (string, error) {
	fp := strings.TrimSpace(raw)
	if fp == "" {
		return "", fmt.Errorf("%w: device_fingerprint is required", ErrInvalidInput)
	}
	if len(fp) > maxFingerprintLength {
		return "", fmt.Errorf("%w: device_fingerprint must be <= %d characters", ErrInvalidInput, maxFingerprintLength)
	}
	if !utf8.ValidString(fp) || strings.ContainsRune(fp, 0) {
		return "", fmt.Errorf("%w: device_fingerprint must be valid UTF-8 text", ErrInvalidInput)
	}
	return fp, nil
}

// FindDevice returns the index of fingerprint in devices, or -1.
func FindDevice(devices []DeviceToken, fingerprint string) int {
	for i, d := range devices {
		if d.Fingerprint == fingerprint {
			return i
		}
	}
	return -1
}

// RegisterDevice appends fingerprint when absent and capacity allows; a known
// device only has its last_seen refreshed. The input slice is not modified.
func RegisterDevice(devices []DeviceToken, fingerprint string, limit int, now time.Time) ([]DeviceToken, bool, error) {
	at := now.UTC()
	out := make([]DeviceToken, len(devices), len(devices)+1)
	copy(out, devices)

	if idx := FindDevice(out, fingerprint); idx >= 0 {
		out[idx].LastSeen = at
		return out, false, nil
	}
	if limit <= 0 {
		limit = DefaultMaxDevices
	}
	if len(out) >= limit {
		return nil, false, &DeviceLimitError{MaxDevices: limit, Devices: devices}
	}
	out = append(out, DeviceToken{
		Fingerprint:  fingerprint,
		RegisteredAt: at,
		LastSeen:     at,
	})
	return out, true, nil
}

// RevokeDevice drops fingerprint from the list.
func RevokeDevice(devices []DeviceToken, fingerprint string) ([]DeviceToken, bool) {
	idx := FindDevice(devices, fingerprint)
	if idx < 0 {
		return devices, false
	}
	out := make([]DeviceToken, 0, len(devices)-1)
	out = append(out, devices[:idx]...)
	out = append(out, devices[idx+1:]...)
	return out, true
}
