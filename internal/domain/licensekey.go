package domain

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// KeyAlphabet omits I, O, 0 and 1 so keys survive being read aloud or retyped.
const KeyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const keySuffixLength = 6

var randomBytes = rand.Read

var licenseKeyPattern = regexp.MustCompile(`^([1-9][0-9]{0,4})D-([1-9][0-9]{0,5})P-([A-HJ-NP-Z2-9]{6})$`)

// KeyInfo is the entitlement encoded in a license key.
type KeyInfo struct {
	DurationDays int
	MaxStudents  int
	Suffix       string
}

// GenerateLicenseKey encodes the entitlement as {days}D-{students}P-{random6}.
// Uniqueness is the store's job; callers regenerate on a unique violation.
func GenerateLicenseKey(durationDays, maxStudents int) string {
	// len(KeyAlphabet) divides 256, so byte%32 is unbiased.
	buf := make([]byte, keySuffixLength)
	if _, err := randomBytes(buf); err != nil {
		panic(fmt.Sprintf("licensekey: read random bytes: %v", err))
	}
	suffix := make([]byte, keySuffixLength)
	for i, b := range buf {
		suffix[i] = KeyAlphabet[int(b)%len(KeyAlphabet)]
	}
	return fmt.Sprintf("%dD-%dP-%s", durationDays, maxStudents, suffix)
}

// NormalizeLicenseKey canonicalizes user-typed input.
func NormalizeLicenseKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ParseLicenseKey validates the key format and recovers the encoded entitlement.
func ParseLicenseKey(key string) (KeyInfo, error) {
	m := licenseKeyPattern.FindStringSubmatch(NormalizeLicenseKey(key))
	if m == nil {
		return KeyInfo{}, ErrInvalidFormat
	}
	days, err := strconv.Atoi(m[1])
	if err != nil {
		return KeyInfo{}, ErrInvalidFormat
	}
	students, err := strconv.Atoi(m[2])
	if err != nil {
		return KeyInfo{}, ErrInvalidFormat
	}
	return KeyInfo{DurationDays: days, MaxStudents: students, Suffix: m[3]}, nil
}
