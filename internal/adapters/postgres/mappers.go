package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
	"gorm.io/datatypes"
)

func encodeDevices(devices []domain.DeviceToken) (datatypes.JSON, error) {
	if devices == nil {
		devices = []domain.DeviceToken{}
	}
	raw, err := json.Marshal(devices)
	if err != nil {
		return nil, fmt.Errorf("encode device tokens: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func decodeDevices(raw datatypes.JSON) ([]domain.DeviceToken, error) {
	devices := []domain.DeviceToken{}
	if len(raw) == 0 || string(raw) == "null" {
		return devices, nil
	}
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, fmt.Errorf("decode device tokens: %w", err)
	}
	return devices, nil
}

func toLicenseModel(l domain.License) (licenseModel, error) {
	devices, err := encodeDevices(l.DeviceTokens)
	if err != nil {
		return licenseModel{}, err
	}
	return licenseModel{
		ID:                l.ID,
		LicenseKey:        l.LicenseKey,
		PlannerID:         l.PlannerID,
		Status:            string(l.Status),
		DurationDays:      l.DurationDays,
		MaxStudents:       l.MaxStudents,
		MaxDevices:        l.DeviceLimit(),
		IsTrial:           l.IsTrial,
		TrialStartedAt:    l.TrialStartedAt,
		TrialExpiresAt:    l.TrialExpiresAt,
		ActivatedAt:       l.ActivatedAt,
		ActivatedByUserID: l.ActivatedByUserID,
		ExpiresAt:         l.ExpiresAt,
		DeviceTokens:      devices,
		IssuedToEmail:     nullableString(l.IssuedToEmail),
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}, nil
}

func toDomainLicense(row licenseModel) (domain.License, error) {
	status, err := domain.ParseStatus(row.Status)
	if err != nil {
		return domain.License{}, err
	}
	devices, err := decodeDevices(row.DeviceTokens)
	if err != nil {
		return domain.License{}, err
	}
	return domain.License{
		ID:                row.ID,
		LicenseKey:        row.LicenseKey,
		PlannerID:         row.PlannerID,
		Status:            status,
		DurationDays:      row.DurationDays,
		MaxStudents:       row.MaxStudents,
		MaxDevices:        row.MaxDevices,
		IsTrial:           row.IsTrial,
		TrialStartedAt:    row.TrialStartedAt,
		TrialExpiresAt:    row.TrialExpiresAt,
		ActivatedAt:       row.ActivatedAt,
		ActivatedByUserID: row.ActivatedByUserID,
		ExpiresAt:         row.ExpiresAt,
		DeviceTokens:      devices,
		IssuedToEmail:     derefString(row.IssuedToEmail),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

const (
	maxUserAgentBytes = 512
	maxIPAddressBytes = 64
	maxErrorBytes     = 1024
)

func toFingerprintModel(record domain.DeviceFingerprintRecord) deviceFingerprintModel {
	return deviceFingerprintModel{
		Fingerprint:    record.Fingerprint,
		FirstTrialAt:   record.FirstTrialAt,
		TrialLicenseID: record.TrialLicenseID,
		IPAddress:      nullableString(cleanText(record.IPAddress, maxIPAddressBytes)),
		UserAgent:      nullableString(cleanText(record.UserAgent, maxUserAgentBytes)),
	}
}

func toDomainFingerprint(row deviceFingerprintModel) domain.DeviceFingerprintRecord {
	return domain.DeviceFingerprintRecord{
		Fingerprint:    row.Fingerprint,
		FirstTrialAt:   row.FirstTrialAt,
		TrialLicenseID: row.TrialLicenseID,
		IPAddress:      derefString(row.IPAddress),
		UserAgent:      derefString(row.UserAgent),
	}
}

func toNotificationModel(n domain.TrialNotification) trialNotificationModel {
	return trialNotificationModel{
		LicenseID:        n.LicenseID,
		NotificationType: string(n.Type),
		EmailSent:        n.EmailSent,
		SMSSent:          n.SMSSent,
		EmailSentAt:      n.EmailSentAt,
		SMSSentAt:        n.SMSSentAt,
		EmailError:       nullableString(cleanText(n.EmailError, maxErrorBytes)),
		SMSError:         nullableString(cleanText(n.SMSError, maxErrorBytes)),
		AttemptedAt:      n.AttemptedAt,
	}
}

func toDomainNotification(row trialNotificationModel) domain.TrialNotification {
	return domain.TrialNotification{
		LicenseID:   row.LicenseID,
		Type:        domain.NotificationType(row.NotificationType),
		EmailSent:   row.EmailSent,
		SMSSent:     row.SMSSent,
		EmailSentAt: row.EmailSentAt,
		SMSSentAt:   row.SMSSentAt,
		EmailError:  derefString(row.EmailError),
		SMSError:    derefString(row.SMSError),
		AttemptedAt: row.AttemptedAt,
	}
}

func toOutboxModel(event ports.OutboxEvent) licenseOutboxModel {
	payload := string(event.Payload)
	if strings.TrimSpace(payload) == "" {
		payload = "{}"
	}
	return licenseOutboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		CreatedAt:    event.OccurredAt,
	}
}

func toOutboxRecord(row licenseOutboxModel) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:       row.OutboxID,
		EventType:      row.EventType,
		PartitionKey:   row.PartitionKey,
		Payload:        []byte(row.Payload),
		RetryCount:     row.RetryCount,
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt,
		PublishedAt:    row.PublishedAt,
		LastErrorAt:    row.LastErrorAt,
		ClaimToken:     row.ClaimToken,
		ClaimUntil:     row.ClaimUntil,
		DeadLetteredAt: row.DeadLetteredAt,
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// cleanText makes free-form input storable in a text column: invalid UTF-8 is
// replaced, NUL bytes are dropped and the result is cut to at most n bytes on a
// rune boundary.
func cleanText(v string, n int) string {
	v = strings.ToValidUTF8(v, "\uFFFD")
	v = strings.ReplaceAll(v, "\x00", "")
	v = strings.TrimSpace(v)
	if len(v) <= n {
		return v
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return strings.TrimSpace(v[:cut])
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
