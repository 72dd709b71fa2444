package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies a trial reminder threshold.
type NotificationType string

const (
	Notify7Days   NotificationType = "7days"
	Notify3Days   NotificationType = "3days"
	Notify1Day    NotificationType = "1day"
	NotifyExpired NotificationType = "expired"
)

// Channel is a reminder delivery path.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ClassifyReminder maps days remaining onto a reminder threshold. Values between
// thresholds produce no reminder.
func ClassifyReminder(daysRemaining int) (NotificationType, bool) {
	switch {
	case daysRemaining <= 0:
		return NotifyExpired, true
	case daysRemaining == 1:
		return Notify1Day, true
	case daysRemaining == 3:
		return Notify3Days, true
	case daysRemaining == 7:
		return Notify7Days, true
	default:
		return "", false
	}
}

// TrialNotification is the send-state of one (license, type) reminder.
type TrialNotification struct {
	LicenseID   uuid.UUID
	Type        NotificationType
	EmailSent   bool
	SMSSent     bool
	EmailSentAt *time.Time
	SMSSentAt   *time.Time
	EmailError  string
	SMSError    string
	AttemptedAt time.Time
}

// Sent reports whether channel already delivered this reminder.
func (n TrialNotification) Sent(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return n.EmailSent
	case ChannelSMS:
		return n.SMSSent
	default:
		return false
	}
}

// Record stores the outcome of one channel attempt. A success is never downgraded.
func (n *TrialNotification) Record(ch Channel, err error, at time.Time) {
	t := at.UTC()
	n.AttemptedAt = t
	switch ch {
	case ChannelEmail:
		if err != nil {
			n.EmailError = err.Error()
			return
		}
		n.EmailSent = true
		n.EmailSentAt = &t
		n.EmailError = ""
	case ChannelSMS:
		if err != nil {
			n.SMSError = err.Error()
			return
		}
		n.SMSSent = true
		n.SMSSentAt = &t
		n.SMSError = ""
	}
}

// PlannerContact is the reachable identity of a license owner.
type PlannerContact struct {
	PlannerID   uuid.UUID
	Email       string
	Phone       string
	DisplayName string
}

// Channels lists the channels this contact can be reached on.
func (c PlannerContact) Channels(smsEnabled bool) []Channel {
	out := make([]Channel, 0, 2)
	if c.Email != "" {
		out = append(out, ChannelEmail)
	}
	if smsEnabled && c.Phone != "" {
		out = append(out, ChannelSMS)
	}
	return out
}
