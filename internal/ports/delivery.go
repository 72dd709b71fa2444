package ports

import (
	"context"
	"time"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

// DeliveryResult is what a provider hands back for an accepted message.
type DeliveryResult struct {
	MessageID string
}

type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailSender delivers a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) (DeliveryResult, error)
}

// SMSSender delivers a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (DeliveryResult, error)
}

// ReminderData feeds the reminder templates.
type ReminderData struct {
	PlannerName   string
	LicenseKey    string
	DaysRemaining int
	ExpiresAt     time.Time
	MaxStudents   int
	UpgradeURL    string
}

// RenderedReminder is one reminder in every channel format.
type RenderedReminder struct {
	Subject string
	HTML    string
	Text    string
	SMS     string
}

// ReminderRenderer turns a threshold into channel content.
type ReminderRenderer interface {
	Render(kind domain.NotificationType, data ReminderData) (RenderedReminder, error)
}
