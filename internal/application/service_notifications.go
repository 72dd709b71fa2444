package application

import (
	"context"
	"fmt"
	"time"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

const reasonStateNotPersisted = "state_not_persisted"

// RunTrialNotifications sends due trial reminders. A failure on one license or
// channel never stops the others, and a channel already marked sent is not retried.
func (s *Service) RunTrialNotifications(ctx context.Context) (NotificationRunResult, error) {
	now := s.nowFn()
	trials, err := s.licenses.ListNotifiableTrials(ctx)
	if err != nil {
		return NotificationRunResult{}, fmt.Errorf("list trials: %w", err)
	}

	result := NotificationRunResult{Details: make([]NotificationDetail, 0, len(trials))}
	for _, lic := range trials {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		detail := s.notifyTrial(ctx, lic, now)
		result.Stats.Checked++
		switch detail.Status {
		case ReminderSent:
			result.Stats.Sent++
		case ReminderPartial:
			result.Stats.Sent++
			result.Stats.Errors++
		case ReminderFailed:
			result.Stats.Errors++
		default:
			result.Stats.Skipped++
		}
		if detail.Reason == reasonStateNotPersisted && detail.Status == ReminderSent {
			result.Stats.Errors++
		}
		result.Details = append(result.Details, detail)
	}

	s.observer.NotificationRun(result.Stats.Checked, result.Stats.Sent, result.Stats.Skipped, result.Stats.Errors)
	appLogger().InfoContext(ctx, "trial notification run finished",
		"operation", "run_trial_notifications",
		"outcome", "success",
		"checked", result.Stats.Checked,
		"sent", result.Stats.Sent,
		"skipped", result.Stats.Skipped,
		"errors", result.Stats.Errors,
	)
	return result, nil
}

func (s *Service) notifyTrial(ctx context.Context, lic domain.License, now time.Time) NotificationDetail {
	detail := NotificationDetail{LicenseID: lic.ID, PlannerID: lic.PlannerID}
	if lic.TrialExpiresAt == nil || lic.PlannerID == nil {
		detail.Status = ReminderSkipped
		detail.Reason = "incomplete_trial"
		return detail
	}

	days := domain.DaysRemaining(*lic.TrialExpiresAt, now)
	detail.DaysRemaining = days
	kind, due := domain.ClassifyReminder(days)
	if !due {
		detail.Status = ReminderNoAction
		return detail
	}
	detail.NotificationType = string(kind)

	record, err := s.notifications.Get(ctx, lic.ID, kind)
	if err != nil {
		return s.failDetail(ctx, detail, "load_state", err)
	}
	if record == nil {
		record = &domain.TrialNotification{LicenseID: lic.ID, Type: kind}
	}

	contact, err := s.planners.GetContact(ctx, *lic.PlannerID)
	if err != nil {
		return s.failDetail(ctx, detail, "load_contact", err)
	}
	channels := contact.Channels(s.smsEnabled())
	if len(channels) == 0 {
		detail.Status = ReminderSkipped
		detail.Reason = "no_contact_channel"
		// Nothing can be delivered, so the expiry notice cannot gate the transition.
		if kind == domain.NotifyExpired {
			detail.Expired = s.expireTrial(ctx, lic)
		}
		return detail
	}

	pending := make([]domain.Channel, 0, len(channels))
	for _, ch := range channels {
		if !record.Sent(ch) {
			pending = append(pending, ch)
		}
	}
	if len(pending) == 0 {
		detail.Status = ReminderSkipped
		detail.Reason = "already_sent"
		if kind == domain.NotifyExpired {
			detail.Expired = s.expireTrial(ctx, lic)
		}
		return detail
	}

	msg, err := s.renderer.Render(kind, ports.ReminderData{
		PlannerName:   contact.DisplayName,
		LicenseKey:    lic.LicenseKey,
		DaysRemaining: max(days, 0),
		ExpiresAt:     *lic.TrialExpiresAt,
		MaxStudents:   lic.MaxStudents,
		UpgradeURL:    s.cfg.UpgradeURL,
	})
	if err != nil {
		return s.failDetail(ctx, detail, "render", err)
	}

	delivered := 0
	for _, ch := range pending {
		res, err := s.deliver(ctx, ch, contact, msg)
		record.Record(ch, err, s.nowFn())
		outcome := ChannelOutcome{Channel: string(ch), Sent: err == nil, MessageID: res.MessageID}
		if err != nil {
			outcome.Error = err.Error()
			s.observer.ReminderDelivery(string(kind), string(ch), "failed")
			appLogger().WarnContext(ctx, "trial reminder delivery failed",
				"operation", "deliver_trial_reminder",
				"outcome", "failure",
				"license_id", lic.ID.String(),
				"notification_type", string(kind),
				"channel", string(ch),
				"error", err,
			)
		} else {
			delivered++
			s.observer.ReminderDelivery(string(kind), string(ch), "sent")
		}
		detail.Channels = append(detail.Channels, outcome)
	}

	if err := s.notifications.Upsert(ctx, *record); err != nil {
		detail.Reason = reasonStateNotPersisted
		appLogger().ErrorContext(ctx, "failed to persist trial reminder state",
			"operation", "deliver_trial_reminder",
			"outcome", "failure",
			"license_id", lic.ID.String(),
			"notification_type", string(kind),
			"error", err,
		)
	}

	switch {
	case delivered == len(pending):
		detail.Status = ReminderSent
	case delivered > 0:
		detail.Status = ReminderPartial
	default:
		detail.Status = ReminderFailed
	}

	if kind == domain.NotifyExpired && allChannelsSent(*record, channels) && detail.Reason != reasonStateNotPersisted {
		detail.Expired = s.expireTrial(ctx, lic)
	}
	return detail
}

func (s *Service) deliver(ctx context.Context, ch domain.Channel, contact domain.PlannerContact, msg ports.RenderedReminder) (ports.DeliveryResult, error) {
	var (
		res ports.DeliveryResult
		err error
	)
	switch ch {
	case domain.ChannelEmail:
		if s.email == nil {
			return res, fmt.Errorf("%w: email sender not configured", domain.ErrDeliveryFailed)
		}
		res, err = s.email.SendEmail(ctx, ports.EmailMessage{
			To:      contact.Email,
			Subject: msg.Subject,
			HTML:    msg.HTML,
			Text:    msg.Text,
		})
	case domain.ChannelSMS:
		if s.sms == nil {
			return res, fmt.Errorf("%w: sms sender not configured", domain.ErrDeliveryFailed)
		}
		res, err = s.sms.SendSMS(ctx, contact.Phone, msg.SMS)
	default:
		return res, fmt.Errorf("%w: unknown channel %q", domain.ErrDeliveryFailed, ch)
	}
	if err != nil {
		return res, fmt.Errorf("%w: %s: %v", domain.ErrDeliveryFailed, ch, err)
	}
	return res, nil
}

// expireTrial closes a trial whose expiry notice has been fully delivered.
func (s *Service) expireTrial(ctx context.Context, lic domain.License) bool {
	event := s.newEvent(eventTypeTrialExpired, lic.ID.String(), map[string]any{
		"license_id": lic.ID.String(),
		"planner_id": lic.PlannerID.String(),
	})
	ok, err := s.licenses.TransitionStatus(ctx, lic.ID, []domain.Status{domain.StatusTrial}, domain.StatusExpired, s.nowFn(), &event)
	if err != nil {
		appLogger().WarnContext(ctx, "failed to expire trial",
			"operation", "expire_trial",
			"outcome", "failure",
			"license_id", lic.ID.String(),
			"error", err,
		)
		return false
	}
	return ok
}

func (s *Service) failDetail(ctx context.Context, detail NotificationDetail, stage string, err error) NotificationDetail {
	appLogger().WarnContext(ctx, "trial reminder processing failed",
		"operation", "deliver_trial_reminder",
		"outcome", "failure",
		"license_id", detail.LicenseID.String(),
		"stage", stage,
		"error", err,
	)
	detail.Status = ReminderFailed
	detail.Reason = stage + ": " + err.Error()
	return detail
}

func (s *Service) smsEnabled() bool {
	return s.cfg.SMSEnabled && s.sms != nil
}

func allChannelsSent(record domain.TrialNotification, channels []domain.Channel) bool {
	for _, ch := range channels {
		if !record.Sent(ch) {
			return false
		}
	}
	return true
}
