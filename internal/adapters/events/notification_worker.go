package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/application"
)

// TrialNotificationWorker runs the reminder scan on an in-process schedule for
// deployments without an external cron trigger. Overlapping runs are safe.
type TrialNotificationWorker struct {
	logger   *slog.Logger
	service  *application.Service
	interval time.Duration
}

func NewTrialNotificationWorker(logger *slog.Logger, service *application.Service, interval time.Duration) *TrialNotificationWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &TrialNotificationWorker{
		logger:   logger.With("module", "events.trial_notification_worker", "layer", "adapter"),
		service:  service,
		interval: interval,
	}
}

func (w *TrialNotificationWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.service.RunTrialNotifications(ctx); err != nil {
			w.logger.ErrorContext(ctx, "trial notification iteration failed",
				"operation", "run_trial_notifications",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
