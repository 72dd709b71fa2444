package ports

// Observer receives use-case outcomes for metrics.
type Observer interface {
	TrialIssued(outcome string)
	Activation(outcome string)
	ReminderDelivery(kind, channel, outcome string)
	NotificationRun(checked, sent, skipped, errors int)
}

// NopObserver discards observations.
type NopObserver struct{}

func (NopObserver) TrialIssued(string) {}
func (NopObserver) Activation(string) {}
func (NopObserver) ReminderDelivery(_, _, _ string) {}
func (NopObserver) NotificationRun(_, _, _, _ int) {}
