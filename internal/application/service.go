package application

import (
	"time"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

type Service struct {
	cfg           Config
	licenses      ports.LicenseRepository
	fingerprints  ports.FingerprintRepository
	notifications ports.TrialNotificationRepository
	planners      ports.PlannerDirectory
	outbox        ports.OutboxRepository
	rateLimits    ports.RateLimitStore
	email         ports.EmailSender
	sms           ports.SMSSender
	renderer      ports.ReminderRenderer
	observer      ports.Observer
	nowFn         func() time.Time
	keyFn         func(durationDays, maxStudents int) string
}

type Dependencies struct {
	Config        Config
	Licenses      ports.LicenseRepository
	Fingerprints  ports.FingerprintRepository
	Notifications ports.TrialNotificationRepository
	Planners      ports.PlannerDirectory
	Outbox        ports.OutboxRepository
	RateLimits    ports.RateLimitStore
	Email         ports.EmailSender
	SMS           ports.SMSSender
	Renderer      ports.ReminderRenderer
	Observer      ports.Observer
	Clock         func() time.Time
	KeyGenerator  func(durationDays, maxStudents int) string
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.TrialDurationDays <= 0 {
		cfg.TrialDurationDays = 7
	}
	if cfg.TrialMaxStudents <= 0 {
		cfg.TrialMaxStudents = 5
	}
	if cfg.DefaultMaxDevices <= 0 {
		cfg.DefaultMaxDevices = domain.DefaultMaxDevices
	}
	if cfg.KeyGenerationAttempts <= 0 {
		cfg.KeyGenerationAttempts = 5
	}
	if len(cfg.AdminRoles) == 0 {
		cfg.AdminRoles = []string{"admin", "service_role"}
	}

	s := &Service{
		cfg:           cfg,
		licenses:      deps.Licenses,
		fingerprints:  deps.Fingerprints,
		notifications: deps.Notifications,
		planners:      deps.Planners,
		outbox:        deps.Outbox,
		rateLimits:    deps.RateLimits,
		email:         deps.Email,
		sms:           deps.SMS,
		renderer:      deps.Renderer,
		observer:      deps.Observer,
		nowFn:         deps.Clock,
		keyFn:         deps.KeyGenerator,
	}
	if s.observer == nil {
		s.observer = ports.NopObserver{}
	}
	if s.nowFn == nil {
		s.nowFn = func() time.Time { return time.Now().UTC() }
	}
	if s.keyFn == nil {
		s.keyFn = domain.GenerateLicenseKey
	}
	return s
}
