package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the license service.
type Config struct {
	ServiceID   string
	Environment string
	LogLevel    slog.Level

	HTTPPort          int
	GRPCPort          int
	TrustProxyHeaders bool

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	CronSecret      string
	JWTSecret       string
	JWTPublicKeyPEM string
	JWTAudience     string
	AdminRoles      []string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string

	SMSEnabled    bool
	SMSAPIURL     string
	SMSAccountSID string
	SMSAuthToken  string
	SMSFrom       string

	AppBaseURL string
	UpgradeURL string

	TrialDurationDays int
	TrialMaxStudents  int
	DefaultMaxDevices int

	TrialRateLimitIPThreshold    int
	TrialRateLimitWindow         time.Duration
	ActivationRateLimitThreshold int
	ActivationRateLimitWindow    time.Duration
	NotificationWorkerEnabled    bool
	NotificationInterval         time.Duration
	MaxDBConns                   int32
	OutboxPollInterval           time.Duration
	OutboxBatchSize              int
	OutboxClaimTTL               time.Duration
	OutboxMaxRetries             int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		ID          string `yaml:"id"`
		Environment string `yaml:"environment"`
		HTTPPort    int    `yaml:"http_port"`
		GRPCPort    int    `yaml:"grpc_port"`
		LogLevel    string `yaml:"log_level"`
		TrustProxy  bool   `yaml:"trust_proxy_headers"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Auth struct {
		JWTAudience string   `yaml:"jwt_audience"`
		AdminRoles  []string `yaml:"admin_roles"`
	} `yaml:"auth"`
	Trial struct {
		DurationDays int `yaml:"duration_days"`
		MaxStudents  int `yaml:"max_students"`
		MaxDevices   int `yaml:"max_devices"`
	} `yaml:"trial"`
	RateLimits struct {
		TrialPerIP          int `yaml:"trial_per_ip"`
		TrialWindowSeconds  int `yaml:"trial_window_seconds"`
		ActivationPerUser   int `yaml:"activation_per_user"`
		ActivationWindowSec int `yaml:"activation_window_seconds"`
	} `yaml:"rate_limits"`
	Notifications struct {
		SMSEnabled      bool   `yaml:"sms_enabled"`
		WorkerEnabled   bool   `yaml:"worker_enabled"`
		IntervalSeconds int    `yaml:"interval_seconds"`
		FromName        string `yaml:"from_name"`
		UpgradeURL      string `yaml:"upgrade_url"`
	} `yaml:"notifications"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                    "planner-license-service",
		Environment:                  "production",
		LogLevel:                     slog.LevelInfo,
		HTTPPort:                     8080,
		GRPCPort:                     9090,
		AdminRoles:                   []string{"admin", "service_role"},
		FromName:                     "Planner",
		TrialDurationDays:            7,
		TrialMaxStudents:             5,
		DefaultMaxDevices:            2,
		TrialRateLimitIPThreshold:    10,
		TrialRateLimitWindow:         time.Hour,
		ActivationRateLimitThreshold: 20,
		ActivationRateLimitWindow:    10 * time.Minute,
		NotificationInterval:         24 * time.Hour,
		MaxDBConns:                   20,
		OutboxPollInterval:           2 * time.Second,
		OutboxBatchSize:              100,
		OutboxClaimTTL:               30 * time.Second,
		OutboxMaxRetries:             5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(envOrDefault("APP_ENV", cfg.Environment)))
	cfg.LogLevel = parseLevel(os.Getenv("LOG_LEVEL"), cfg.LogLevel)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)

	cfg.CronSecret = envOrDefault("CRON_SECRET", cfg.CronSecret)
	cfg.JWTSecret = envOrDefault("SUPABASE_JWT_SECRET", envOrDefault("JWT_SECRET", cfg.JWTSecret))
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTAudience = envOrDefault("JWT_AUDIENCE", cfg.JWTAudience)
	cfg.AdminRoles = envCSV("ADMIN_ROLES", cfg.AdminRoles)

	cfg.SMTPHost = envOrDefault("SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = envOrDefault("SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPUsername = envOrDefault("SMTP_USER", cfg.SMTPUsername)
	cfg.SMTPPassword = envOrDefault("SMTP_PASS", cfg.SMTPPassword)
	cfg.FromEmail = envOrDefault("FROM_EMAIL", cfg.FromEmail)
	cfg.FromName = envOrDefault("FROM_NAME", cfg.FromName)

	cfg.SMSEnabled = envBool("SMS_ENABLED", cfg.SMSEnabled)
	cfg.SMSAPIURL = envOrDefault("SMS_API_URL", cfg.SMSAPIURL)
	cfg.SMSAccountSID = envOrDefault("SMS_ACCOUNT_SID", cfg.SMSAccountSID)
	cfg.SMSAuthToken = envOrDefault("SMS_AUTH_TOKEN", cfg.SMSAuthToken)
	cfg.SMSFrom = envOrDefault("SMS_FROM", cfg.SMSFrom)

	cfg.AppBaseURL = strings.TrimRight(envOrDefault("APP_BASE_URL", cfg.AppBaseURL), "/")
	cfg.UpgradeURL = envOrDefault("UPGRADE_URL", cfg.UpgradeURL)
	if cfg.UpgradeURL == "" && cfg.AppBaseURL != "" {
		cfg.UpgradeURL = cfg.AppBaseURL + "/pricing"
	}

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.TrustProxyHeaders = envBool("TRUST_PROXY_HEADERS", cfg.TrustProxyHeaders)
	cfg.TrialDurationDays = envInt("TRIAL_DURATION_DAYS", cfg.TrialDurationDays)
	cfg.TrialMaxStudents = envInt("TRIAL_MAX_STUDENTS", cfg.TrialMaxStudents)
	cfg.DefaultMaxDevices = envInt("DEFAULT_MAX_DEVICES", cfg.DefaultMaxDevices)
	cfg.TrialRateLimitIPThreshold = envInt("TRIAL_RATE_LIMIT_IP_THRESHOLD", cfg.TrialRateLimitIPThreshold)
	cfg.TrialRateLimitWindow = time.Duration(envInt("TRIAL_RATE_LIMIT_WINDOW_SECONDS", int(cfg.TrialRateLimitWindow.Seconds()))) * time.Second
	cfg.ActivationRateLimitThreshold = envInt("ACTIVATION_RATE_LIMIT_THRESHOLD", cfg.ActivationRateLimitThreshold)
	cfg.ActivationRateLimitWindow = time.Duration(envInt("ACTIVATION_RATE_LIMIT_WINDOW_SECONDS", int(cfg.ActivationRateLimitWindow.Seconds()))) * time.Second
	cfg.NotificationWorkerEnabled = envBool("NOTIFICATION_WORKER_ENABLED", cfg.NotificationWorkerEnabled)
	cfg.NotificationInterval = time.Duration(envInt("NOTIFICATION_INTERVAL_SECONDS", int(cfg.NotificationInterval.Seconds()))) * time.Second
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.TrialDurationDays <= 0 || cfg.TrialMaxStudents <= 0 || cfg.DefaultMaxDevices <= 0 {
		return Config{}, fmt.Errorf("trial duration, student ceiling and device ceiling must be positive")
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.Environment != "" {
		cfg.Environment = f.Service.Environment
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	cfg.LogLevel = parseLevel(f.Service.LogLevel, cfg.LogLevel)
	if f.Service.TrustProxy {
		cfg.TrustProxyHeaders = true
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Auth.JWTAudience != "" {
		cfg.JWTAudience = f.Auth.JWTAudience
	}
	if len(f.Auth.AdminRoles) > 0 {
		cfg.AdminRoles = f.Auth.AdminRoles
	}
	if f.Trial.DurationDays > 0 {
		cfg.TrialDurationDays = f.Trial.DurationDays
	}
	if f.Trial.MaxStudents > 0 {
		cfg.TrialMaxStudents = f.Trial.MaxStudents
	}
	if f.Trial.MaxDevices > 0 {
		cfg.DefaultMaxDevices = f.Trial.MaxDevices
	}
	if f.RateLimits.TrialPerIP > 0 {
		cfg.TrialRateLimitIPThreshold = f.RateLimits.TrialPerIP
	}
	if f.RateLimits.TrialWindowSeconds > 0 {
		cfg.TrialRateLimitWindow = time.Duration(f.RateLimits.TrialWindowSeconds) * time.Second
	}
	if f.RateLimits.ActivationPerUser > 0 {
		cfg.ActivationRateLimitThreshold = f.RateLimits.ActivationPerUser
	}
	if f.RateLimits.ActivationWindowSec > 0 {
		cfg.ActivationRateLimitWindow = time.Duration(f.RateLimits.ActivationWindowSec) * time.Second
	}
	cfg.SMSEnabled = cfg.SMSEnabled || f.Notifications.SMSEnabled
	cfg.NotificationWorkerEnabled = cfg.NotificationWorkerEnabled || f.Notifications.WorkerEnabled
	if f.Notifications.IntervalSeconds > 0 {
		cfg.NotificationInterval = time.Duration(f.Notifications.IntervalSeconds) * time.Second
	}
	if f.Notifications.FromName != "" {
		cfg.FromName = f.Notifications.FromName
	}
	if f.Notifications.UpgradeURL != "" {
		cfg.UpgradeURL = f.Notifications.UpgradeURL
	}
}

// IsDevelopment relaxes the cron trigger check for local runs.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// validateServing checks what only the request-serving runtime needs.
func (c Config) validateServing() error {
	if c.JWTSecret == "" && c.JWTPublicKeyPEM == "" {
		return fmt.Errorf("missing SUPABASE_JWT_SECRET or JWT_PUBLIC_KEY_PEM")
	}
	if c.CronSecret == "" && !c.IsDevelopment() {
		return fmt.Errorf("missing CRON_SECRET (required outside development)")
	}
	return nil
}

func parseLevel(raw string, fallback slog.Level) slog.Level {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}
	return level
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
