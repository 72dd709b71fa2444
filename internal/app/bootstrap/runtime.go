package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	cacheadapter "github.com/twins1850/nvoim-planner-pro-sub005/internal/adapters/cache"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/adapters/delivery"
	eventadapter "github.com/twins1850/nvoim-planner-pro-sub005/internal/adapters/events"
	grpcadapter "github.com/twins1850/nvoim-planner-pro-sub005/internal/adapters/grpc"
	httpadapter "github.com/twins1850/nvoim-planner-pro-sub005/internal/adapters/http"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/adapters/metrics"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/adapters/postgres"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/adapters/security"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/application"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

// Runtime owns every store client and worker of one process.
type Runtime struct {
	cfg       Config
	logger    *slog.Logger
	db        *gorm.DB
	metrics   *metrics.Registry
	service   *application.Service
	outbox    *eventadapter.OutboxWorker
	notifier  *eventadapter.TrialNotificationWorker
	cleanupFn func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping planner license service",
		"environment", cfg.Environment,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
	)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	closers := []func(){func() { _ = postgres.Close(db) }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		cleanup()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	repos := postgres.NewRepositories(db)

	var rateLimits ports.RateLimitStore
	if cfg.RedisURL != "" {
		redisClient, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, err
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		rateLimits = cacheadapter.NewRedisRateLimitStore(redisClient)
	} else {
		logger.Warn("REDIS_URL not set; trial and activation rate limits disabled")
	}

	var email ports.EmailSender
	smtpCfg := delivery.SMTPConfig{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
	}
	if smtpCfg.IsConfigured() {
		sender, err := delivery.NewSMTPEmailSender(smtpCfg)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("init smtp sender: %w", err)
		}
		email = sender
	} else {
		logger.Warn("SMTP not configured; email reminders will be recorded as failed")
	}

	var sms ports.SMSSender
	if cfg.SMSEnabled {
		sender, err := delivery.NewHTTPSMSSender(delivery.SMSConfig{
			APIURL:     cfg.SMSAPIURL,
			AccountSID: cfg.SMSAccountSID,
			AuthToken:  cfg.SMSAuthToken,
			From:       cfg.SMSFrom,
		}, nil)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("init sms sender: %w", err)
		}
		sms = sender
	}

	renderer, err := delivery.NewTemplateRenderer()
	if err != nil {
		cleanup()
		return nil, err
	}

	registry := metrics.NewRegistry()
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			TrialDurationDays:            cfg.TrialDurationDays,
			TrialMaxStudents:             cfg.TrialMaxStudents,
			DefaultMaxDevices:            cfg.DefaultMaxDevices,
			TrialRateLimitThreshold:      cfg.TrialRateLimitIPThreshold,
			TrialRateLimitWindow:         cfg.TrialRateLimitWindow,
			ActivationRateLimitThreshold: cfg.ActivationRateLimitThreshold,
			ActivationRateLimitWindow:    cfg.ActivationRateLimitWindow,
			AdminRoles:                   cfg.AdminRoles,
			SMSEnabled:                   cfg.SMSEnabled,
			UpgradeURL:                   cfg.UpgradeURL,
		},
		Licenses:      repos.Licenses,
		Fingerprints:  repos.Fingerprints,
		Notifications: repos.Notifications,
		Planners:      repos.Planners,
		Outbox:        repos.Outbox,
		RateLimits:    rateLimits,
		Email:         email,
		SMS:           sms,
		Renderer:      renderer,
		Observer:      registry,
	})

	var publisher ports.EventPublisher = eventadapter.NewLoggingPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, nil)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		closers = append(closers, func() { _ = kafkaPublisher.Close() })
		publisher = kafkaPublisher
	}
	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		publisher,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	).WithOutcomeRecorder(registry.OutboxEvent)

	return &Runtime{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		metrics:  registry,
		service:  svc,
		outbox:   outbox,
		notifier: eventadapter.NewTrialNotificationWorker(logger, svc, cfg.NotificationInterval),
		cleanupFn: func(context.Context) {
			cleanup()
		},
	}, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	client, err := cacheadapter.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// RunAPI serves HTTP and the internal gRPC service until a shutdown signal.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.cfg.validateServing(); err != nil {
		r.cleanupFn(ctx)
		return err
	}
	verifier, err := security.NewJWTVerifier(r.cfg.JWTSecret, r.cfg.JWTPublicKeyPEM, r.cfg.JWTAudience)
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("init jwt verifier: %w", err)
	}
	if r.cfg.IsDevelopment() && r.cfg.CronSecret == "" {
		r.logger.Warn("cron trigger is unauthenticated in development")
	}

	handler := httpadapter.NewHandler(r.service, httpadapter.Options{
		Verifier:      verifier,
		CronSecret:        r.cfg.CronSecret,
		AllowOpenCron:     r.cfg.IsDevelopment(),
		TrustProxyHeaders: r.cfg.TrustProxyHeaders,
		Ready:             func(ctx context.Context) error { return postgres.Ping(ctx, r.db) },
		Metrics:           r.metrics.Handler(),
		Observer:          r.metrics,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewLicenseInternalServer(r.service))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	healthSrv.Shutdown()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

// RunWorker drains the outbox and, when enabled, runs the reminder scan in-process.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	workers := 1
	go func() {
		r.logger.Info("outbox worker started")
		errCh <- r.outbox.Run(ctx)
	}()
	if r.cfg.NotificationWorkerEnabled {
		workers++
		go func() {
			r.logger.Info("trial notification worker started", "interval", r.cfg.NotificationInterval.String())
			errCh <- r.notifier.Run(ctx)
		}()
	}

	var runErr error
	for i := 0; i < workers; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
			runErr = err
			stop()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return runErr
}

// RunNotifierOnce performs a single reminder scan and flushes the outbox rows it wrote.
func (r *Runtime) RunNotifierOnce(ctx context.Context) (application.NotificationRunResult, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanupFn(context.Background())

	result, err := r.service.RunTrialNotifications(ctx)
	if err != nil {
		return result, err
	}
	if _, err := r.outbox.ProcessOnce(ctx); err != nil {
		r.logger.Warn("outbox flush after notification run failed",
			"operation", "outbox_process_once",
			"outcome", "failure",
			"error", err,
		)
	}
	return result, nil
}
