package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/tenancy/pkg/api"
	"github.com/platinummonkey/tenancy/pkg/async"
	"github.com/platinummonkey/tenancy/pkg/audit"
	"github.com/platinummonkey/tenancy/pkg/config"
	"github.com/platinummonkey/tenancy/pkg/email"
	"github.com/platinummonkey/tenancy/pkg/middleware"
	"github.com/platinummonkey/tenancy/pkg/observability"
	"github.com/platinummonkey/tenancy/pkg/orgs"
	"github.com/platinummonkey/tenancy/pkg/ratelimit"
	"github.com/platinummonkey/tenancy/pkg/storage"
	"github.com/platinummonkey/tenancy/pkg/storage/postgres"
	"github.com/platinummonkey/tenancy/pkg/storage/sqlite"
)

const (
	auditRetentionSchedule  = "0 3 * * *"
	invitationPurgeSchedule = "30 3 * * *"
	dbStatsSchedule         = "@every 1m"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (TENANCY_CONFIG also honored)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logrus.WithError(err).Fatal("tenancyd exited")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.OTel.Enabled,
		Endpoint:       cfg.OTel.Endpoint,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.OTel.ServiceVersion,
		SampleRatio:    cfg.OTel.SampleRatio,
		Insecure:       cfg.OTel.Insecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	var repo orgs.Repository
	var auditDialect audit.Dialect
	switch cfg.Storage.Driver {
	case storage.DriverPostgres:
		if err := postgres.RunMigrations(ctx, db, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		repo = postgres.NewRepository(db)
		auditDialect = audit.DialectPostgres
	case storage.DriverSQLite:
		if err := sqlite.RunMigrations(ctx, db, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		repo = sqlite.NewRepository(db)
		auditDialect = audit.DialectSQLite
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	logger.WithField("driver", cfg.Storage.Driver).Info("Storage ready")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var redisClient *redis.Client
	var limiter ratelimit.Limiter
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The Redis limiter fails open, an unreachable Redis at boot is
			// a warning, not a refusal to start.
			logger.WithError(err).Warn("Redis unreachable at startup")
		}
		limiter = ratelimit.NewRedis(redisClient, logger, cfg.RateLimit.UserPerHour, cfg.RateLimit.OrgPerHour)
		logger.Info("Using Redis rate limiter")
	} else {
		limiter = ratelimit.NewLocal(cfg.RateLimit.UserPerHour, cfg.RateLimit.OrgPerHour)
		logger.Info("Using in-process rate limiter")
	}
	limiter = observability.NewInstrumentedLimiter(limiter, metrics)

	templates, err := email.NewTemplateStore(cfg.Email.TemplateDir, logger)
	if err != nil {
		return fmt.Errorf("failed to load email templates: %w", err)
	}
	if cfg.Email.TemplateDir != "" {
		if err := templates.Watch(); err != nil {
			logger.WithError(err).Warn("Email template reload disabled")
		}
	}

	var sender email.Sender = email.NopSender{}
	if cfg.Email.APIKey != "" {
		sender, err = email.NewAPISender(cfg.Email.APIKey, cfg.Email.FromEmail, cfg.Email.FromName, templates, logger)
		if err != nil {
			return fmt.Errorf("failed to build email sender: %w", err)
		}
	} else {
		logger.Info("No email API key configured, notifications disabled")
	}

	dbRecorder, err := audit.NewDBRecorder(db, auditDialect, logger, metrics.AuditDropsTotal)
	if err != nil {
		return fmt.Errorf("failed to initialize audit recorder: %w", err)
	}
	recorder := observability.NewInstrumentedRecorder(dbRecorder, metrics)
	auditStore := audit.NewDBStore(db, auditDialect)

	var archiver *audit.Archiver
	if cfg.Audit.S3.Bucket != "" {
		s3Client, err := audit.NewS3Client(ctx, cfg.Audit.S3)
		if err != nil {
			return fmt.Errorf("failed to build S3 client: %w", err)
		}
		archiver = audit.NewArchiver(auditStore, s3Client, cfg.Audit.S3.Bucket, cfg.Audit.ArchivePrefix, logger)
	}

	tasks := async.NewPool(4, 256, async.DefaultTaskTimeout, logger)

	service, err := orgs.NewService(orgs.Config{
		Repository:    repo,
		Logger:        logger,
		Audit:         recorder,
		AuditStore:    auditStore,
		Email:         sender,
		RateLimiter:   limiter,
		Tasks:         tasks,
		InviteBaseURL: cfg.Email.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}

	apiServer := api.NewServer(service, logger)

	var handler http.Handler = apiServer
	handler = middleware.ClientMeta(handler)
	handler = middleware.RequestLogger(logger)(handler)
	handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = otelhttp.NewHandler(handler, "tenancy")

	checker := observability.NewHealthChecker(db, redisClient)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	mux.Handle("/metrics", observability.MetricsHandler(registry))
	mux.Handle("/", handler)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(auditRetentionSchedule, func() {
		runAuditRetention(logger, auditStore, archiver, cfg.Audit.RetentionDays)
	}); err != nil {
		return fmt.Errorf("failed to schedule audit retention: %w", err)
	}
	if _, err := scheduler.AddFunc(invitationPurgeSchedule, func() {
		runInvitationPurge(logger, service, cfg.Invitations.PurgeGraceDays)
	}); err != nil {
		return fmt.Errorf("failed to schedule invitation purge: %w", err)
	}
	if _, err := scheduler.AddFunc(dbStatsSchedule, func() {
		metrics.ObserveDBStats(db)
	}); err != nil {
		return fmt.Errorf("failed to schedule pool stats: %w", err)
	}
	scheduler.Start()

	// Teardown order: stop accepting work, drain what is queued, then
	// release the stores everything drains into.
	shutdown.Register("http", server.Shutdown)
	shutdown.Register("cron", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.Register("tasks", func(context.Context) error {
		tasks.Close()
		return nil
	})
	shutdown.Register("templates", func(context.Context) error {
		return templates.Close()
	})
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.Register("telemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	shutdown.Register("database", func(context.Context) error {
		return db.Close()
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("address", server.Addr).Info("tenancyd listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutdown signal received")
		return shutdown.Run(context.Background())
	})

	return group.Wait()
}

// runAuditRetention offloads aged audit rows to the archive (when one is
// configured) and deletes them. Without an archive the rows are deleted
// outright once past retention.
func runAuditRetention(logger *logrus.Logger, store audit.Store, archiver *audit.Archiver, retentionDays int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	if archiver != nil {
		archived, deleted, err := archiver.Run(ctx, cutoff)
		if err != nil {
			logger.WithError(err).Error("Audit archive run failed")
			return
		}
		logger.WithFields(logrus.Fields{"archived": archived, "deleted": deleted}).Info("Audit retention complete")
		return
	}

	deleted, err := store.DeleteBefore(ctx, cutoff)
	if err != nil {
		logger.WithError(err).Error("Audit retention delete failed")
		return
	}
	logger.WithField("deleted", deleted).Info("Audit retention complete")
}

// runInvitationPurge removes expired unaccepted invitations once they are
// past the configured grace period.
func runInvitationPurge(logger *logrus.Logger, service *orgs.Service, graceDays int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	purged, err := service.PurgeStaleInvitations(ctx, time.Duration(graceDays)*24*time.Hour)
	if err != nil {
		logger.WithError(err).Error("Invitation purge failed")
		return
	}
	if purged > 0 {
		logger.WithField("purged", purged).Info("Stale invitations purged")
	}
}
