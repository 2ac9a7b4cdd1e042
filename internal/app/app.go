// Package app assembles the stores, broker, service and HTTP router from a
// loaded configuration. The cobra commands in internal/cli drive it.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/kenko/clinic-api/config"
	appointmentHandler "github.com/kenko/clinic-api/internal/handler/appointment"
	"github.com/kenko/clinic-api/internal/handler/health"
	promhandler "github.com/kenko/clinic-api/internal/handler/prometheus"
	"github.com/kenko/clinic-api/internal/middleware"
	"github.com/kenko/clinic-api/internal/model"
	"github.com/kenko/clinic-api/internal/repository"
	"github.com/kenko/clinic-api/internal/repository/memory"
	"github.com/kenko/clinic-api/internal/repository/postgres"
	"github.com/kenko/clinic-api/internal/router"
	appointmentService "github.com/kenko/clinic-api/internal/service/appointment"
	"github.com/kenko/clinic-api/pkg/logger"
	"github.com/kenko/clinic-api/pkg/messaging"
	"github.com/kenko/clinic-api/pkg/messaging/redis"
	"github.com/kenko/clinic-api/pkg/metrics"
	"github.com/kenko/clinic-api/pkg/worker"
)

type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Appointments repository.AppointmentRepository
	Patients     repository.PatientDirectory
	Outbox       repository.OutboxRepository

	db     *sqlx.DB
	broker messaging.Broker
}

// NewLogger builds the process logger from the log section and installs it
// as the zerolog global, which request contexts fall back to.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Level),
		Format: cfg.Format,
		Output: os.Stdout,
	})
	log.Logger = *l.Zerolog()
	zerolog.DefaultContextLogger = &log.Logger
	return l
}

// New opens the configured store. Close releases it.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: registry,
		Metrics:  metrics.NewMetrics(registry, cfg.Metrics.Namespace),
	}

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		store := memory.NewStore()
		for _, p := range cfg.Storage.Patients {
			store.AddPatient(&model.Patient{ID: p.ID, OrganizationID: p.OrganizationID})
		}
		a.Appointments, a.Patients, a.Outbox = store, store, store
		log.Warn("using in-memory storage; data is lost on exit", "patients", len(cfg.Storage.Patients))

	case config.StoragePostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		base := postgres.NewBaseRepository(db)
		a.db = db
		a.Appointments = postgres.NewAppointmentRepository(base)
		a.Patients = postgres.NewPatientRepository(base)
		a.Outbox = postgres.NewOutboxRepository(base)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	return a, nil
}

// DB is nil for the memory driver.
func (a *App) DB() *sqlx.DB {
	return a.db
}

// Broker connects to Redis, or logs events when no URL is configured. The
// broker is created once and closed by Close.
func (a *App) Broker(ctx context.Context) (messaging.Broker, error) {
	if a.broker != nil {
		return a.broker, nil
	}
	if a.Config.Redis.URL == "" {
		a.Logger.Warn("redis url not set; outbox events will only be logged")
		a.broker = messaging.NewLogBroker(*a.Logger.Zerolog())
		return a.broker, nil
	}

	b, err := redis.NewRedisBroker(ctx, a.Config.Redis.ToBrokerConfig(), *a.Logger.Zerolog(), a.Metrics)
	if err != nil {
		return nil, err
	}
	a.broker = b
	return a.broker, nil
}

// Service builds the appointment orchestrator.
func (a *App) Service() (*appointmentService.Service, error) {
	loc, err := a.Config.Scheduling.Location()
	if err != nil {
		return nil, err
	}
	return appointmentService.NewService(a.Appointments, a.Patients, a.Logger, a.Metrics, appointmentService.Config{
		Location:          loc,
		DefaultLocation:   a.Config.Scheduling.DefaultLocation,
		OwnershipCacheTTL: a.Config.Scheduling.OwnershipCacheTTL,
	}), nil
}

// Router wires the HTTP surface. Readiness checks the store, plus the broker
// when one has been opened.
func (a *App) Router() (*router.Router, error) {
	svc, err := a.Service()
	if err != nil {
		return nil, err
	}

	checks := map[string]health.Pinger{"store": a.Appointments}
	if p, ok := a.broker.(health.Pinger); ok {
		checks["broker"] = p
	}

	var metricsH *promhandler.Handler
	if a.Config.Metrics.Enabled {
		metricsH = promhandler.New(a.Registry, a.Config.Metrics.Namespace)
	}

	mode := a.Config.Server.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	metricsPath := ""
	if a.Config.Metrics.Enabled {
		metricsPath = a.Config.Metrics.Path
	}

	r, err := router.NewRouter(
		*a.Logger.Zerolog(),
		appointmentHandler.NewHandler(svc),
		health.NewHandler(checks),
		metricsH,
		router.RouterConfig{
			Mode:             mode,
			RateLimitEnabled: a.Config.RateLimit.Enabled,
			RateLimit:        rate.Limit(a.Config.RateLimit.RequestsPerSecond),
			RateBurst:        a.Config.RateLimit.Burst,
			CORSConfig: middleware.CORSConfig{
				AllowOrigins:  a.Config.CORS.AllowedOrigins,
				AllowMethods:  a.Config.CORS.AllowedMethods,
				AllowHeaders:  a.Config.CORS.AllowedHeaders,
				ExposeHeaders: []string{"Content-Length", "Content-Type", middleware.HeaderXRequestID},
				MaxAge:        a.Config.CORS.MaxAge,
			},
			RequestTimeout: a.Config.Server.RequestTimeout,
			MetricsPath:    metricsPath,
		},
	)
	if err != nil {
		return nil, err
	}
	r.Setup()
	return r, nil
}

// Workers builds the outbox relay and the cleanup worker on top of broker.
func (a *App) Workers(broker messaging.Broker) (*worker.OutboxProcessor, *worker.OutboxCleanupWorker, error) {
	processor, err := worker.NewOutboxProcessor(a.Outbox, broker, a.Config.Outbox.ToWorkerConfig(), a.Logger, a.Metrics)
	if err != nil {
		return nil, nil, err
	}
	cleanup := worker.NewOutboxCleanupWorker(a.Outbox, a.Config.Outbox.ToCleanupConfig(), a.Logger, a.Metrics)
	return processor, cleanup, nil
}

func (a *App) Close() error {
	var firstErr error
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
