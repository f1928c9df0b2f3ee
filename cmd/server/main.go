package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	accountapp "github.com/erp/posting/internal/application/account"
	inventoryapp "github.com/erp/posting/internal/application/inventory"
	journalapp "github.com/erp/posting/internal/application/journal"
	postingapp "github.com/erp/posting/internal/application/posting"
	taxapp "github.com/erp/posting/internal/application/tax"
	"github.com/erp/posting/internal/domain/account"
	"github.com/erp/posting/internal/infrastructure/cache"
	"github.com/erp/posting/internal/infrastructure/config"
	"github.com/erp/posting/internal/infrastructure/event"
	"github.com/erp/posting/internal/infrastructure/lock"
	"github.com/erp/posting/internal/infrastructure/logger"
	"github.com/erp/posting/internal/infrastructure/persistence"
	"github.com/erp/posting/internal/infrastructure/scheduler"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/erp/posting/internal/interfaces/http/dto"
	"github.com/erp/posting/internal/interfaces/http/handler"
	"github.com/erp/posting/internal/interfaces/http/middleware"
	"github.com/erp/posting/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/erp/posting/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Posting Core API
//	@version		1.0
//	@description	Stock ledger, tax resolution, journal and document posting.

//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The OTLP log exporter needs a logger of its own before the real one
	// exists.
	bootstrap, err := logger.New(logger.ConfigForEnvironment(cfg.App.Env))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootstrap)
	if err != nil {
		bootstrap.Fatal("Failed to initialize log exporter", zap.Error(err))
	}

	var extra []zapcore.Core
	if logs.IsEnabled() {
		extra = append(extra, logs.Core(logger.ParseLevel(cfg.Log.Level)))
	}
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, extra...)
	if err != nil {
		bootstrap.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting posting service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meter, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileMutex:    true,
		ProfileBlock:    true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracer.EnableSpanProfiles()
	}

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.Instrument(persistence.Instrumentation{
		Tracing: telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log),
		Meter: meter,
		Metrics: telemetry.DBMetricsConfig{
			Enabled:            meter.IsEnabled(),
			SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		},
	}, log); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr()))
		}
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	locker, err := lock.New(cfg.Lock, rdb, log)
	if err != nil {
		log.Fatal("Failed to create key locker", zap.Error(err))
	}

	// Events are dispatched after commit on a worker pool
	bus := event.NewInMemoryEventBus(log, event.WithAsyncDispatch(4, 1024))
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	scope := persistence.NewGormTransactionScope(db.DB)
	repos := persistence.NewGormRepositories(db.DB)
	levelRepo := persistence.NewGormStockLevelRepository(db.DB)

	chart := accountapp.NewChartService(persistence.NewGormAccountRepository(db.DB), log)
	seeded, err := chart.SeedChart(ctx, account.DefaultChartNodes)
	if err != nil {
		log.Fatal("Failed to seed chart of accounts", zap.Error(err))
	}
	log.Info("Chart of accounts ready", zap.Int("seeded", seeded))

	taxes := taxapp.NewTaxService(persistence.NewGormTaxRuleRepository(db.DB), cfg.Tax.SnapshotTTL, log)
	ledger := inventoryapp.NewStockLedger(scope.Inventory(), repos, locker, bus, log,
		inventoryapp.LedgerOptions{VerifyOnWrite: cfg.Posting.VerifyOnWrite})
	engine := journalapp.NewJournalEngine(scope.Journal(), repos, chart, bus, log,
		journalapp.EngineOptions{ClearingTolerance: cfg.Posting.ClearingTolerance})
	orchestrator := postingapp.NewOrchestrator(scope.Posting(), repos, ledger, engine, taxes, chart, bus, log,
		postingapp.Options{Timeout: cfg.Posting.Timeout, Accounts: cfg.Posting.Accounts})

	postingMetrics, err := telemetry.NewPostingMetrics(telemetry.PostingMetricsConfig{
		Meter:         meter.Meter("erp-posting/posting"),
		Logger:        log,
		StockProvider: levelRepo,
	})
	if err != nil {
		log.Fatal("Failed to create posting metrics", zap.Error(err))
	}
	ledger.SetMetrics(postingMetrics)
	orchestrator.SetMetrics(postingMetrics)
	if meter.IsEnabled() {
		postingMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	}

	idempotency := cache.NewIdempotencyStore(rdb, log)
	driftCheck := event.NewIdempotentHandler(
		postingapp.NewDriftCheckHandler(ledger, log),
		idempotency,
		event.IdempotencyConfig{Enabled: cfg.Event.IdempotencyEnabled, TTL: cfg.Event.IdempotencyTTL},
		log,
	)
	bus.Subscribe(driftCheck, driftCheck.EventTypes()...)

	var jobs *scheduler.Scheduler
	if cfg.Jobs.Enabled {
		jobs = scheduler.New(scheduler.Config{CheckInterval: time.Minute, JobTimeout: cfg.Jobs.JobTimeout}, log)
		expirer := inventoryapp.NewBatchExpirationService(scope.Inventory(), persistence.NewGormBatchRepository(db.DB), log)
		auditor := inventoryapp.NewLedgerAuditService(ledger, levelRepo, cfg.Jobs.AuditConcurrency, log)
		if err := jobs.Register("batch-expiry", cfg.Jobs.BatchExpirySchedule, scheduler.BatchExpiryJob(expirer, log)); err != nil {
			log.Fatal("Failed to register job", zap.Error(err))
		}
		if err := jobs.Register("ledger-audit", cfg.Jobs.AuditSchedule, scheduler.LedgerAuditJob(auditor, log)); err != nil {
			log.Fatal("Failed to register job", zap.Error(err))
		}
		if err := jobs.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	app := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := app.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request id must exist before the logger and the
	// span marker read it, and recovery must wrap everything after it.
	app.Use(middleware.RequestID())
	app.Use(logger.Recovery(log))
	app.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracer.IsEnabled(),
	}))
	app.Use(middleware.SpanErrorMarker())
	app.Use(logger.GinMiddleware(log))
	app.Use(middleware.HTTPMetrics(httpMeter(meter)))
	if profiler.IsEnabled() {
		app.Use(middleware.ProfilingWithConfig(middleware.DefaultProfilingConfig()))
	}
	app.Use(middleware.Secure())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{middleware.HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	app.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	apiMiddleware := []gin.HandlerFunc{middleware.Timeout(cfg.HTTP.RequestTimeout)}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go sweepLimiter(ctx, limiter, cfg.HTTP.RateLimitWindow)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	checks := map[string]handler.Checker{
		"database": handler.CheckerFunc(func(context.Context) error { return db.Ping() }),
	}
	if rdb != nil {
		checks["redis"] = handler.CheckerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	var jobRunner handler.JobRunner
	if jobs != nil {
		jobRunner = jobs
	}
	system := handler.NewSystemHandler(checks, jobRunner)

	app.GET("/health", system.Health)
	app.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.HTTP.SwaggerEnabled,
			AllowedIPs: cfg.HTTP.SwaggerAllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)
	app.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRouteMissing, "Route not found", middleware.GetRequestID(c)))
	})

	routes := router.NewRouter(app, router.WithAPIVersion("v1"), router.WithMiddleware(apiMiddleware...)).
		Register(
			handler.NewAccountHandler(chart).Routes(),
			handler.NewTaxHandler(taxes).Routes(),
			handler.NewStockHandler(ledger).Routes(),
			handler.NewBatchHandler(ledger).Routes(),
			handler.NewJournalHandler(engine).Routes(),
			handler.NewDocumentHandler(orchestrator).Routes(),
			system.Routes(),
		).
		Setup()
	for _, r := range routes {
		log.Debug("Route registered", zap.String("group", r.Group), zap.String("method", r.Method), zap.String("path", r.Path))
	}
	log.Info("Routes registered", zap.Int("count", len(routes)))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        app,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if jobs != nil {
		if err := jobs.Stop(shutdownCtx); err != nil {
			log.Warn("Scheduler did not stop cleanly", zap.Error(err))
		}
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
	postingMetrics.Stop()
	if err := idempotency.Close(); err != nil {
		log.Warn("Error closing idempotency store", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn("Error closing redis", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := meter.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down metrics", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracing", zap.Error(err))
	}
	if err := logs.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down log exporter", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// httpMeter returns nil when metrics are off so the middleware passes
// requests straight through
func httpMeter(mp *telemetry.MeterProvider) metric.Meter {
	if !mp.IsEnabled() {
		return nil
	}
	return mp.Meter("erp-posting/http")
}

// sweepLimiter drops idle rate limit buckets once per window
func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter, window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
