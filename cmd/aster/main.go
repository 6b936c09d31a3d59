package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/aster/config"
	"github.com/Ramsey-B/aster/internal/repositories/audit"
	"github.com/Ramsey-B/aster/internal/repositories/mapping"
	"github.com/Ramsey-B/aster/internal/repositories/runhistory"
	"github.com/Ramsey-B/aster/internal/repositories/source"
	"github.com/Ramsey-B/aster/pkg/alerts"
	"github.com/Ramsey-B/aster/pkg/board"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/engine"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/guardrail"
	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/logging"
	"github.com/Ramsey-B/aster/pkg/redis"
	"github.com/Ramsey-B/aster/pkg/resolver"
	"github.com/Ramsey-B/aster/pkg/routes/health"
	"github.com/Ramsey-B/aster/pkg/scheduler"
	"github.com/Ramsey-B/aster/pkg/schema"
	"github.com/Ramsey-B/aster/pkg/startup"
	"github.com/Ramsey-B/aster/pkg/tracing"
	"github.com/Ramsey-B/aster/pkg/tracing/exporters"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, flush, err := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.PrettyLogs})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	if err := playgroundvalidator.New().Struct(cfg); err != nil {
		logger.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Aster exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	shutdownTracing, err := setupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	var (
		db          database.DB
		sourceDB    database.DB
		redisClient *redis.Client
		producer    *kafka.Producer
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(startup.NewDependency("database", nil,
		func(ctx context.Context) error {
			var err error
			db, err = database.Connect(database.ConnectionConfig{
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			return err
		},
		func(_ context.Context) error { return db.Close() },
	))

	boot.AddDependency(startup.NewDependency("migrations", []string{"database"},
		func(_ context.Context) error {
			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return migrations.MigrateDatabase(db, cfg.DatabaseName)
		},
		nil,
	))

	boot.AddDependency(startup.NewDependency("source-database", nil,
		func(ctx context.Context) error {
			var err error
			sourceDB, err = database.Connect(database.ConnectionConfig{
				Host:     cfg.SourceDatabaseHost,
				Port:     cfg.SourceDatabasePort,
				UserName: cfg.SourceDatabaseUserName,
				Password: cfg.SourceDatabasePassword,
				Name:     cfg.SourceDatabaseName,
				SSLMode:  cfg.SourceDatabaseSSLMode,
			}, logger)
			return err
		},
		func(_ context.Context) error { return sourceDB.Close() },
	))

	boot.AddDependency(startup.NewDependency("redis", nil,
		func(_ context.Context) error {
			var err error
			redisClient, err = redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			return err
		},
		func(_ context.Context) error { return redisClient.Close() },
	))

	if cfg.KafkaEnabled {
		boot.AddDependency(startup.NewDependency("kafka", nil,
			func(_ context.Context) error {
				var err error
				producer, err = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				return err
			},
			func(_ context.Context) error { return producer.Close() },
		))
	}

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := boot.Stop(stopCtx); err != nil {
			logger.WithError(err).Error("Failed to stop dependencies cleanly")
		}
	}()

	// Repositories and core components.
	mappings := mapping.NewRepository(db, logger)
	audits := audit.NewRepository(db, logger)
	runs := runhistory.NewRepository(db, logger)
	sourceRepo := source.NewRepository(sourceDB, logger)

	boardClient := board.NewClient(board.Config{
		BaseURL:  cfg.BoardBaseURL,
		APIToken: cfg.BoardAPIToken,
		Timeout:  cfg.BoardRequestTimeout,
	}, logger)

	// Write dedup and alert suppression each get their own policy: accepted
	// writes must not consume the alert rate-limit budget.
	writeGuard := guardrail.NewPolicy()
	alertGuard := guardrail.NewPolicy()

	notifier := alerts.NewNotifier(alerts.Config{
		QueueSize:      cfg.AlertQueueSize,
		DedupWindow:    cfg.AlertDedupWindow,
		MaxPerMinute:   cfg.AlertMaxPerMinute,
		MaxPerProcess:  cfg.AlertMaxPerProcess,
		DigestInterval: cfg.AlertDigestInterval,
	}, alerts.NewLogSender(logger), alertGuard, logger)
	notifier.Start()
	defer notifier.Stop()

	engineDeps := engine.Deps{
		Source:    sourceRepo,
		Mappings:  mappings,
		Resolver:  resolver.NewResolver(mappings, boardClient, cfg.CaseNumberColumnID, logger),
		Board:     boardClient,
		Validator: schema.NewValidator(boardClient, logger),
		Audit:     audits,
		Runs:      runs,
		Guard:     writeGuard,
		Alerter:   notifier,
		Logger:    logger,
	}
	if producer != nil {
		engineDeps.Events = events.NewEmitter(producer, cfg.BoardID, logger)
	}

	eng := engine.New(engine.Config{
		BoardID: cfg.BoardID,
		GroupID: cfg.BoardGroupID,
		Columns: engine.Columns{
			CaseNumber:     cfg.CaseNumberColumnID,
			CaseStage:      cfg.CaseStageColumnID,
			HearingStatus:  cfg.HearingStatusColumnID,
			Courtroom:      cfg.CourtroomColumnID,
			HearingOfficer: cfg.HearingOfficerColumnID,
			HearingDate:    cfg.HearingDateColumnID,
			HearingTime:    cfg.HearingTimeColumnID,
		},
		BatchSize:        cfg.SyncBatchSize,
		Overlap:          cfg.SyncOverlap,
		FirstRunLookback: cfg.SyncFirstRunLookback,
		WriteDedupWindow: cfg.WriteDedupWindow,
	}, engineDeps)

	locker := redis.NewLocker(redisClient, "aster:")
	sched := scheduler.NewScheduler(eng, locker, scheduler.Config{
		Interval: cfg.SyncInterval,
		LockTTL:  cfg.SyncLockTTL,
	}, logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := sched.Stop(stopCtx); err != nil {
			logger.WithError(err).Error("Failed to stop scheduler cleanly")
		}
	}()

	// HTTP server: health endpoints only.
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{AllowOrigins: cfg.AllowOrigins}))
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	checker := health.NewChecker(db, sourceDB, redisClient, version)
	checker.RegisterRoutes(e)
	checker.SetReady(true)

	go func() {
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.WithError(err).Info("HTTP server stopped")
		}
	}()

	logger.Infof("Aster %s started on port %d", version, cfg.Port)

	<-ctx.Done()
	logger.Info("Shutting down...")

	checker.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut HTTP server down cleanly")
	}

	return nil
}

func setupTracing(ctx context.Context, cfg config.Config) (func(), error) {
	if !cfg.TracingEnabled {
		return func() {}, nil
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: true,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}, nil
}
