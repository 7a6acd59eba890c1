package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Ramsey-B/sage/config"
	"github.com/Ramsey-B/sage/internal/repositories/boxentry"
	"github.com/Ramsey-B/sage/internal/repositories/productionorder"
	sessionrepo "github.com/Ramsey-B/sage/internal/repositories/session"
	"github.com/Ramsey-B/sage/internal/services/ledger"
	sessionservice "github.com/Ramsey-B/sage/internal/services/session"
	"github.com/Ramsey-B/sage/pkg/changelog"
	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/kafka"
	"github.com/Ramsey-B/sage/pkg/redis"
	"github.com/Ramsey-B/sage/pkg/routes"
	"github.com/Ramsey-B/sage/pkg/routes/health"
	"github.com/Ramsey-B/sage/pkg/startup"
	"github.com/Ramsey-B/sage/pkg/telemetry"
	"github.com/Ramsey-B/sage/pkg/tracing"
	"github.com/Ramsey-B/sage/pkg/tracing/exporters"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdownTracing, err := tracing.Setup(ctx, tracing.SetupConfig{
			ServiceName: cfg.AppName,
			Exporter: exporters.Config{
				Endpoint: cfg.OtlpEndpoint,
				Protocol: cfg.OtlpProtocol,
				Insecure: cfg.OtlpInsecure,
			},
		})
		if err != nil {
			logger.WithError(err).Error("Failed to set up tracing")
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.WithError(err).Warn("Failed to flush traces on shutdown")
			}
		}()
	} else {
		tracing.SetTracer(otel.Tracer(cfg.AppName))
	}

	db, err := database.Connect(ctx, database.ConnectConfig{
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
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(cfg, db, logger); err != nil {
		logger.WithError(err).Error("Failed to run database migrations")
		os.Exit(1)
	}

	var redisClient *redis.Client
	var store telemetry.Store = telemetry.NewMemoryStore()
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis")
			os.Exit(1)
		}
		defer redisClient.Close()
		store = telemetry.NewRedisStore(redisClient)
	}

	var events changelog.Emitter = changelog.NopEmitter{}
	if cfg.ChangelogEnabled {
		producerCfg := kafka.DefaultProducerConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		producerCfg.Topic = cfg.KafkaChangelogTopic
		producerCfg.BatchSize = cfg.KafkaBatchSize
		producerCfg.BatchTimeout = time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond
		producerCfg.RequiredAcks = cfg.KafkaRequiredAcks
		producerCfg.Compression = cfg.KafkaCompression

		producer, err := kafka.NewProducer(producerCfg, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to create changelog producer")
			os.Exit(1)
		}
		defer producer.Close()
		events = changelog.NewKafkaEmitter(producer, logger)
	}

	sessions := sessionrepo.NewRepository(db, logger)
	entries := boxentry.NewRepository(db, logger)
	orders := productionorder.NewRepository(db, logger)

	sessionSvc := sessionservice.NewService(db, sessions, orders, events, logger)
	ledgerSvc := ledger.NewService(db, sessions, entries, events, logger)
	telemetrySvc := telemetry.NewService(store, logger)

	if err := registerDependencies(sessionSvc, ledgerSvc, telemetrySvc); err != nil {
		logger.WithError(err).Error("Failed to register dependencies")
		os.Exit(1)
	}

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	var consumer *kafka.Consumer
	var consumerDone <-chan struct{}
	if cfg.KafkaConsumerEnabled {
		consumerCfg := kafka.DefaultConsumerConfig()
		consumerCfg.Brokers = cfg.KafkaBrokers
		consumerCfg.Topic = cfg.KafkaReadingsTopic
		consumerCfg.GroupID = cfg.KafkaConsumerGroup

		consumer, err = kafka.NewConsumer(consumerCfg, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to create scale reading consumer")
			os.Exit(1)
		}
		consumerDone = consumer.Done()

		boot.AddDependency(telemetry.NewIngestor(consumer, telemetrySvc, logger))
	}

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start dependencies")
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))

	routes.Register(e, logger)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checker := health.NewChecker(db, redisClient, consumer, version)
	checker.RegisterRoutes(e)

	go func() {
		logger.Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped unexpectedly")
			os.Exit(1)
		}
	}()

	checker.SetReady(true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Infof("Received signal %s, shutting down", sig)
	case <-consumerDone:
		// Consumer only closes its done channel on Stop or on a broker
		// transport failure; the latter takes the process down with it.
		if err := consumer.Err(); err != nil {
			logger.WithError(err).Error("Scale reading consumer lost its broker, shutting down")
		}
	}

	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down HTTP server cleanly")
	}
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to stop dependencies cleanly")
	}

	logger.Info("Shutdown complete")
}

func newLogger(cfg *config.Config) ectologger.Logger {
	if cfg.PrettyLogs {
		zapLogger, _ := zap.NewDevelopment()
		return zapadapter.NewZapEctoLogger(zapLogger, nil)
	}

	zapCfg := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = level
	}
	zapLogger, _ := zapCfg.Build()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func runMigrations(cfg *config.Config, db *database.DatabaseInstance, logger ectologger.Logger) error {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
	})
	return migrations.Migrate(cfg.DatabaseName, driver)
}

func registerDependencies(
	sessionSvc *sessionservice.Service,
	ledgerSvc *ledger.Service,
	telemetrySvc *telemetry.Service,
) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	if err := ectoinject.RegisterInstance[*sessionservice.Service](container, sessionSvc); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*ledger.Service](container, ledgerSvc); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[*telemetry.Service](container, telemetrySvc)
}
