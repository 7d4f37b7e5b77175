package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/trellishq/trellis/config"
	contactrepo "github.com/trellishq/trellis/internal/repositories/contact"
	contacttagrepo "github.com/trellishq/trellis/internal/repositories/contacttag"
	relationshiprepo "github.com/trellishq/trellis/internal/repositories/relationship"
	relationshiptyperepo "github.com/trellishq/trellis/internal/repositories/relationshiptype"
	tagrepo "github.com/trellishq/trellis/internal/repositories/tag"
	"github.com/trellishq/trellis/pkg/database"
	"github.com/trellishq/trellis/pkg/events"
	"github.com/trellishq/trellis/pkg/importer"
	"github.com/trellishq/trellis/pkg/kafka"
	"github.com/trellishq/trellis/pkg/middleware"
	"github.com/trellishq/trellis/pkg/redis"
	"github.com/trellishq/trellis/pkg/relationships"
	contactroutes "github.com/trellishq/trellis/pkg/routes/contact"
	"github.com/trellishq/trellis/pkg/routes/health"
	importroutes "github.com/trellishq/trellis/pkg/routes/importer"
	relationshiproutes "github.com/trellishq/trellis/pkg/routes/relationship"
	relationshiptyperoutes "github.com/trellishq/trellis/pkg/routes/relationshiptype"
	tagroutes "github.com/trellishq/trellis/pkg/routes/tag"
	"github.com/trellishq/trellis/pkg/startup"
	"github.com/trellishq/trellis/pkg/storage"
	"github.com/trellishq/trellis/pkg/tags"
	"github.com/trellishq/trellis/pkg/tracing"
)

const version = "0.3.0"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		log.Fatalf("failed to bind config: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
			ServiceName: cfg.AppName,
			Endpoint:    cfg.TracingOTLPEndpoint,
			Timeout:     5 * time.Second,
		})
		if err != nil {
			logger.WithError(err).Error("failed to initialize tracing, continuing without it")
		} else {
			defer func() {
				_ = shutdown(context.Background())
			}()
		}
	}

	db, err := database.Connect(database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
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
		fatal(logger, err, "failed to connect to database")
	}
	defer db.Close()

	if err := runMigrations(cfg, db, logger); err != nil {
		fatal(logger, err, "failed to run database migrations")
	}

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			fatal(logger, err, "failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var producer *kafka.Producer
	var emitter *events.Emitter
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
		emitter = events.NewEmitter(producer, logger)
	}

	var uploader storage.Uploader = storage.Disabled{}
	if cfg.StorageEnabled {
		gcsUploader, err := storage.NewGCSUploader(ctx, cfg.StorageBucketName, cfg.StoragePathPrefix, cfg.StorageKeyPath)
		if err != nil {
			fatal(logger, err, "failed to create storage client")
		}
		defer gcsUploader.Close()
		uploader = gcsUploader
	}

	contactRepo := contactrepo.NewRepository(db, logger)
	tagRepo := tagrepo.NewRepository(db, logger)
	contactTagRepo := contacttagrepo.NewRepository(db, logger)
	relationshipTypeRepo := relationshiptyperepo.NewRepository(db, logger)
	relationshipRepo := relationshiprepo.NewRepository(db, logger)

	resolver := tags.NewResolver(tagRepo, logger)

	var relationshipEvents relationships.EventSink
	var importEvents importer.EventSink
	var contactEvents events.ContactSink = events.Noop{}
	if emitter != nil {
		relationshipEvents = emitter
		importEvents = emitter
		contactEvents = emitter
	}

	engine := relationships.NewEngine(contactRepo, relationshipTypeRepo, relationshipRepo, relationshipEvents, logger)

	pipeline := importer.NewPipeline(db, contactRepo, tagRepo, contactTagRepo, uploader, importEvents, logger, importer.Options{
		TxTimeout:             cfg.ImportTxTimeout,
		MaxBatchSize:          cfg.ImportMaxBatchSize,
		EnrichmentConcurrency: cfg.EnrichmentConcurrent,
	})

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		fatal(logger, err, "failed to create DI container")
	}
	mustRegister(logger, container, logger)
	mustRegister(logger, container, db)
	mustRegister(logger, container, contactRepo)
	mustRegister(logger, container, tagRepo)
	mustRegister(logger, container, contactTagRepo)
	mustRegister(logger, container, relationshipTypeRepo)
	mustRegister(logger, container, relationshipRepo)
	mustRegister(logger, container, resolver)
	mustRegister(logger, container, engine)
	mustRegister(logger, container, pipeline)
	mustRegister(logger, container, contactEvents)

	e := buildServer(cfg, logger, container, redisClient)

	var redisPinger interface {
		Ping(ctx context.Context) error
	}
	if redisClient != nil {
		redisPinger = redisClient
	}
	checker := health.NewChecker(db, redisPinger, version)
	checker.RegisterRoutes(e)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(startup.Func{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
		StopFunc: func(ctx context.Context) error {
			return nil
		},
	})
	boot.AddDependency(startup.Func{
		Name:  "http-server",
		Needs: []string{"database"},
		StartFunc: func(ctx context.Context) error {
			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					fatal(logger, err, "http server stopped unexpectedly")
				}
			}()
			checker.SetReady(true)
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			checker.SetReady(false)
			return e.Shutdown(ctx)
		},
	})

	if err := boot.Start(ctx); err != nil {
		fatal(logger, err, "startup failed")
	}

	logger.WithField("port", cfg.Port).Infof("%s is running", cfg.AppName)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func runMigrations(cfg config.Config, db database.DB, logger ectologger.Logger) error {
	instance, ok := db.(*database.DatabaseInstance)
	if !ok {
		return fmt.Errorf("unexpected database instance type %T", db)
	}

	driver, err := migratepg.WithInstance(instance.DB.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})

	return migrations.Migrate(cfg.DatabaseName, driver)
}

func buildServer(cfg config.Config, logger ectologger.Logger, container ectocontainer.DIContainer, redisClient *redis.Client) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	// Bind the DI container to every request so handlers can resolve their
	// dependencies from the request context.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, err := ectoinject.SetActiveContainer(c.Request().Context(), container.GetContainerID())
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	if cfg.AuthEnabled {
		e.Use(middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	contactroutes.Register(api.Group("/contacts"))
	tagroutes.Register(api.Group("/tags"))
	relationshiptyperoutes.Register(api.Group("/relationship-types"))
	relationshiproutes.Register(api.Group("/relationships"))

	importGroup := api.Group("/import")
	if redisClient != nil {
		limiter := redis.NewRateLimiter(redisClient, "trellis:import:")
		importGroup.Use(middleware.RateLimit(limiter, logger, int64(cfg.ImportRateLimitPerMinute), time.Minute))
	}
	importroutes.Register(importGroup)

	return e
}

func mustRegister[T any](logger ectologger.Logger, container ectocontainer.DIContainer, instance T) {
	if err := ectoinject.RegisterInstance[T](container, instance); err != nil {
		fatal(logger, err, "failed to register dependency")
	}
}

func fatal(logger ectologger.Logger, err error, msg string) {
	logger.WithError(err).Error(msg)
	os.Exit(1)
}
