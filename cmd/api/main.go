package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-proctor/internal/config"
	"github.com/noah-isme/gema-proctor/internal/database"
	"github.com/noah-isme/gema-proctor/internal/forensics"
	"github.com/noah-isme/gema-proctor/internal/handler"
	"github.com/noah-isme/gema-proctor/internal/middleware"
	"github.com/noah-isme/gema-proctor/internal/models"
	"github.com/noah-isme/gema-proctor/internal/repository"
	"github.com/noah-isme/gema-proctor/internal/router"
	"github.com/noah-isme/gema-proctor/internal/service"
	cloud "github.com/noah-isme/gema-proctor/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		logger = logger.Level(zerolog.InfoLevel)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, analysis events will only use redis")
		} else {
			defer natsConn.Drain()
		}
	}

	store, storeProbe, err := openBlobStore(cfg, redisClient, logger)
	if err != nil {
		log.Fatalf("failed to open activity store: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	activityRepo := repository.NewActivityLogRepository(store)
	suggestionRepo := repository.NewSuggestionRepository(store)

	eventHub := service.NewAnalysisEventHub(redisClient, cfg.RedisChannel, natsConn, logger)
	publisher := service.NewSuggestionPublisher(suggestionRepo, eventHub, logger)
	analysisService := service.NewAnalysisService(activityRepo, suggestionRepo, publisher, service.AnalysisOptions{
		Concurrency: cfg.AnalysisConcurrency,
		Detectors: forensics.Config{
			Scope:                  forensics.ParseScope(cfg.AnalysisScope),
			ShortAnswerThreshold:   cfg.AnalysisShortInterval,
			RapidSubmissionMaximum: cfg.AnalysisRapidSubmission,
		},
	}, logger)
	activityService := service.NewActivityService(activityRepo, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		AnalysisHandler:   handler.NewAnalysisHandler(analysisService, logger),
		SuggestionHandler: handler.NewSuggestionHandler(analysisService, logger),
		StreamHandler:     handler.NewAnalysisStreamHandler(eventHub, logger, 30*time.Second),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		IngestLimiter:     middleware.RateLimit("proctor-ingest", cfg.IngestRateLimit, cfg.IngestRateWindow),
		HealthProbes:      healthProbes(storeProbe, redisClient, natsConn),
	})

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	eventHub.Start(hubCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("store", cfg.StoreBackend).Str("address", cfg.HTTPAddress()).Msg("proctor service started")
	waitForShutdown(app)
}

func openBlobStore(cfg config.Config, redisClient *redis.Client, logger zerolog.Logger) (repository.BlobStore, handler.HealthProbe, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := database.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return migratedGormStore(db)
	case config.StoreSQLite:
		db, err := database.ConnectSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return migratedGormStore(db)
	case config.StoreRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("redis store selected without a redis url")
		}
		return repository.NewRedisBlobStore(redisClient, cfg.RedisNamespace), nil, nil
	case config.StoreCloudinary:
		assets, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewCloudinaryBlobStore(assets), nil, nil
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return repository.NewMemoryBlobStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func migratedGormStore(db *gorm.DB) (repository.BlobStore, handler.HealthProbe, error) {
	if err := db.AutoMigrate(&models.BlobObject{}); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access database pool: %w", err)
	}
	return repository.NewGormBlobStore(db), sqlDB.PingContext, nil
}

func healthProbes(storeProbe handler.HealthProbe, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := make(map[string]handler.HealthProbe)
	if storeProbe != nil {
		probes["store"] = storeProbe
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats status %s", natsConn.Status())
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
