package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends accepted by STORE_BACKEND.
const (
	StorePostgres   = "postgres"
	StoreSQLite     = "sqlite"
	StoreRedis      = "redis"
	StoreCloudinary = "cloudinary"
	StoreMemory     = "memory"
)

// Config holds runtime configuration values for the proctor service.
type Config struct {
	AppName                 string
	AppEnv                  string
	AppPort                 string
	JWTSecret               string
	StoreBackend            string
	DatabaseURL             string
	SQLitePath              string
	RedisURL                string
	RedisNamespace          string
	RedisChannel            string
	NATSURL                 string
	CloudinaryCloudName     string
	CloudinaryAPIKey        string
	CloudinaryAPISecret     string
	CloudinaryFolder        string
	AnalysisConcurrency     int
	AnalysisScope           string
	AnalysisShortInterval   time.Duration
	AnalysisRapidSubmission time.Duration
	IngestRateLimit         int
	IngestRateWindow        time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Proctor")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("store.backend", StorePostgres)
	v.SetDefault("sqlite.path", "proctor.db")
	v.SetDefault("redis.namespace", "gema:proctor")
	v.SetDefault("redis.channel", "gema:proctor")
	v.SetDefault("cloudinary.folder", "gema/proctor")
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.scope", "attempt")
	v.SetDefault("analysis.short_interval", "5s")
	v.SetDefault("analysis.rapid_submission", "30m")
	v.SetDefault("ingest.rate_limit", 120)
	v.SetDefault("ingest.rate_window", "1m")

	shortInterval, err := parseDuration(v, "analysis.short_interval")
	if err != nil {
		return Config{}, err
	}
	rapidSubmission, err := parseDuration(v, "analysis.rapid_submission")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "ingest.rate_window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                 v.GetString("app.name"),
		AppEnv:                  v.GetString("app.env"),
		AppPort:                 v.GetString("app.port"),
		JWTSecret:               v.GetString("jwt.secret"),
		StoreBackend:            strings.ToLower(strings.TrimSpace(v.GetString("store.backend"))),
		DatabaseURL:             v.GetString("database.url"),
		SQLitePath:              v.GetString("sqlite.path"),
		RedisURL:                v.GetString("redis.url"),
		RedisNamespace:          v.GetString("redis.namespace"),
		RedisChannel:            v.GetString("redis.channel"),
		NATSURL:                 v.GetString("nats.url"),
		CloudinaryCloudName:     v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:        v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:     v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:        v.GetString("cloudinary.folder"),
		AnalysisConcurrency:     v.GetInt("analysis.concurrency"),
		AnalysisScope:           strings.ToLower(strings.TrimSpace(v.GetString("analysis.scope"))),
		AnalysisShortInterval:   shortInterval,
		AnalysisRapidSubmission: rapidSubmission,
		IngestRateLimit:         v.GetInt("ingest.rate_limit"),
		IngestRateWindow:        rateWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database url must be provided for the postgres store")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("redis url must be provided for the redis store")
		}
	case StoreSQLite, StoreCloudinary, StoreMemory:
	default:
		return Config{}, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}

	if cfg.AnalysisScope != "attempt" && cfg.AnalysisScope != "log" {
		return Config{}, fmt.Errorf("unsupported analysis scope %q", cfg.AnalysisScope)
	}

	if cfg.AnalysisConcurrency <= 0 {
		cfg.AnalysisConcurrency = 4
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}
