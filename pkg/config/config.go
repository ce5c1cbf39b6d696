package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Matching  MatchingConfig
	Ownership OwnershipConfig
	Forecast  ForecastConfig
	SLA       SLAConfig
	Scheduler SchedulerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the verification key for tenant-scoped bearer tokens.
// Token issuance lives in the identity service; the engine only validates.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MatchingConfig tunes the agency scoring formula and result caching.
type MatchingConfig struct {
	SpecializationWeight float64
	GeographicWeight     float64
	PerformanceWeight    float64
	DefaultLimit         int
	CacheTTL             time.Duration
}

// OwnershipConfig governs candidate ownership protection.
type OwnershipConfig struct {
	ProtectionPeriod time.Duration
}

// ForecastConfig tunes spend projection.
type ForecastConfig struct {
	TrailingWindowDays int
	DefaultHorizonDays int
}

// SLAConfig gates the SLA monitor sweep.
type SLAConfig struct {
	Enabled bool
}

// SchedulerConfig drives the background cron jobs and the alert dispatch pool.
type SchedulerConfig struct {
	Enabled          bool
	ForecastSpec     string
	OwnershipSpec    string
	SLASpec          string
	AlertWorkers     int
	AlertRetries     int
	AlertRetryDelay  time.Duration
	AlertQueueBuffer int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Matching = MatchingConfig{
		SpecializationWeight: v.GetFloat64("MATCH_SPECIALIZATION_WEIGHT"),
		GeographicWeight:     v.GetFloat64("MATCH_GEOGRAPHIC_WEIGHT"),
		PerformanceWeight:    v.GetFloat64("MATCH_PERFORMANCE_WEIGHT"),
		DefaultLimit:         v.GetInt("MATCH_DEFAULT_LIMIT"),
		CacheTTL:             parseDuration(v.GetString("MATCH_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Ownership = OwnershipConfig{
		ProtectionPeriod: parseDuration(v.GetString("OWNERSHIP_PROTECTION_PERIOD"), 365*24*time.Hour),
	}

	cfg.Forecast = ForecastConfig{
		TrailingWindowDays: v.GetInt("FORECAST_TRAILING_WINDOW_DAYS"),
		DefaultHorizonDays: v.GetInt("FORECAST_DEFAULT_HORIZON_DAYS"),
	}

	cfg.SLA = SLAConfig{Enabled: v.GetBool("ENABLE_SLA_MONITOR")}

	cfg.Scheduler = SchedulerConfig{
		Enabled:          v.GetBool("ENABLE_SCHEDULER"),
		ForecastSpec:     v.GetString("SCHEDULER_FORECAST_SPEC"),
		OwnershipSpec:    v.GetString("SCHEDULER_OWNERSHIP_SPEC"),
		SLASpec:          v.GetString("SCHEDULER_SLA_SPEC"),
		AlertWorkers:     v.GetInt("ALERT_WORKER_CONCURRENCY"),
		AlertRetries:     v.GetInt("ALERT_WORKER_RETRIES"),
		AlertRetryDelay:  parseDuration(v.GetString("ALERT_RETRY_DELAY"), 30*time.Second),
		AlertQueueBuffer: v.GetInt("ALERT_QUEUE_BUFFER"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "vendor_engine")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MATCH_SPECIALIZATION_WEIGHT", 0.5)
	v.SetDefault("MATCH_GEOGRAPHIC_WEIGHT", 0.2)
	v.SetDefault("MATCH_PERFORMANCE_WEIGHT", 0.3)
	v.SetDefault("MATCH_DEFAULT_LIMIT", 10)
	v.SetDefault("MATCH_CACHE_TTL", "5m")

	// 365 days of first-submitter protection.
	v.SetDefault("OWNERSHIP_PROTECTION_PERIOD", "8760h")

	v.SetDefault("FORECAST_TRAILING_WINDOW_DAYS", 60)
	v.SetDefault("FORECAST_DEFAULT_HORIZON_DAYS", 30)

	v.SetDefault("ENABLE_SLA_MONITOR", true)

	v.SetDefault("ENABLE_SCHEDULER", false)
	v.SetDefault("SCHEDULER_FORECAST_SPEC", "@every 24h")
	v.SetDefault("SCHEDULER_OWNERSHIP_SPEC", "@every 1h")
	v.SetDefault("SCHEDULER_SLA_SPEC", "@every 15m")
	v.SetDefault("ALERT_WORKER_CONCURRENCY", 2)
	v.SetDefault("ALERT_WORKER_RETRIES", 3)
	v.SetDefault("ALERT_RETRY_DELAY", "30s")
	v.SetDefault("ALERT_QUEUE_BUFFER", 64)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
