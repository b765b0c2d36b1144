package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string
	RedisURL    string

	AdminDefaultPageSize int
	AdminMaxPageSize     int
	AdminListCacheTTL    time.Duration

	// Mutation limit of 0 disables rate limiting entirely.
	AdminMutationRateLimit  int
	AdminMutationRateWindow time.Duration
	IdempotencyTTL          time.Duration

	FlashHashKey  string
	FlashBlockKey string

	PasswordCompromisedCheckEnabled bool
	PasswordCompromisedAPIURL       string

	// Bootstrap admin fields are read by the seed tool only; the running API
	// never creates accounts from them.
	BootstrapAdminLibraryID string
	BootstrapAdminFirstName string
	BootstrapAdminLastName  string
	BootstrapAdminEmail     string
	BootstrapAdminPassword  string
	BootstrapAdminRoleTitle string

	ReadinessProbeTimeout        time.Duration
	ReadinessGracePeriod         time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:         env,
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		AdminDefaultPageSize: getEnvInt("ADMIN_DEFAULT_PAGE_SIZE", 10),
		AdminMaxPageSize:     getEnvInt("ADMIN_MAX_PAGE_SIZE", 100),

		AdminMutationRateLimit: getEnvInt("ADMIN_MUTATION_RATE_LIMIT", 30),

		FlashHashKey:  os.Getenv("FLASH_HASH_KEY"),
		FlashBlockKey: os.Getenv("FLASH_BLOCK_KEY"),

		PasswordCompromisedCheckEnabled: getEnvBool("PASSWORD_COMPROMISED_CHECK_ENABLED", true),
		PasswordCompromisedAPIURL:       getEnv("PASSWORD_COMPROMISED_API_URL", "https://api.pwnedpasswords.com/range"),

		BootstrapAdminLibraryID: os.Getenv("BOOTSTRAP_ADMIN_LIBRARY_ID"),
		BootstrapAdminFirstName: os.Getenv("BOOTSTRAP_ADMIN_FIRST_NAME"),
		BootstrapAdminLastName:  os.Getenv("BOOTSTRAP_ADMIN_LAST_NAME"),
		BootstrapAdminEmail:     os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword:  os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		BootstrapAdminRoleTitle: os.Getenv("BOOTSTRAP_ADMIN_ROLE_TITLE"),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "admin-portal"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	var err error
	if cfg.AdminListCacheTTL, err = time.ParseDuration(getEnv("ADMIN_LIST_CACHE_TTL", "30s")); err != nil {
		return nil, fmt.Errorf("parse ADMIN_LIST_CACHE_TTL: %w", err)
	}
	if cfg.AdminMutationRateWindow, err = time.ParseDuration(getEnv("ADMIN_MUTATION_RATE_WINDOW", "1m")); err != nil {
		return nil, fmt.Errorf("parse ADMIN_MUTATION_RATE_WINDOW: %w", err)
	}
	if cfg.IdempotencyTTL, err = time.ParseDuration(getEnv("IDEMPOTENCY_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("parse IDEMPOTENCY_TTL: %w", err)
	}
	if cfg.ReadinessProbeTimeout, err = time.ParseDuration(getEnv("READINESS_PROBE_TIMEOUT", "1s")); err != nil {
		return nil, fmt.Errorf("parse READINESS_PROBE_TIMEOUT: %w", err)
	}
	if cfg.ReadinessGracePeriod, err = time.ParseDuration(getEnv("READINESS_GRACE_PERIOD", "0s")); err != nil {
		return nil, fmt.Errorf("parse READINESS_GRACE_PERIOD: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "20s")); err != nil {
		return nil, fmt.Errorf("parse SHUTDOWN_TIMEOUT: %w", err)
	}
	if cfg.ShutdownHTTPDrainTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_HTTP_DRAIN_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("parse SHUTDOWN_HTTP_DRAIN_TIMEOUT: %w", err)
	}
	if cfg.ShutdownObservabilityTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_OBSERVABILITY_TIMEOUT", "8s")); err != nil {
		return nil, fmt.Errorf("parse SHUTDOWN_OBSERVABILITY_TIMEOUT: %w", err)
	}
	if cfg.OTELMetricsExportInterval, err = time.ParseDuration(getEnv("OTEL_METRICS_EXPORT_INTERVAL", "10s")); err != nil {
		return nil, fmt.Errorf("parse OTEL_METRICS_EXPORT_INTERVAL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.AdminDefaultPageSize < 1 {
		errs = append(errs, errors.New("ADMIN_DEFAULT_PAGE_SIZE must be >= 1"))
	}
	if c.AdminMaxPageSize < c.AdminDefaultPageSize {
		errs = append(errs, errors.New("ADMIN_MAX_PAGE_SIZE must be >= ADMIN_DEFAULT_PAGE_SIZE"))
	}
	if c.AdminMutationRateLimit > 0 && c.AdminMutationRateWindow <= 0 {
		errs = append(errs, errors.New("ADMIN_MUTATION_RATE_WINDOW must be positive when rate limiting is enabled"))
	}
	if len(c.FlashHashKey) < 32 {
		errs = append(errs, errors.New("FLASH_HASH_KEY must be at least 32 bytes"))
	}
	if c.FlashBlockKey != "" && len(c.FlashBlockKey) != 16 && len(c.FlashBlockKey) != 24 && len(c.FlashBlockKey) != 32 {
		errs = append(errs, errors.New("FLASH_BLOCK_KEY must be 16, 24 or 32 bytes when set"))
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLING_RATIO must be within [0, 1]"))
	}
	switch c.OTELLogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("OTEL_LOG_LEVEL %q is not one of debug, info, warn, error", c.OTELLogLevel))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
