package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/librasys/admin-portal/internal/app"
	"github.com/librasys/admin-portal/internal/config"
	"github.com/librasys/admin-portal/internal/database"
	"github.com/librasys/admin-portal/internal/health"
	"github.com/librasys/admin-portal/internal/http/flash"
	"github.com/librasys/admin-portal/internal/http/handler"
	"github.com/librasys/admin-portal/internal/http/middleware"
	"github.com/librasys/admin-portal/internal/http/render"
	"github.com/librasys/admin-portal/internal/http/router"
	"github.com/librasys/admin-portal/internal/observability"
	"github.com/librasys/admin-portal/internal/repository"
	"github.com/librasys/admin-portal/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewUserTypeRepository,
)

var ServiceSet = wire.NewSet(
	provideCompromisedChecker,
	provideListCacheStore,
	provideAdminService,
	wire.Bind(new(service.AdminServiceInterface), new(*service.AdminService)),
)

var HTTPSet = wire.NewSet(
	provideFlashStore,
	render.NewRenderer,
	handler.NewAdminHandler,
	provideMutationRateLimiter,
	provideIdempotencyMiddleware,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	report, err := database.Seed(m.db, nil)
	if err != nil {
		return err
	}
	fmt.Printf("migration complete (created %d user types)\n", report.CreatedUserTypes)
	return nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if _, err := database.Seed(db, nil); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func provideCompromisedChecker(cfg *config.Config) service.CompromisedPasswordChecker {
	if !cfg.PasswordCompromisedCheckEnabled {
		return service.NoopCompromisedChecker{}
	}
	return service.NewRangeAPICompromisedChecker(cfg.PasswordCompromisedAPIURL)
}

func provideListCacheStore(redisClient redis.UniversalClient) service.ListCacheStore {
	if redisClient == nil {
		return service.NewInMemoryListCacheStore()
	}
	return service.NewRedisListCacheStore(redisClient, "admin_list_cache")
}

func provideAdminService(
	users repository.UserRepository,
	userTypes repository.UserTypeRepository,
	compromised service.CompromisedPasswordChecker,
	cache service.ListCacheStore,
	cfg *config.Config,
) *service.AdminService {
	return service.NewAdminService(users, userTypes, compromised, cache, cfg.AdminListCacheTTL)
}

func provideFlashStore(cfg *config.Config) *flash.Store {
	var blockKey []byte
	if cfg.FlashBlockKey != "" {
		blockKey = []byte(cfg.FlashBlockKey)
	}
	return flash.NewStore([]byte(cfg.FlashHashKey), blockKey, cfg.IsProduction())
}

func provideMutationRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) *middleware.RateLimiter {
	if cfg.AdminMutationRateLimit <= 0 {
		return nil
	}
	// With Redis the counters are shared across instances and an outage
	// should not take mutations down with it. The local limiter has no
	// backend to lose, so it fails closed.
	if redisClient != nil {
		limiter := middleware.NewRedisFixedWindowLimiter(redisClient, "admin_rl")
		return middleware.NewRateLimiter(limiter, cfg.AdminMutationRateLimit, cfg.AdminMutationRateWindow, middleware.FailOpen, "admin_mutations")
	}
	return middleware.NewRateLimiter(middleware.NewLocalFixedWindowLimiter(), cfg.AdminMutationRateLimit, cfg.AdminMutationRateWindow, middleware.FailClosed, "admin_mutations")
}

func provideIdempotencyMiddleware(db *gorm.DB, cfg *config.Config) *middleware.IdempotencyMiddleware {
	return middleware.NewIdempotencyMiddleware(service.NewDBIdempotencyStore(db), cfg.IdempotencyTTL)
}

func provideRouterDependencies(
	adminHandler *handler.AdminHandler,
	readiness *health.ProbeRunner,
	mutationLimiter *middleware.RateLimiter,
	idempotency *middleware.IdempotencyMiddleware,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AdminHandler:    adminHandler,
		Readiness:       readiness,
		MutationLimiter: mutationLimiter,
		Idempotency:     idempotency,
		EnableOTelHTTP:  cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if c := health.NewRedisChecker(redisClient); c != nil {
		checkers = append(checkers, c)
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ReadinessGracePeriod, checkers...)
}
