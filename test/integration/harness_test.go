package integration

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/librasys/admin-portal/internal/config"
	"github.com/librasys/admin-portal/internal/database"
	"github.com/librasys/admin-portal/internal/health"
	"github.com/librasys/admin-portal/internal/http/flash"
	"github.com/librasys/admin-portal/internal/http/handler"
	"github.com/librasys/admin-portal/internal/http/middleware"
	"github.com/librasys/admin-portal/internal/http/render"
	"github.com/librasys/admin-portal/internal/http/router"
	"github.com/librasys/admin-portal/internal/repository"
	"github.com/librasys/admin-portal/internal/service"
)

type portalServerOptions struct {
	cache    service.ListCacheStore
	cacheTTL time.Duration

	// mutationLimit wires the fixed-window limiter over POST and DELETE
	// when positive; idempotency wires the Idempotency-Key middleware.
	mutationLimit  int
	mutationWindow time.Duration
	idempotency    bool
}

type portalEnv struct {
	db *gorm.DB
}

func newPortalTestServer(t *testing.T, opts portalServerOptions) (string, *portalEnv, func()) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := database.Seed(db, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := &config.Config{AdminDefaultPageSize: 10, AdminMaxPageSize: 100}
	svc := service.NewAdminService(
		repository.NewUserRepository(db),
		repository.NewUserTypeRepository(db),
		nil,
		opts.cache,
		opts.cacheTTL,
	)
	flashes := flash.NewStore([]byte(strings.Repeat("k", 32)), nil, false)
	adminHandler := handler.NewAdminHandler(svc, render.NewRenderer(flashes), cfg)
	readiness := health.NewProbeRunner(time.Second, 0, health.NewDBChecker(db))

	deps := router.Dependencies{
		AdminHandler: adminHandler,
		Readiness:    readiness,
	}
	if opts.mutationLimit > 0 {
		window := opts.mutationWindow
		if window <= 0 {
			window = time.Minute
		}
		deps.MutationLimiter = middleware.NewRateLimiter(
			middleware.NewLocalFixedWindowLimiter(), opts.mutationLimit, window, middleware.FailClosed, "admin_mutations")
	}
	if opts.idempotency {
		deps.Idempotency = middleware.NewIdempotencyMiddleware(service.NewDBIdempotencyStore(db), time.Hour)
	}

	srv := httptest.NewServer(router.NewRouter(deps))
	return srv.URL, &portalEnv{db: db}, srv.Close
}

func newPortalClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}
