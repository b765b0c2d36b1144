package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/librasys/admin-portal/internal/domain"
	"github.com/librasys/admin-portal/internal/service"
)

func newIdempotencyHandlerForTest(t *testing.T) (http.Handler, *int, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.IdempotencyRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	invocations := 0
	mw := NewIdempotencyMiddleware(service.NewDBIdempotencyStore(db), time.Hour)
	h := mw.Middleware("admin_mutations")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invocations++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	return h, &invocations, db
}

func postAdmins(t *testing.T, h http.Handler, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admins", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:12345"
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyMiddlewarePassesThroughWithoutKey(t *testing.T) {
	h, invocations, db := newIdempotencyHandlerForTest(t)

	for i := 0; i < 2; i++ {
		if rec := postAdmins(t, h, "", "payload"); rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
	}
	if *invocations != 2 {
		t.Fatalf("invocations = %d, want 2", *invocations)
	}
	var count int64
	if err := db.Model(&domain.IdempotencyRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("row count = %d, want 0", count)
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	h, invocations, db := newIdempotencyHandlerForTest(t)

	first := postAdmins(t, h, "retry-key", "payload")
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}
	if first.Header().Get("X-Idempotency-Replayed") != "" {
		t.Fatal("first response must not be marked replayed")
	}

	second := postAdmins(t, h, "retry-key", "payload")
	if second.Code != http.StatusCreated {
		t.Fatalf("second status = %d, want 201", second.Code)
	}
	if second.Header().Get("X-Idempotency-Replayed") != "true" {
		t.Fatal("second response must be marked replayed")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body %q differs from original %q", second.Body.String(), first.Body.String())
	}
	if *invocations != 1 {
		t.Fatalf("invocations = %d, want 1", *invocations)
	}
	var count int64
	if err := db.Model(&domain.IdempotencyRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("row count = %d, want 1", count)
	}
}

func TestIdempotencyMiddlewareConflictOnChangedPayload(t *testing.T) {
	h, _, _ := newIdempotencyHandlerForTest(t)

	if rec := postAdmins(t, h, "retry-key", "payload"); rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", rec.Code)
	}
	rec := postAdmins(t, h, "retry-key", "different payload")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "different payload") {
		t.Fatalf("body missing conflict message: %s", rec.Body.String())
	}
}

func TestIdempotencyMiddlewareRejectsOversizedKey(t *testing.T) {
	h, invocations, _ := newIdempotencyHandlerForTest(t)

	rec := postAdmins(t, h, strings.Repeat("k", 129), "payload")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if *invocations != 0 {
		t.Fatalf("invocations = %d, want 0", *invocations)
	}
}
