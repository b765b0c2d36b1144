package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/librasys/admin-portal/internal/http/response"
	"github.com/librasys/admin-portal/internal/observability"
	"github.com/librasys/admin-portal/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

// IdempotencyMiddleware deduplicates mutations carrying an Idempotency-Key
// header. Browser form posts carry no key and pass straight through; scripted
// callers that send one get the stored response on retry instead of a second
// write.
type IdempotencyMiddleware struct {
	store service.IdempotencyStore
	ttl   time.Duration
}

func NewIdempotencyMiddleware(store service.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{store: store, ttl: ttl}
}

func (m *IdempotencyMiddleware) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > 128 {
				observability.RecordIdempotencyEvent(r.Context(), scope, "invalid_key")
				response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid Idempotency-Key header", nil)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				observability.RecordIdempotencyEvent(r.Context(), scope, "read_error")
				response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := fingerprintRequest(r, scope, body)

			begin, err := m.store.Begin(r.Context(), scope, key, fingerprint, m.ttl)
			if err != nil {
				observability.RecordIdempotencyEvent(r.Context(), scope, "store_error")
				slog.ErrorContext(r.Context(), "idempotency check failed", "scope", scope, "error", err)
				response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "idempotency check failed", nil)
				return
			}

			switch begin.State {
			case service.IdempotencyStateConflict:
				observability.RecordIdempotencyEvent(r.Context(), scope, "conflict")
				response.Error(w, r, http.StatusConflict, "CONFLICT", "idempotency key reuse with different payload", nil)
				return
			case service.IdempotencyStateInProgress:
				observability.RecordIdempotencyEvent(r.Context(), scope, "in_progress")
				response.Error(w, r, http.StatusConflict, "CONFLICT", "request with this idempotency key is in progress", nil)
				return
			case service.IdempotencyStateReplay:
				observability.RecordIdempotencyEvent(r.Context(), scope, "replayed")
				writeCachedResponse(w, begin.Cached)
				return
			}

			rec := newCaptureWriter(w)
			next.ServeHTTP(rec, r)

			if rec.statusCode == 0 {
				rec.statusCode = http.StatusOK
			}
			observability.RecordIdempotencyEvent(r.Context(), scope, "created")
			if rec.statusCode >= http.StatusInternalServerError {
				// Server failures are retryable; the key stays claimable once
				// it expires and the retry runs the mutation again.
				return
			}
			if err := m.store.Complete(r.Context(), scope, key, fingerprint, service.CachedHTTPResponse{
				StatusCode:  rec.statusCode,
				ContentType: rec.Header().Get("Content-Type"),
				Location:    rec.Header().Get("Location"),
				Body:        rec.body.Bytes(),
			}, m.ttl); err != nil {
				observability.RecordIdempotencyEvent(r.Context(), scope, "store_error")
				slog.ErrorContext(r.Context(), "idempotency record completion failed", "scope", scope, "error", err)
			}
		})
	}
}

func writeCachedResponse(w http.ResponseWriter, cached *service.CachedHTTPResponse) {
	if cached == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if cached.ContentType != "" {
		w.Header().Set("Content-Type", cached.ContentType)
	}
	if cached.Location != "" {
		w.Header().Set("Location", cached.Location)
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	if len(cached.Body) > 0 {
		_, _ = w.Write(cached.Body)
	}
}

func fingerprintRequest(r *http.Request, scope string, body []byte) string {
	routePattern := r.URL.Path
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			routePattern = pattern
		}
	}
	raw := strings.Join([]string{
		scope,
		r.Method,
		routePattern,
		clientIPKey(r),
		hex.EncodeToString(hashBytes(body)),
	}, "\n")
	return hex.EncodeToString(hashBytes([]byte(raw)))
}

func hashBytes(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

type captureWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{ResponseWriter: w}
}

func (w *captureWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}
