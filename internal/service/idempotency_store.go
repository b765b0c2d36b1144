package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/librasys/admin-portal/internal/domain"
)

type IdempotencyState string

const (
	IdempotencyStateNew        IdempotencyState = "new"
	IdempotencyStateInProgress IdempotencyState = "in_progress"
	IdempotencyStateReplay     IdempotencyState = "replay"
	IdempotencyStateConflict   IdempotencyState = "conflict"
)

// idempotencyStatusCompleted is the stored status of a finished mutation.
// Rows keep either "new" or this value; the other states exist only as
// Begin outcomes.
const idempotencyStatusCompleted = "completed"

// CachedHTTPResponse is the stored outcome replayed on a retried key.
// Location survives so replayed redirects still point somewhere.
type CachedHTTPResponse struct {
	StatusCode  int
	ContentType string
	Location    string
	Body        []byte
}

type IdempotencyBeginResult struct {
	State  IdempotencyState
	Cached *CachedHTTPResponse
}

// IdempotencyStore claims a key before a mutation runs and records the
// response after it finishes.
type IdempotencyStore interface {
	Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error)
	Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error
}

type DBIdempotencyStore struct {
	db *gorm.DB
}

func NewDBIdempotencyStore(db *gorm.DB) *DBIdempotencyStore {
	return &DBIdempotencyStore{db: db}
}

// Begin claims the (scope, key) pair. The row lock serializes concurrent
// retries of the same key; an expired row is reclaimed in place.
func (s *DBIdempotencyStore) Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	now := time.Now().UTC()
	var result IdempotencyBeginResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec domain.IdempotencyRecord
		q := tx.Where("scope = ? AND idempotency_key = ?", scope, key)
		// SQLite serializes writers on its own and rejects FOR UPDATE.
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := q.First(&rec).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				create := domain.IdempotencyRecord{
					Scope:           scope,
					IdempotencyKey:  key,
					FingerprintHash: fingerprint,
					Status:          string(IdempotencyStateNew),
					ExpiresAt:       now.Add(ttl),
				}
				if createErr := tx.Create(&create).Error; createErr != nil {
					if isUniqueViolation(createErr) {
						return errIdempotencyRaced
					}
					return createErr
				}
				result.State = IdempotencyStateNew
				return nil
			}
			return err
		}

		if rec.ExpiresAt.Before(now) {
			rec.FingerprintHash = fingerprint
			rec.Status = string(IdempotencyStateNew)
			rec.ResponseStatus = 0
			rec.ResponseBody = nil
			rec.ContentType = ""
			rec.Location = ""
			rec.ExpiresAt = now.Add(ttl)
			if saveErr := tx.Save(&rec).Error; saveErr != nil {
				return saveErr
			}
			result.State = IdempotencyStateNew
			return nil
		}

		if rec.FingerprintHash != fingerprint {
			result.State = IdempotencyStateConflict
			return nil
		}
		if rec.Status == idempotencyStatusCompleted {
			result.State = IdempotencyStateReplay
			result.Cached = &CachedHTTPResponse{
				StatusCode:  rec.ResponseStatus,
				ContentType: rec.ContentType,
				Location:    rec.Location,
				Body:        append([]byte(nil), rec.ResponseBody...),
			}
			return nil
		}
		result.State = IdempotencyStateInProgress
		return nil
	})
	if err != nil {
		if errors.Is(err, errIdempotencyRaced) {
			// Another request created the row between our read and insert;
			// reading again resolves to replay, conflict or in-progress.
			return s.Begin(ctx, scope, key, fingerprint, ttl)
		}
		return IdempotencyBeginResult{}, err
	}
	return result, nil
}

func (s *DBIdempotencyStore) Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&domain.IdempotencyRecord{}).
		Where("scope = ? AND idempotency_key = ? AND fingerprint_hash = ?", scope, key, fingerprint).
		Where("status <> ?", idempotencyStatusCompleted).
		Updates(map[string]any{
			"status":          idempotencyStatusCompleted,
			"response_status": response.StatusCode,
			"response_body":   response.Body,
			"content_type":    response.ContentType,
			"location":        response.Location,
			"expires_at":      now.Add(ttl),
		})
	return res.Error
}

var errIdempotencyRaced = errors.New("idempotency record raced")

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "unique violation")
}
