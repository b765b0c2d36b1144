package domain

import "time"

// IdempotencyRecord remembers the outcome of a mutation keyed by the caller's
// Idempotency-Key header so a retry replays the stored response instead of
// repeating the write.
type IdempotencyRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Scope           string    `gorm:"size:64;uniqueIndex:idx_idempotency_scope_key" json:"scope"`
	IdempotencyKey  string    `gorm:"size:128;uniqueIndex:idx_idempotency_scope_key" json:"idempotency_key"`
	FingerprintHash string    `gorm:"size:64" json:"fingerprint_hash"`
	Status          string    `gorm:"size:16" json:"status"`
	ResponseStatus  int       `json:"response_status"`
	ResponseBody    []byte    `json:"-"`
	ContentType     string    `gorm:"size:128" json:"content_type"`
	Location        string    `gorm:"size:512" json:"location"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
