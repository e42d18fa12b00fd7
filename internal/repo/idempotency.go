package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-lms-backend/internal/domain"
)

// IdempotencyKey names one replayable request: the client supplied Key, sent
// by UserID, against the resource named by Scope (for example
// "doubt:7:messages"). Keys never match across users or scopes.
type IdempotencyKey struct {
	UserID uint
	Scope  string
	Key    string
}

func (k IdempotencyKey) valid() bool {
	return k.UserID != 0 && strings.TrimSpace(k.Scope) != "" && k.Key != ""
}

func (k IdempotencyKey) where(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ? AND scope = ? AND key = ?", k.UserID, k.Scope, k.Key)
}

// GetIdempotency returns the record stored under k if it is still live at
// now, or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, k IdempotencyKey, now time.Time) (*domain.Idempotency, error) {
	if !k.valid() {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := k.where(db.WithContext(ctx)).Where("expires_at > ?", now.UTC()).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordIdempotency remembers that the request under k produced resultID with
// the given HTTP status. A second record for the same key is ErrDuplicate,
// which callers treat as a lost race and replay the first result.
func RecordIdempotency(ctx context.Context, db *gorm.DB, k IdempotencyKey, resultID uint, status int, ttl time.Duration) (*domain.Idempotency, error) {
	if !k.valid() {
		return nil, errors.New("repo: incomplete idempotency key")
	}
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    k.UserID,
		Scope:     k.Scope,
		Key:       k.Key,
		ResultID:  resultID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Create(rec).Error
	switch {
	case IsDuplicate(err):
		return nil, ErrDuplicate
	case err != nil:
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes every record that expired at or before now
// and reports how many went.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
