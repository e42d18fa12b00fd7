package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-lms-backend/internal/domain"
)

// Snapshot summarizes a set of rows for conditional GETs: how many there are
// and when the newest changed. Latest is nil for an empty set.
type Snapshot struct {
	Count  int64
	Latest *time.Time
}

// snapshot counts the rows scope selects and reads the greatest value of
// column. scope is applied to two fresh sessions because Count mutates the
// statement. The newest row is read with ORDER BY instead of MAX(), which
// SQLite hands back as TEXT.
func snapshot(ctx context.Context, db *gorm.DB, model any, column string, scope func(*gorm.DB) *gorm.DB) (Snapshot, error) {
	var s Snapshot
	if err := scope(db.WithContext(ctx).Model(model)).Count(&s.Count).Error; err != nil {
		return Snapshot{}, err
	}
	if s.Count == 0 {
		return s, nil
	}
	var latest []time.Time
	err := scope(db.WithContext(ctx).Model(model)).
		Order(column+" DESC").
		Limit(1).
		Pluck(column, &latest).Error
	if err != nil {
		return Snapshot{}, err
	}
	if len(latest) == 1 {
		s.Latest = &latest[0]
	}
	return s, nil
}

// ThreadsSnapshot summarizes the threads f selects by updated_at.
func ThreadsSnapshot(ctx context.Context, db *gorm.DB, f ThreadFilter) (Snapshot, error) {
	return snapshot(ctx, db, &domain.DoubtThread{}, "updated_at", f.apply)
}

// MessagesSnapshot summarizes the messages of one thread by sent_at.
func MessagesSnapshot(ctx context.Context, db *gorm.DB, threadID uint) (Snapshot, error) {
	return snapshot(ctx, db, &domain.DoubtMessage{}, "sent_at", func(q *gorm.DB) *gorm.DB {
		return q.Where("thread_id = ?", threadID)
	})
}
