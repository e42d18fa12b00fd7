// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for doubt threads
// and their messages.
//
// Functions:
//
//   - CreateThread / GetThread / ListThreadsPage / CountThreads
//   - UpdateThreadStatus / SetThreadStatusIfNot / AssignThread
//   - DeleteThread (messages first, then the thread, in one transaction)
//   - CreateMessage / GetMessage / ListMessages / DeleteMessage
//
// Messages are always returned ordered by (sent_at ASC, id ASC).
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-lms-backend/internal/domain"
)

// ThreadFilter narrows a thread listing. Zero values mean "no filter".
type ThreadFilter struct {
	Status     domain.DoubtStatus
	CourseID   *uint
	LessonID   *uint
	AskedBy    *uint
	AssignedTo *uint
	// Participant matches threads asked by or assigned to the user.
	Participant *uint
	Tag         string
}

func (f ThreadFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CourseID != nil {
		q = q.Where("course_id = ?", *f.CourseID)
	}
	if f.LessonID != nil {
		q = q.Where("lesson_id = ?", *f.LessonID)
	}
	if f.AskedBy != nil {
		q = q.Where("asker_id = ?", *f.AskedBy)
	}
	if f.AssignedTo != nil {
		q = q.Where("assigned_instructor_id = ?", *f.AssignedTo)
	}
	if f.Participant != nil {
		q = q.Where("(asker_id = ? OR assigned_instructor_id = ?)", *f.Participant, *f.Participant)
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		// Tags are a JSON array of slugs; the quoted form matches a whole element.
		q = q.Where("CAST(tags AS TEXT) LIKE ?", `%"`+tag+`"%`)
	}
	return q
}

// CreateThread inserts t. CreatedAt/UpdatedAt are set by GORM when zero.
func CreateThread(ctx context.Context, db *gorm.DB, t *domain.DoubtThread) error {
	return db.WithContext(ctx).Create(t).Error
}

// GetThread fetches a thread by id or returns ErrNotFound.
func GetThread(ctx context.Context, db *gorm.DB, id uint) (*domain.DoubtThread, error) {
	var t domain.DoubtThread
	if err := db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// CountThreads returns the number of threads matching f.
func CountThreads(ctx context.Context, db *gorm.DB, f ThreadFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.DoubtThread{})).Count(&total).Error
	return total, err
}

// ListThreadsPage returns a page of threads matching f, newest first.
// The caller is responsible for computing offset and limit.
func ListThreadsPage(ctx context.Context, db *gorm.DB, f ThreadFilter, offset, limit int) ([]domain.DoubtThread, error) {
	var out []domain.DoubtThread
	err := f.apply(db.WithContext(ctx).Model(&domain.DoubtThread{})).
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListThreadCorpus returns id, title, description and tags of every thread.
// It backs the similarity index.
func ListThreadCorpus(ctx context.Context, db *gorm.DB) ([]domain.DoubtThread, error) {
	var out []domain.DoubtThread
	err := db.WithContext(ctx).
		Select("id", "title", "description", "tags", "status", "created_at").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// UpdateThreadStatus sets the status of thread id. Returns ErrNotFound if no
// row matched.
func UpdateThreadStatus(ctx context.Context, db *gorm.DB, id uint, status domain.DoubtStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.DoubtThread{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReopenThread moves thread id to OPEN unless it already is, reporting
// whether a row changed.
func ReopenThread(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.DoubtThread{}).
		Where("id = ? AND status <> ?", id, domain.DoubtOpen).
		Updates(map[string]any{"status": domain.DoubtOpen, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

// AssignThread sets (or clears, when instructorID is nil) the assigned
// instructor of thread id.
func AssignThread(ctx context.Context, db *gorm.DB, id uint, instructorID *uint) error {
	res := db.WithContext(ctx).
		Model(&domain.DoubtThread{}).
		Where("id = ?", id).
		Updates(map[string]any{"assigned_instructor_id": instructorID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteThread removes thread id and all its messages.
func DeleteThread(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", id).Delete(&domain.DoubtMessage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.DoubtThread{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateMessage inserts a message into threadID with SentAt = now (UTC).
func CreateMessage(ctx context.Context, db *gorm.DB, threadID, senderID uint, content string) (*domain.DoubtMessage, error) {
	m := &domain.DoubtMessage{
		ThreadID: threadID,
		SenderID: senderID,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by id or returns ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, id uint) (*domain.DoubtMessage, error) {
	var m domain.DoubtMessage
	if err := db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns every message of threadID ordered by (sent_at, id).
func ListMessages(ctx context.Context, db *gorm.DB, threadID uint) ([]domain.DoubtMessage, error) {
	var out []domain.DoubtMessage
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("sent_at asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// DeleteMessage removes message id. Returns ErrNotFound if no row matched.
func DeleteMessage(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.DoubtMessage{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchThread bumps the thread's updated_at so listing ETags change when a
// message is added or removed.
func TouchThread(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.DoubtThread{}).
		Where("id = ?", id).
		Update("updated_at", at.UTC()).Error
}
