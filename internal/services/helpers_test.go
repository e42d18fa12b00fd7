package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-lms-backend/internal/domain"
	"github.com/tbourn/go-lms-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedActor(t *testing.T, db *gorm.DB, name string, role domain.Role) Actor {
	t.Helper()
	u := &domain.User{Name: name, Email: name + "@lms.test", PasswordHash: "x", Role: role, Status: domain.UserActive}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return Actor{ID: u.ID, Role: u.Role, Status: u.Status}
}

func seedCourse(t *testing.T, db *gorm.DB, price int64, published bool) *domain.Course {
	t.Helper()
	c := &domain.Course{Title: "Go 101", Price: price, Currency: "INR", IsPublished: published}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return c
}

type published struct {
	ThreadID uint
	Event    string
	Payload  any
}

// recorder is a Publisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) PublishToThread(_ context.Context, threadID uint, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{ThreadID: threadID, Event: event, Payload: payload})
}

func (r *recorder) named(event string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func uintPtr(v uint) *uint { return &v }
