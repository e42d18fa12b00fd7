package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-lms-backend/internal/domain"
)

// CreateCourse inserts a course row.
func CreateCourse(ctx context.Context, db *gorm.DB, c *domain.Course) error {
	return db.WithContext(ctx).Create(c).Error
}

// GetCourse fetches a course by id or returns ErrNotFound.
func GetCourse(ctx context.Context, db *gorm.DB, id uint) (*domain.Course, error) {
	var c domain.Course
	if err := db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateLesson inserts a lesson row.
func CreateLesson(ctx context.Context, db *gorm.DB, l *domain.Lesson) error {
	return db.WithContext(ctx).Create(l).Error
}

// GetLesson fetches a lesson by id or returns ErrNotFound.
func GetLesson(ctx context.Context, db *gorm.DB, id uint) (*domain.Lesson, error) {
	var l domain.Lesson
	if err := db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}
