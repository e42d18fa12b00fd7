package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-lms-backend/internal/domain"
)

// EnsureEnrollment inserts the (userID, courseID) enrollment unless it already
// exists and returns the stored row. The insert uses ON CONFLICT DO NOTHING so
// a concurrent winner never aborts the surrounding transaction.
func EnsureEnrollment(ctx context.Context, db *gorm.DB, userID, courseID uint, at time.Time) (*domain.Enrollment, error) {
	e := &domain.Enrollment{UserID: userID, CourseID: courseID, EnrolledAt: at.UTC()}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(e).Error
	if err != nil {
		return nil, err
	}
	return GetEnrollment(ctx, db, userID, courseID)
}

// GetEnrollment fetches the enrollment for (userID, courseID) or ErrNotFound.
func GetEnrollment(ctx context.Context, db *gorm.DB, userID, courseID uint) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// IsEnrolled reports whether an enrollment exists for (userID, courseID).
func IsEnrolled(ctx context.Context, db *gorm.DB, userID, courseID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&n).Error
	return n > 0, err
}
