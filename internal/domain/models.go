// Package domain defines the persistence models for users, courses,
// enrollments, doubt threads and payment orders. These types are mapped with
// GORM and form the core data layer of the LMS backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Role is the platform role of a user.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the account state of a user. Only ACTIVE accounts may
// authenticate.
type UserStatus string

const (
	UserActive   UserStatus = "ACTIVE"
	UserInactive UserStatus = "INACTIVE"
	UserBanned   UserStatus = "BANNED"
)

// User is a platform account.
//
// Fields:
//   - ID: numeric primary key.
//   - Email: login identifier; unique.
//   - PasswordHash: bcrypt hash, never serialized.
//   - Role / Status: drive authorization and session validity.
//   - AvatarURL: optional public avatar reference.
type User struct {
	ID           uint           `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name         string         `json:"name"       gorm:"type:varchar(120);not null"`
	Email        string         `json:"-"          gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string         `json:"-"          gorm:"type:varchar(255);not null"`
	Role         Role           `json:"role"       gorm:"type:varchar(16);not null;default:'STUDENT';index"`
	Status       UserStatus     `json:"status"     gorm:"type:varchar(16);not null;default:'ACTIVE'"`
	AvatarURL    string         `json:"avatar_url" gorm:"type:varchar(512)"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Public returns the identity of u that is safe to show to other users.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Role: u.Role, AvatarURL: u.AvatarURL}
}

// PublicUser is the sender identity attached to messages and threads.
type PublicUser struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Course is the minimal catalog row the payment and doubt flows read.
// Price is expressed in minor currency units (e.g. paise).
type Course struct {
	ID          uint           `json:"id"           gorm:"primaryKey;autoIncrement"`
	Title       string         `json:"title"        gorm:"type:varchar(255);not null"`
	Price       int64          `json:"price"        gorm:"not null;default:0"`
	Currency    string         `json:"currency"     gorm:"type:varchar(8);not null;default:'INR'"`
	IsPublished bool           `json:"is_published" gorm:"not null;default:false"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Course.
func (Course) TableName() string { return "courses" }

// Purchasable reports whether the course can be bought through the gateway.
func (c Course) Purchasable() bool { return c.IsPublished && c.Price > 0 }

// Lesson belongs to a course and may be referenced by a doubt thread.
type Lesson struct {
	ID        uint      `json:"id"        gorm:"primaryKey;autoIncrement"`
	CourseID  uint      `json:"course_id" gorm:"not null;index"`
	Title     string    `json:"title"     gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Course Course `json:"-" gorm:"foreignKey:CourseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Lesson.
func (Lesson) TableName() string { return "lessons" }

// Enrollment grants a user access to a course. At most one row exists per
// (user_id, course_id), enforced by a unique index.
type Enrollment struct {
	ID          uint       `json:"id"           gorm:"primaryKey;autoIncrement"`
	UserID      uint       `json:"user_id"      gorm:"not null;uniqueIndex:ux_enrollment_user_course,priority:1"`
	CourseID    uint       `json:"course_id"    gorm:"not null;uniqueIndex:ux_enrollment_user_course,priority:2;index"`
	EnrolledAt  time.Time  `json:"enrolled_at"  gorm:"not null"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	User   User   `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Course Course `json:"-" gorm:"foreignKey:CourseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Enrollment.
func (Enrollment) TableName() string { return "enrollments" }
