package domain

import (
	"time"

	"gorm.io/datatypes"
)

// DoubtStatus is the lifecycle state of a doubt thread.
type DoubtStatus string

const (
	DoubtOpen     DoubtStatus = "OPEN"
	DoubtResolved DoubtStatus = "RESOLVED"
	DoubtClosed   DoubtStatus = "CLOSED"
)

// Valid reports whether s is one of the known statuses.
func (s DoubtStatus) Valid() bool {
	switch s {
	case DoubtOpen, DoubtResolved, DoubtClosed:
		return true
	}
	return false
}

// ReopenOnResponderReply is the implicit transition taken when a responder
// (assigned instructor or admin) replies to a thread. It returns the status
// the thread must hold after the reply and whether that differs from current.
// Replies by anyone else never change the status.
func ReopenOnResponderReply(current DoubtStatus, byResponder bool) (DoubtStatus, bool) {
	if !byResponder || current == DoubtOpen {
		return current, false
	}
	return DoubtOpen, true
}

// DoubtThread is a question asked by a user, optionally tied to a course or
// lesson and optionally assigned to one instructor.
//
// Fields:
//   - AskerID: immutable creator reference.
//   - AssignedInstructorID: nullable; set and cleared by admins.
//   - Tags: normalized tag slugs stored as a JSON array.
//   - Messages: cascade-deleted with the thread.
type DoubtThread struct {
	ID                   uint                        `json:"id"                     gorm:"primaryKey;autoIncrement"`
	Title                string                      `json:"title"                  gorm:"type:varchar(255);not null"`
	Description          string                      `json:"description"            gorm:"type:text;not null"`
	Tags                 datatypes.JSONSlice[string] `json:"tags"`
	Status               DoubtStatus                 `json:"status"                 gorm:"type:varchar(16);not null;default:'OPEN';index"`
	AskerID              uint                        `json:"asker_id"               gorm:"not null;index"`
	AssignedInstructorID *uint                       `json:"assigned_instructor_id" gorm:"index"`
	CourseID             *uint                       `json:"course_id,omitempty"    gorm:"index"`
	LessonID             *uint                       `json:"lesson_id,omitempty"    gorm:"index"`
	CreatedAt            time.Time                   `json:"created_at"             gorm:"index"`
	UpdatedAt            time.Time                   `json:"updated_at"`

	Asker              User           `json:"-" gorm:"foreignKey:AskerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	AssignedInstructor *User          `json:"-" gorm:"foreignKey:AssignedInstructorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Messages           []DoubtMessage `json:"-" gorm:"foreignKey:ThreadID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DoubtThread.
func (DoubtThread) TableName() string { return "doubt_threads" }

// IsAssignedTo reports whether userID is the thread's assigned instructor.
func (t DoubtThread) IsAssignedTo(userID uint) bool {
	return t.AssignedInstructorID != nil && *t.AssignedInstructorID == userID
}

// DoubtMessage is a single append-only reply inside a thread. Messages are
// displayed ordered by (sent_at ASC, id ASC).
type DoubtMessage struct {
	ID       uint      `json:"id"        gorm:"primaryKey;autoIncrement"`
	ThreadID uint      `json:"thread_id" gorm:"not null;index:idx_doubt_msgs,priority:1"`
	SenderID uint      `json:"sender_id" gorm:"not null;index"`
	Content  string    `json:"content"   gorm:"type:text;not null"`
	SentAt   time.Time `json:"sent_at"   gorm:"not null;index:idx_doubt_msgs,priority:2"`

	Sender User `json:"-" gorm:"foreignKey:SenderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DoubtMessage.
func (DoubtMessage) TableName() string { return "doubt_messages" }
