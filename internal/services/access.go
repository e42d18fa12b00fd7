package services

import "github.com/tbourn/go-lms-backend/internal/domain"

// Actor is the resolved identity performing an operation.
type Actor struct {
	ID     uint
	Role   domain.Role
	Status domain.UserStatus
}

// IsAdmin reports whether a holds the ADMIN role.
func IsAdmin(a Actor) bool { return a.Role == domain.RoleAdmin }

// IsResponder reports whether a answers on t: an admin or the assigned
// instructor.
func IsResponder(a Actor, t *domain.DoubtThread) bool {
	return IsAdmin(a) || t.IsAssignedTo(a.ID)
}

// CanPost reports whether a may add a message to t.
func CanPost(a Actor, t *domain.DoubtThread) bool {
	return a.ID == t.AskerID || IsResponder(a, t)
}

// CanUpdateStatus reports whether a may change the status of t.
func CanUpdateStatus(a Actor, t *domain.DoubtThread) bool {
	return IsResponder(a, t)
}

// CanAssign reports whether a may (un)assign instructors.
func CanAssign(a Actor) bool { return IsAdmin(a) }

// CanDeleteThread reports whether a may delete t.
func CanDeleteThread(a Actor, t *domain.DoubtThread) bool {
	return a.ID == t.AskerID || IsAdmin(a)
}

// CanDeleteMessage reports whether a may delete individual messages.
func CanDeleteMessage(a Actor) bool { return IsAdmin(a) }
