package services

import (
	"context"
	"time"

	"github.com/tbourn/go-lms-backend/internal/domain"
)

// Real-time event names shared by the REST and socket ingress paths.
const (
	EventJoinRoom       = "joinDoubtRoom"
	EventJoinedRoom     = "joinedDoubtRoom"
	EventLeaveRoom      = "leaveDoubtRoom"
	EventLeftRoom       = "leftDoubtRoom"
	EventSendMessage    = "sendDoubtMessage"
	EventReceiveMessage = "receiveDoubtMessage"
	EventTyping         = "userTypingInDoubt"
	EventStatusUpdated  = "doubtStatusUpdated"
	EventAssigned       = "doubtAssigned"
	EventMessageDeleted = "doubtMessageDeleted"
	EventError          = "doubtError"
)

// Publisher delivers a persisted thread event to every connection joined to
// the thread's room. Implementations must not block on slow receivers.
type Publisher interface {
	PublishToThread(ctx context.Context, threadID uint, event string, payload any)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishToThread implements Publisher.
func (NopPublisher) PublishToThread(context.Context, uint, string, any) {}

// MessageView is a message with its sender's public identity. It is both the
// REST representation and the receiveDoubtMessage payload.
type MessageView struct {
	ID       uint              `json:"id"`
	ThreadID uint              `json:"thread_id"`
	Content  string            `json:"content"`
	SentAt   time.Time         `json:"sent_at"`
	Sender   domain.PublicUser `json:"sender"`
}

// StatusUpdate is the doubtStatusUpdated payload.
type StatusUpdate struct {
	ThreadID  uint               `json:"thread_id"`
	Status    domain.DoubtStatus `json:"status"`
	UpdatedBy uint               `json:"updated_by"`
	Reopened  bool               `json:"reopened,omitempty"`
}

// Assignment is the doubtAssigned payload. Instructor is nil when the thread
// was unassigned.
type Assignment struct {
	ThreadID   uint               `json:"thread_id"`
	Instructor *domain.PublicUser `json:"instructor"`
}

// MessageDeleted is the doubtMessageDeleted payload.
type MessageDeleted struct {
	ThreadID  uint `json:"thread_id"`
	MessageID uint `json:"message_id"`
}

func newMessageView(m *domain.DoubtMessage, sender domain.PublicUser) MessageView {
	return MessageView{ID: m.ID, ThreadID: m.ThreadID, Content: m.Content, SentAt: m.SentAt, Sender: sender}
}
