// Package realtime implements the WebSocket fan-out channel for doubt
// threads. Connections join per-thread rooms named "thread-{id}" and receive
// every event the doubt engine publishes for that thread, whether the change
// came in over REST or over the socket itself.
//
// Frames are JSON objects of the form {"event": "...", "data": {...}}.
package realtime

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/tbourn/go-lms-backend/internal/services"
)

// Frame is the wire envelope for both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomRequest is the payload of joinDoubtRoom and leaveDoubtRoom.
type RoomRequest struct {
	ThreadID uint `json:"threadId"`
}

// SendRequest is the payload of sendDoubtMessage.
type SendRequest struct {
	ThreadID uint   `json:"threadId"`
	Content  string `json:"content"`
}

// TypingRequest is the payload of an inbound userTypingInDoubt.
type TypingRequest struct {
	ThreadID uint `json:"threadId"`
	IsTyping bool `json:"isTyping"`
}

// RoomAck is sent back for joinDoubtRoom and leaveDoubtRoom.
type RoomAck struct {
	ThreadID uint   `json:"threadId"`
	Room     string `json:"room"`
}

// Typing is the userTypingInDoubt payload delivered to room peers.
type Typing struct {
	ThreadID uint `json:"threadId"`
	UserID   uint `json:"userId"`
	IsTyping bool `json:"isTyping"`
}

// ErrorPayload is the doubtError payload. It only ever reaches the
// connection whose request failed.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// Error codes carried by doubtError. They match the REST error codes.
const (
	CodeBadRequest   = "bad_request"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeRateLimited  = "too_many_requests"
	CodeUnknownEvent = "unknown_event"
	CodeInternal     = "internal_error"
)

// RoomName returns the room a thread's events are delivered to.
func RoomName(threadID uint) string {
	return "thread-" + strconv.FormatUint(uint64(threadID), 10)
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// errorFor maps a service error to a doubtError payload.
func errorFor(event string, err error) ErrorPayload {
	p := ErrorPayload{Event: event, Message: err.Error()}
	switch {
	case errors.Is(err, services.ErrValidation):
		p.Code = CodeBadRequest
	case errors.Is(err, services.ErrForbidden):
		p.Code = CodeForbidden
	case errors.Is(err, services.ErrThreadNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrMessageNotFound):
		p.Code = CodeNotFound
	default:
		p.Code = CodeInternal
		p.Message = "internal error"
	}
	return p
}
