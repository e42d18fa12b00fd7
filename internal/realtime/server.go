package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-lms-backend/internal/services"
)

// Authenticator resolves a handshake credential.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (services.Actor, error)
}

// Doubts is the part of the doubt engine the socket drives.
type Doubts interface {
	Exists(ctx context.Context, threadID uint) error
	PostMessage(ctx context.Context, actor services.Actor, threadID uint, content string) (*services.MessageView, error)
}

// Options tunes the socket endpoint.
type Options struct {
	// AllowedOrigins lists browser origins that may connect. Empty or "*"
	// accepts any origin.
	AllowedOrigins  []string
	MaxMessageBytes int64
	PingInterval    time.Duration
	SendBuffer      int
	EventRPS        float64
	EventBurst      int
}

func (o Options) withDefaults() Options {
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 16 << 10
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.EventRPS <= 0 {
		o.EventRPS = 10
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 20
	}
	return o
}

// Server is the http.Handler for the socket endpoint.
type Server struct {
	hub      *Hub
	doubts   Doubts
	auth     Authenticator
	opts     Options
	upgrader websocket.Upgrader
}

// NewServer wires the socket endpoint to hub and the doubt engine.
func NewServer(hub *Hub, doubts Doubts, auth Authenticator, opts Options) *Server {
	opts = opts.withDefaults()
	s := &Server{hub: hub, doubts: doubts, auth: auth, opts: opts}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Credential extracts the handshake credential: a Bearer Authorization
// header, the token query parameter, or the access_token cookie, in that
// order.
func Credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if c, err := r.Cookie("access_token"); err == nil {
		return c.Value
	}
	return ""
}

// ServeHTTP authenticates and upgrades the request. Unauthenticated
// handshakes are answered with 401 and never upgraded.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, err := s.auth.Resolve(r.Context(), Credential(r))
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"authentication required"}`))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logger(r.Context()).Debug().Err(err).Msg("websocket upgrade")
		return
	}

	id := uuid.NewString()
	c := newClient(id, actor, conn, s.opts.SendBuffer, rate.NewLimiter(rate.Limit(s.opts.EventRPS), s.opts.EventBurst))
	if !s.hub.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	// The request context ends when this handler returns; the connection
	// keeps its values (logger, trace) but not its cancellation.
	l := logger(r.Context()).With().Str("conn_id", id).Uint("user_id", actor.ID).Logger()
	ctx := l.WithContext(context.WithoutCancel(r.Context()))
	l.Debug().Msg("websocket connected")

	go c.writePump(s.opts.PingInterval)
	go c.readPump(ctx, s.hub, s.opts.MaxMessageBytes, s.opts.PingInterval*2, s.handle)
}

func (s *Server) handle(ctx context.Context, c *Client, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
		s.hub.metrics.Event("invalid", "bad_request")
		s.fail(c, "", ErrorPayload{Code: CodeBadRequest, Message: "malformed frame"})
		return
	}
	if !c.limiter.Allow() {
		s.hub.metrics.Event(f.Event, "rate_limited")
		s.fail(c, f.Event, ErrorPayload{Code: CodeRateLimited, Message: "too many events"})
		return
	}

	var outcome string
	switch f.Event {
	case services.EventJoinRoom:
		outcome = s.join(ctx, c, f.Data)
	case services.EventLeaveRoom:
		outcome = s.leave(c, f.Data)
	case services.EventSendMessage:
		outcome = s.sendMessage(ctx, c, f.Data)
	case services.EventTyping:
		outcome = s.typing(ctx, c, f.Data)
	default:
		outcome = CodeUnknownEvent
		s.fail(c, f.Event, ErrorPayload{Code: CodeUnknownEvent, Message: "unknown event"})
	}
	s.hub.metrics.Event(f.Event, outcome)
}

func (s *Server) join(ctx context.Context, c *Client, data json.RawMessage) string {
	var req RoomRequest
	if json.Unmarshal(data, &req) != nil || req.ThreadID == 0 {
		return s.fail(c, services.EventJoinRoom, ErrorPayload{Code: CodeBadRequest, Message: "threadId is required"})
	}
	if err := s.doubts.Exists(ctx, req.ThreadID); err != nil {
		return s.failErr(ctx, c, services.EventJoinRoom, err)
	}
	if !s.hub.Join(c, req.ThreadID) {
		return "duplicate"
	}
	s.reply(ctx, c, services.EventJoinedRoom, RoomAck{ThreadID: req.ThreadID, Room: RoomName(req.ThreadID)})
	return "ok"
}

func (s *Server) leave(c *Client, data json.RawMessage) string {
	var req RoomRequest
	if json.Unmarshal(data, &req) != nil || req.ThreadID == 0 {
		return s.fail(c, services.EventLeaveRoom, ErrorPayload{Code: CodeBadRequest, Message: "threadId is required"})
	}
	s.hub.Leave(c, req.ThreadID)
	s.reply(context.Background(), c, services.EventLeftRoom, RoomAck{ThreadID: req.ThreadID, Room: RoomName(req.ThreadID)})
	return "ok"
}

// sendMessage persists through the doubt engine, which publishes the
// resulting receiveDoubtMessage to the room, the sender included when joined.
func (s *Server) sendMessage(ctx context.Context, c *Client, data json.RawMessage) string {
	var req SendRequest
	if json.Unmarshal(data, &req) != nil || req.ThreadID == 0 {
		return s.fail(c, services.EventSendMessage, ErrorPayload{Code: CodeBadRequest, Message: "threadId and content are required"})
	}
	if _, err := s.doubts.PostMessage(ctx, c.Actor, req.ThreadID, req.Content); err != nil {
		return s.failErr(ctx, c, services.EventSendMessage, err)
	}
	return "ok"
}

func (s *Server) typing(ctx context.Context, c *Client, data json.RawMessage) string {
	var req TypingRequest
	if json.Unmarshal(data, &req) != nil || req.ThreadID == 0 {
		return s.fail(c, services.EventTyping, ErrorPayload{Code: CodeBadRequest, Message: "threadId is required"})
	}
	if !s.hub.InRoom(c, req.ThreadID) {
		return s.fail(c, services.EventTyping, ErrorPayload{Code: CodeForbidden, Message: "join the room first"})
	}
	frame, err := encode(services.EventTyping, Typing{ThreadID: req.ThreadID, UserID: c.Actor.ID, IsTyping: req.IsTyping})
	if err != nil {
		return CodeInternal
	}
	s.hub.emit(ctx, Envelope{Room: RoomName(req.ThreadID), Except: c.ID, Frame: frame})
	return "ok"
}

func (s *Server) reply(ctx context.Context, c *Client, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		logger(ctx).Error().Err(err).Str("event", event).Msg("encode reply")
		return
	}
	s.hub.sendTo(c, frame)
}

// fail sends a doubtError to c and returns its code for metrics.
func (s *Server) fail(c *Client, event string, p ErrorPayload) string {
	p.Event = event
	frame, err := encode(services.EventError, p)
	if err == nil {
		s.hub.sendTo(c, frame)
	}
	return p.Code
}

func (s *Server) failErr(ctx context.Context, c *Client, event string, err error) string {
	p := errorFor(event, err)
	if p.Code == CodeInternal {
		logger(ctx).Error().Err(err).Str("event", event).Msg("realtime event failed")
	}
	return s.fail(c, event, p)
}
