package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Metrics receives hub and connection counters. observability.Metrics
// implements it.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	Event(event, outcome string)
	SlowConsumer()
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()    {}
func (nopMetrics) ConnectionClosed()    {}
func (nopMetrics) Event(string, string) {}
func (nopMetrics) SlowConsumer()        {}

// Envelope is a frame addressed to a room. Except, when set, is the id of a
// connection that must not receive it.
type Envelope struct {
	Room   string          `json:"room"`
	Except string          `json:"except,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// Broker relays room envelopes between server instances. Every instance
// subscribed to the broker, including the publisher, delivers the envelope
// to its local members of the room.
//
// Subscribe blocks for the life of the subscription. It calls ready once the
// subscription is confirmed and before any envelope is delivered.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context, deliver func(Envelope), ready func()) error
	Close() error
}

// Resubscribe backoff bounds.
const (
	resubscribeMin = 250 * time.Millisecond
	resubscribeMax = 15 * time.Second
)

// Hub tracks live connections and their room memberships.
//
// All membership state is guarded by mu. A client's send channel is only
// closed under the write lock, after the client has left every room, so
// delivering under the read lock never writes to a closed channel.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	closed  bool

	broker  Broker
	metrics Metrics

	// subscribed is true while this hub receives its own broker traffic.
	subscribed atomic.Bool
	ready      chan struct{}
	readyOnce  sync.Once
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBroker routes room traffic through b.
func WithBroker(b Broker) HubOption { return func(h *Hub) { h.broker = b } }

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) HubOption {
	return func(h *Hub) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewHub returns an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		metrics: nopMetrics{},
		ready:   make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.broker == nil {
		h.markReady()
	}
	return h
}

// Ready is closed once the hub first receives broker traffic, or at once
// when there is no broker.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

func (h *Hub) markReady() { h.readyOnce.Do(func() { close(h.ready) }) }

// Run relays broker traffic to local rooms until ctx is done. A failed or
// ended subscription is retried with exponential backoff; in between, room
// events are delivered to local members directly. Without a broker it simply
// waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		<-ctx.Done()
		return nil
	}
	wait := resubscribeMin
	for {
		var confirmed bool
		err := h.broker.Subscribe(ctx, h.deliver, func() {
			confirmed = true
			h.subscribed.Store(true)
			h.markReady()
		})
		h.subscribed.Store(false)
		if ctx.Err() != nil {
			return nil
		}
		if confirmed {
			wait = resubscribeMin
		}
		logger(ctx).Warn().Err(err).Dur("retry_in", wait).Msg("broker subscription lost; delivering locally")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		wait = min(wait*2, resubscribeMax)
	}
}

// Close disconnects every client. Later registrations are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.detachLocked(c, websocket.CloseGoingAway, "server shutting down")
	}
	h.rooms = make(map[string]map[*Client]struct{})
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.ConnectionOpened()
	return true
}

// unregister removes c from every room and closes its send channel.
func (h *Hub) unregister(c *Client) {
	h.drop(c, websocket.CloseNormalClosure, "")
}

func (h *Hub) drop(c *Client, code int, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(c, code, reason)
}

func (h *Hub) detachLocked(c *Client, code int, reason string) {
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode, c.closeReason = code, reason
	for room := range c.rooms {
		if members := h.rooms[room]; members != nil {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	c.rooms = nil
	delete(h.clients, c)
	close(c.send)
	h.metrics.ConnectionClosed()
}

// Join adds c to the thread's room. It reports false when c already was a
// member.
func (h *Hub) Join(c *Client, threadID uint) bool {
	room := RoomName(threadID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return false
	}
	if _, ok := c.rooms[room]; ok {
		return false
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	if c.rooms == nil {
		c.rooms = make(map[string]struct{})
	}
	c.rooms[room] = struct{}{}
	return true
}

// Leave removes c from the thread's room. It reports false when c was not a
// member.
func (h *Hub) Leave(c *Client, threadID uint) bool {
	room := RoomName(threadID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := c.rooms[room]; !ok {
		return false
	}
	delete(c.rooms, room)
	if members := h.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	return true
}

// InRoom reports whether c is joined to the thread's room.
func (h *Hub) InRoom(c *Client, threadID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[RoomName(threadID)]
	return ok
}

// RoomSize is the number of local connections joined to the thread's room.
func (h *Hub) RoomSize(threadID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[RoomName(threadID)])
}

// Connections is the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishToThread implements services.Publisher.
func (h *Hub) PublishToThread(ctx context.Context, threadID uint, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		logger(ctx).Error().Err(err).Str("event", event).Msg("encode room event")
		return
	}
	h.emit(ctx, Envelope{Room: RoomName(threadID), Frame: frame})
}

// emit hands env to the broker. Local members get it straight away when there
// is no broker, the publish fails, or this hub is not subscribed and so would
// never see its own envelope come back.
func (h *Hub) emit(ctx context.Context, env Envelope) {
	if h.broker != nil {
		live := h.subscribed.Load()
		err := h.broker.Publish(ctx, env)
		if err == nil && live {
			return
		}
		if err != nil {
			logger(ctx).Warn().Err(err).Str("room", env.Room).Msg("broker publish failed; delivering locally")
		}
	}
	h.deliver(env)
}

// deliver enqueues env for local room members. Members whose buffer is full
// are disconnected.
func (h *Hub) deliver(env Envelope) {
	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[env.Room] {
		if env.Except != "" && c.ID == env.Except {
			continue
		}
		if !c.enqueue(env.Frame) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.metrics.SlowConsumer()
		h.drop(c, websocket.ClosePolicyViolation, "send buffer full")
	}
}

// sendTo enqueues frame for c alone.
func (h *Hub) sendTo(c *Client, frame []byte) {
	h.mu.RLock()
	if c.closed {
		h.mu.RUnlock()
		return
	}
	ok := c.enqueue(frame)
	h.mu.RUnlock()
	if !ok {
		h.metrics.SlowConsumer()
		h.drop(c, websocket.ClosePolicyViolation, "send buffer full")
	}
}

func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
