package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-lms-backend/internal/services"
)

func testClient(id string, buffer int) *Client {
	return newClient(id, services.Actor{ID: 1}, nil, buffer, nil)
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

type countingMetrics struct {
	mu                   sync.Mutex
	opened, closed, slow int
	events               map[string]int
}

func (m *countingMetrics) ConnectionOpened() { m.mu.Lock(); m.opened++; m.mu.Unlock() }
func (m *countingMetrics) ConnectionClosed() { m.mu.Lock(); m.closed++; m.mu.Unlock() }
func (m *countingMetrics) SlowConsumer()     { m.mu.Lock(); m.slow++; m.mu.Unlock() }
func (m *countingMetrics) Event(event, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events == nil {
		m.events = map[string]int{}
	}
	m.events[event+"/"+outcome]++
}

func TestHub_JoinLeave(t *testing.T) {
	h := NewHub()
	c := testClient("a", 4)
	require.True(t, h.register(c))

	assert.True(t, h.Join(c, 7))
	assert.False(t, h.Join(c, 7), "second join is a no-op")
	assert.True(t, h.InRoom(c, 7))
	assert.Equal(t, 1, h.RoomSize(7))

	assert.True(t, h.Leave(c, 7))
	assert.False(t, h.Leave(c, 7))
	assert.False(t, h.InRoom(c, 7))
	assert.Zero(t, h.RoomSize(7))
}

func TestHub_PublishReachesRoomMembersOnly(t *testing.T) {
	h := NewHub()
	a, b, outsider := testClient("a", 4), testClient("b", 4), testClient("c", 4)
	for _, c := range []*Client{a, b, outsider} {
		require.True(t, h.register(c))
	}
	h.Join(a, 1)
	h.Join(b, 1)
	h.Join(outsider, 2)

	h.PublishToThread(context.Background(), 1, services.EventStatusUpdated, services.StatusUpdate{ThreadID: 1, Status: "RESOLVED"})

	for _, c := range []*Client{a, b} {
		frames := drain(c)
		require.Len(t, frames, 1, "client %s", c.ID)
		var f Frame
		require.NoError(t, json.Unmarshal(frames[0], &f))
		assert.Equal(t, services.EventStatusUpdated, f.Event)
		assert.JSONEq(t, `{"thread_id":1,"status":"RESOLVED","updated_by":0}`, string(f.Data))
	}
	assert.Empty(t, drain(outsider))
}

func TestHub_ExceptSkipsSender(t *testing.T) {
	h := NewHub()
	a, b := testClient("a", 4), testClient("b", 4)
	h.register(a)
	h.register(b)
	h.Join(a, 1)
	h.Join(b, 1)

	h.emit(context.Background(), Envelope{Room: RoomName(1), Except: "a", Frame: []byte(`{"event":"x"}`)})
	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)
}

func TestHub_SlowConsumerIsDisconnected(t *testing.T) {
	m := &countingMetrics{}
	h := NewHub(WithMetrics(m))
	slow, fast := testClient("slow", 1), testClient("fast", 8)
	h.register(slow)
	h.register(fast)
	h.Join(slow, 1)
	h.Join(fast, 1)

	h.PublishToThread(context.Background(), 1, "e", 1)
	h.PublishToThread(context.Background(), 1, "e", 2)

	assert.True(t, slow.closed)
	assert.Equal(t, websocket.ClosePolicyViolation, slow.closeCode)
	assert.Equal(t, 1, h.RoomSize(1))
	assert.Len(t, drain(slow), 1, "buffered frame is still flushed before close")
	assert.Len(t, drain(fast), 2)
	assert.Equal(t, 1, m.slow)
	assert.Equal(t, 1, m.closed)
}

func TestHub_CloseDisconnectsEveryone(t *testing.T) {
	h := NewHub()
	a := testClient("a", 1)
	h.register(a)
	h.Join(a, 3)

	h.Close()
	assert.True(t, a.closed)
	assert.Equal(t, websocket.CloseGoingAway, a.closeCode)
	assert.Zero(t, h.Connections())
	assert.False(t, h.register(testClient("late", 1)))

	// unregister after Close must not double-close the channel.
	h.unregister(a)
}

// loopback is an in-memory Broker shared by several hubs. The first refuse
// Subscribe calls fail; a value on kick ends one live subscription.
type loopback struct {
	mu       sync.Mutex
	subs     []*loopSub
	fail     bool
	refuse   int
	attempts int
	count    int
	kick     chan struct{}
}

type loopSub struct{ deliver func(Envelope) }

func (l *loopback) Publish(_ context.Context, env Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return errors.New("broker down")
	}
	l.count++
	for _, s := range l.subs {
		s.deliver(env)
	}
	return nil
}

func (l *loopback) Subscribe(ctx context.Context, deliver func(Envelope), ready func()) error {
	l.mu.Lock()
	l.attempts++
	if l.refuse > 0 {
		l.refuse--
		l.mu.Unlock()
		return errors.New("subscribe refused")
	}
	s := &loopSub{deliver: deliver}
	l.subs = append(l.subs, s)
	l.mu.Unlock()
	ready()

	defer func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, x := range l.subs {
			if x == s {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				break
			}
		}
	}()
	select {
	case <-ctx.Done():
	case <-l.kick:
	}
	return nil
}

func (l *loopback) Close() error { return nil }

func (l *loopback) subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *loopback) stats() (attempts, published int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts, l.count
}

func (l *loopback) setRefuse(n int) {
	l.mu.Lock()
	l.refuse = n
	l.mu.Unlock()
}

func TestHub_BrokerFansOutAcrossInstances(t *testing.T) {
	br := &loopback{}
	h1, h2 := NewHub(WithBroker(br)), NewHub(WithBroker(br))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h1.Run(ctx) }()
	go func() { _ = h2.Run(ctx) }()
	<-h1.Ready()
	<-h2.Ready()
	require.Equal(t, 2, br.subscribers())

	a, b := testClient("a", 4), testClient("b", 4)
	h1.register(a)
	h2.register(b)
	h1.Join(a, 9)
	h2.Join(b, 9)

	h1.PublishToThread(context.Background(), 9, "e", "hi")
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	_, published := br.stats()
	assert.Equal(t, 1, published)
}

func TestHub_BrokerFailureFallsBackToLocal(t *testing.T) {
	br := &loopback{fail: true}
	h := NewHub(WithBroker(br))
	a := testClient("a", 4)
	h.register(a)
	h.Join(a, 1)

	h.PublishToThread(context.Background(), 1, "e", "hi")
	assert.Len(t, drain(a), 1)
}

func TestHub_ReadyWithoutBroker(t *testing.T) {
	select {
	case <-NewHub().Ready():
	default:
		t.Fatal("a hub without broker must be ready at once")
	}
}

func TestHub_RefusedSubscriptionDeliversLocallyThenRecovers(t *testing.T) {
	br := &loopback{refuse: 1 << 20}
	h := NewHub(WithBroker(br))
	a := testClient("a", 8)
	h.register(a)
	h.Join(a, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()
	require.Eventually(t, func() bool { n, _ := br.stats(); return n >= 1 }, timeout, tick)

	select {
	case <-h.Ready():
		t.Fatal("ready without a confirmed subscription")
	default:
	}

	h.PublishToThread(context.Background(), 1, "e", "while down")
	assert.Len(t, drain(a), 1, "published to the broker but still delivered to local members")
	_, published := br.stats()
	assert.Equal(t, 1, published, "peers still get the envelope")

	br.setRefuse(0)
	select {
	case <-h.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("hub never resubscribed")
	}
	require.True(t, h.subscribed.Load())

	h.PublishToThread(context.Background(), 1, "e", "recovered")
	assert.Len(t, drain(a), 1, "exactly one copy once the broker echoes it back")
}

func TestHub_EndedSubscriptionFallsBackAndResubscribes(t *testing.T) {
	br := &loopback{kick: make(chan struct{}, 1)}
	h := NewHub(WithBroker(br))
	a := testClient("a", 8)
	h.register(a)
	h.Join(a, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()
	<-h.Ready()

	br.kick <- struct{}{}
	require.Eventually(t, func() bool { return !h.subscribed.Load() }, timeout, tick)

	h.PublishToThread(context.Background(), 4, "e", "gap")
	assert.Len(t, drain(a), 1)

	require.Eventually(t, func() bool { return h.subscribed.Load() && br.subscribers() == 1 }, timeout, tick)
	attempts, _ := br.stats()
	assert.Equal(t, 2, attempts)

	h.PublishToThread(context.Background(), 4, "e", "back")
	assert.Len(t, drain(a), 1)
}

func TestRoomNameAndErrorMapping(t *testing.T) {
	assert.Equal(t, "thread-42", RoomName(42))

	cases := map[error]string{
		services.ErrForbidden:            CodeForbidden,
		services.ErrThreadNotFound:       CodeNotFound,
		&services.ValidationError{}:      CodeBadRequest,
		errors.New("database is locked"): CodeInternal,
	}
	for err, code := range cases {
		p := errorFor(services.EventSendMessage, err)
		assert.Equal(t, code, p.Code, "%v", err)
		assert.Equal(t, services.EventSendMessage, p.Event)
	}
	assert.Equal(t, "internal error", errorFor("", errors.New("secret detail")).Message)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := decodeEnvelope(`{"room":"thread-1","except":"c1","frame":{"event":"x"}}`)
	require.NoError(t, err)
	assert.Equal(t, "thread-1", env.Room)
	assert.Equal(t, "c1", env.Except)

	_, err = decodeEnvelope(`{"room":""}`)
	assert.Error(t, err)
	_, err = decodeEnvelope(`not json`)
	assert.Error(t, err)
}

func TestNewRedisBroker(t *testing.T) {
	b, err := NewRedisBroker("redis://localhost:6379/0", "lms:doubt-rooms")
	require.NoError(t, err)
	assert.NoError(t, b.Close())

	_, err = NewRedisBroker("http://nope", "c")
	assert.Error(t, err)
	_, err = NewRedisBroker("redis://localhost:6379/0", "")
	assert.Error(t, err)
}
