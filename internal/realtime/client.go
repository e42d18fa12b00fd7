package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-lms-backend/internal/services"
)

const writeWait = 10 * time.Second

// Client is one authenticated socket connection.
type Client struct {
	ID    string
	Actor services.Actor

	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	// Guarded by Hub.mu.
	rooms       map[string]struct{}
	closed      bool
	closeCode   int
	closeReason string
}

func newClient(id string, actor services.Actor, conn *websocket.Conn, buffer int, limiter *rate.Limiter) *Client {
	return &Client{
		ID:      id,
		Actor:   actor,
		conn:    conn,
		send:    make(chan []byte, buffer),
		limiter: limiter,
		rooms:   make(map[string]struct{}),
	}
}

// enqueue never blocks. It reports false when the buffer is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// readPump feeds inbound frames to handle until the connection fails. It
// owns the connection's lifetime: on return the client leaves all rooms.
func (c *Client) readPump(ctx context.Context, hub *Hub, maxBytes int64, pongWait time.Duration, handle func(context.Context, *Client, []byte)) {
	defer func() {
		hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger(ctx).Debug().Err(err).Msg("websocket read")
			}
			return
		}
		handle(ctx, c, data)
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings. When the hub closes the buffer, a close frame carrying the reason
// is sent.
func (c *Client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				code := c.closeCode
				if code == 0 {
					code = websocket.CloseNormalClosure
				}
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, c.closeReason))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
