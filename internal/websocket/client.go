package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client is one authenticated connection. Send is never closed; writers
// stop on done instead.
type Client struct {
	ID   string
	User entity.UserSummary
	IP   string

	Conn *websocket.Conn
	Send chan []byte

	done      chan struct{}
	closeOnce sync.Once
	lastSeen  atomic.Int64
}

func NewClient(conn *websocket.Conn, user entity.UserSummary, ip string) *Client {
	c := &Client{
		ID:   uuid.NewString(),
		User: user,
		IP:   ip,
		Conn: conn,
		Send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	c.touch()
	return c
}

func (c *Client) UserID() string {
	return c.User.ID
}

func (c *Client) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *Client) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close is safe to call any number of times from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// enqueue never blocks. It reports false when the client is closed or its
// buffer is full.
func (c *Client) enqueue(data []byte) bool {
	if c.IsClosed() {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// SendEvent queues event for this connection only.
func (c *Client) SendEvent(event OutgoingEvent) bool {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("clientID", c.ID).Str("event", event.Event).Msg("ws: failed to marshal event")
		return false
	}
	return c.enqueue(data)
}

// writePump: take data from c.Send and send to socket + ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("clientID", c.ID).Msg("ws: write failed")
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump hands every inbound frame to handle, one at a time, until the
// connection fails or is closed.
func (c *Client) readPump(handle func(*Client, []byte)) {
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("clientID", c.ID).Msg("ws: unexpected close")
			}
			return
		}
		c.touch()
		handle(c, raw)
	}
}
