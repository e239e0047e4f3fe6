package websocket

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	eventTimeout      = 15 * time.Second
	disconnectTimeout = 5 * time.Second
)

// EventHandler is the protocol engine behind the socket. OnEvent calls for
// one client never overlap.
type EventHandler interface {
	OnConnect(ctx context.Context, c *Client)
	OnEvent(ctx context.Context, c *Client, evt InboundEvent)
	OnDisconnect(ctx context.Context, c *Client, rooms []string)
}

type WebSocketHandler struct {
	hub           *Hub
	events        EventHandler
	authenticator Authenticator
	counter       *connectionCounter
	upgrader      websocket.Upgrader
}

func NewWebSocketHandler(hub *Hub, events EventHandler, authenticator Authenticator, limits ConnectionLimits, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		events:        events,
		authenticator: authenticator,
		counter:       newConnectionCounter(limits),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// OpenConnections is the number of sockets currently held by this handler.
func (h *WebSocketHandler) OpenConnections() int {
	return h.counter.open()
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticator(r)
	if err != nil {
		app_error.Authentication().JSON(w)
		return
	}

	ip := ClientIP(r)
	if !h.counter.acquire(ip) {
		log.Warn().Str("ip", ip).Str("userID", user.ID).Msg("ws: connection limit reached")
		app_error.NewAppError(http.StatusTooManyRequests, "too many connections", "ws").JSON(w)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the response
		h.counter.release(ip)
		log.Error().Err(err).Str("userID", user.ID).Msg("ws: upgrade failed")
		return
	}

	client := NewClient(conn, *user, ip)
	h.hub.Register(client)

	ctx, cancel := context.WithTimeout(h.hub.Context(), eventTimeout)
	h.events.OnConnect(ctx, client)
	cancel()

	log.Info().Str("clientID", client.ID).Str("userID", user.ID).Str("ip", ip).Msg("ws: client connected")

	go client.writePump()
	go func() {
		defer h.teardown(client)
		client.readPump(h.dispatch)
	}()
}

func (h *WebSocketHandler) teardown(c *Client) {
	c.Close()
	rooms := h.hub.Unregister(c)
	h.counter.release(c.IP)

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	h.events.OnDisconnect(ctx, c, rooms)

	log.Info().Str("clientID", c.ID).Str("userID", c.UserID()).Msg("ws: client disconnected")
}

func (h *WebSocketHandler) dispatch(c *Client, raw []byte) {
	evt, appErr := DecodeEvent(raw)
	if appErr != nil {
		log.Debug().Str("clientID", c.ID).Str("error", appErr.Message).Msg("ws: rejected event")
		c.SendEvent(ErrorEvent(appErr.Message))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("clientID", c.ID).
				Str("userID", c.UserID()).
				Str("event", evt.EventName()).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("ws: event handler panicked")
			c.SendEvent(ErrorEvent("internal error"))
		}
	}()

	ctx, cancel := context.WithTimeout(h.hub.Context(), eventTimeout)
	defer cancel()
	h.events.OnEvent(ctx, c, evt)
}
