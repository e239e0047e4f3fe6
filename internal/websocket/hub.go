package websocket

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const personalRoomPrefix = "user:"

// PersonalRoom is the room every session of userID joins for direct
// notifications.
func PersonalRoom(userID string) string {
	return personalRoomPrefix + userID
}

func IsPersonalRoom(roomID string) bool {
	return strings.HasPrefix(roomID, personalRoomPrefix)
}

// Hub routes events to rooms. One lock guards all three indexes; it is
// never held while sending.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}
	users   map[string]map[*Client]struct{}

	ctx    context.Context
	cancel context.CancelFunc

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	slowConsumers    atomic.Int64
	startedAt        time.Time
}

type HubStats struct {
	TotalRooms       int       `json:"total_rooms"`
	TotalClients     int       `json:"total_clients"`
	TotalUsers       int       `json:"total_users"`
	TotalConnections int64     `json:"total_connections"`
	MessagesSent     int64     `json:"messages_sent"`
	SlowConsumers    int64     `json:"slow_consumers"`
	StartedAt        time.Time `json:"started_at"`
}

type RoomStats struct {
	RoomID      string `json:"room_id"`
	Exists      bool   `json:"exists"`
	Connections int    `json:"connections"`
	UniqueUsers int    `json:"unique_users"`
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:     make(map[string]map[*Client]struct{}),
		clients:   make(map[*Client]map[string]struct{}),
		users:     make(map[string]map[*Client]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		startedAt: time.Now(),
	}
}

// Context is cancelled when the hub closes.
func (h *Hub) Context() context.Context {
	return h.ctx
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.clients[client] = make(map[string]struct{})
	}
	if h.users[client.UserID()] == nil {
		h.users[client.UserID()] = make(map[*Client]struct{})
	}
	h.users[client.UserID()][client] = struct{}{}
	h.mu.Unlock()

	h.totalConnections.Add(1)
	log.Debug().Str("clientID", client.ID).Str("userID", client.UserID()).Msg("ws: client registered")
}

// Unregister removes client from every room and returns the rooms it was in.
// Calling it again for the same client returns nil.
func (h *Hub) Unregister(client *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.clients[client]
	if !ok {
		return nil
	}
	delete(h.clients, client)

	rooms := make([]string, 0, len(joined))
	for roomID := range joined {
		rooms = append(rooms, roomID)
		h.removeFromRoom(roomID, client)
	}
	sort.Strings(rooms)

	if sessions, ok := h.users[client.UserID()]; ok {
		delete(sessions, client)
		if len(sessions) == 0 {
			delete(h.users, client.UserID())
		}
	}

	log.Debug().Str("clientID", client.ID).Str("userID", client.UserID()).Int("rooms", len(rooms)).Msg("ws: client unregistered")
	return rooms
}

// removeFromRoom expects h.mu held.
func (h *Hub) removeFromRoom(roomID string, client *Client) {
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Join is a no-op for unregistered clients or rooms already joined.
func (h *Hub) Join(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.clients[client]
	if !ok {
		return
	}
	joined[roomID] = struct{}{}

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
}

// JoinUser subscribes every open session of userID to roomID.
func (h *Hub) JoinUser(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.users[userID] {
		h.clients[c][roomID] = struct{}{}
		if h.rooms[roomID] == nil {
			h.rooms[roomID] = make(map[*Client]struct{})
		}
		h.rooms[roomID][c] = struct{}{}
	}
}

func (h *Hub) Leave(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if joined, ok := h.clients[client]; ok {
		delete(joined, roomID)
	}
	h.removeFromRoom(roomID, client)
}

func (h *Hub) Rooms(client *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.clients[client]))
	for roomID := range h.clients[client] {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}

func (h *Hub) RoomMembers(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		members = append(members, c)
	}
	return members
}

// UserConnections is the number of open sessions for userID.
func (h *Hub) UserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.users[userID])
}

func (h *Hub) snapshot(roomID string, skip func(*Client) bool) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[roomID]
	targets := make([]*Client, 0, len(members))
	for c := range members {
		if skip != nil && skip(c) {
			continue
		}
		targets = append(targets, c)
	}
	return targets
}

// Broadcast sends event to every session in roomID except exclude and
// returns how many sessions accepted it.
func (h *Hub) Broadcast(roomID string, event OutgoingEvent, exclude *Client) int {
	targets := h.snapshot(roomID, func(c *Client) bool { return c == exclude })
	return h.deliver(roomID, event, targets)
}

// BroadcastExceptUser skips every session owned by userID.
func (h *Hub) BroadcastExceptUser(roomID string, event OutgoingEvent, userID string) int {
	targets := h.snapshot(roomID, func(c *Client) bool { return c.UserID() == userID })
	return h.deliver(roomID, event, targets)
}

// DirectNotify sends event to all sessions in userID's personal room.
func (h *Hub) DirectNotify(userID string, event OutgoingEvent, exclude *Client) int {
	return h.Broadcast(PersonalRoom(userID), event, exclude)
}

func (h *Hub) deliver(roomID string, event OutgoingEvent, targets []*Client) int {
	if len(targets) == 0 {
		return 0
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("roomID", roomID).Str("event", event.Event).Msg("ws: failed to marshal broadcast event")
		return 0
	}

	delivered := 0
	for _, c := range targets {
		if c.enqueue(data) {
			delivered++
			continue
		}
		if c.IsClosed() {
			continue
		}
		// buffer full
		h.slowConsumers.Add(1)
		log.Warn().Str("roomID", roomID).Str("clientID", c.ID).Str("userID", c.UserID()).Msg("ws: slow consumer, closing connection")
		c.Close()
	}

	h.messagesSent.Add(int64(delivered))
	log.Debug().Str("roomID", roomID).Str("event", event.Event).Int("targets", len(targets)).Int("delivered", delivered).Msg("ws: broadcast completed")
	return delivered
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	rooms, clients, users := len(h.rooms), len(h.clients), len(h.users)
	h.mu.RUnlock()

	return HubStats{
		TotalRooms:       rooms,
		TotalClients:     clients,
		TotalUsers:       users,
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		SlowConsumers:    h.slowConsumers.Load(),
		StartedAt:        h.startedAt,
	}
}

func (h *Hub) RoomStats(roomID string) RoomStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := RoomStats{RoomID: roomID}
	members, ok := h.rooms[roomID]
	if !ok {
		return stats
	}

	unique := make(map[string]struct{}, len(members))
	for c := range members {
		unique[c.UserID()] = struct{}{}
	}
	stats.Exists = true
	stats.Connections = len(members)
	stats.UniqueUsers = len(unique)
	return stats
}

// Close shuts every session. Their read loops then run the normal
// disconnect path.
func (h *Hub) Close() {
	log.Info().Msg("ws: shutting down hub")
	h.cancel()

	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.Close()
	}

	log.Info().Int("clients", len(all)).Msg("ws: hub shutdown completed")
}
