package presence

import (
	"sync"
	"time"
)

type Status struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
	// Gen is the user's transition counter when this status was taken.
	Gen uint64 `json:"-"`
}

type entry struct {
	conns    int
	lastSeen time.Time
	gen      uint64
}

// Registry is the process-wide presence table. A user is online while at
// least one of their connections is open. It starts empty: everyone is
// offline until they connect to this process.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*entry
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]*entry),
		now:   time.Now,
	}
}

func (r *Registry) touch(e *entry) time.Time {
	now := r.now().UTC()
	if now.After(e.lastSeen) {
		e.lastSeen = now
	}
	return e.lastSeen
}

func (r *Registry) get(userID string) *entry {
	e, ok := r.users[userID]
	if !ok {
		e = &entry{}
		r.users[userID] = e
	}
	return e
}

// Connect records a new connection for userID. online reports whether the
// user just went from offline to online.
func (r *Registry) Connect(userID string) (status Status, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.get(userID)
	e.conns++
	if e.conns == 1 {
		e.gen++
	}
	seen := r.touch(e)
	return Status{UserID: userID, IsOnline: true, LastSeen: seen, Gen: e.gen}, e.conns == 1
}

// Disconnect drops one connection for userID. offline reports whether it
// was the last one.
func (r *Registry) Disconnect(userID string) (status Status, offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.get(userID)
	if e.conns > 0 {
		e.conns--
		if e.conns == 0 {
			e.gen++
		}
	}
	seen := r.touch(e)
	return Status{UserID: userID, IsOnline: e.conns > 0, LastSeen: seen, Gen: e.gen}, e.conns == 0
}

// MarkOnline sets userID online regardless of connection count.
func (r *Registry) MarkOnline(userID string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.get(userID)
	if e.conns == 0 {
		e.conns = 1
		e.gen++
	}
	return Status{UserID: userID, IsOnline: true, LastSeen: r.touch(e), Gen: e.gen}
}

// MarkOffline forces userID offline and drops any connection count.
func (r *Registry) MarkOffline(userID string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.get(userID)
	if e.conns > 0 {
		e.conns = 0
		e.gen++
	}
	return Status{UserID: userID, IsOnline: false, LastSeen: r.touch(e), Gen: e.gen}
}

// Current reports whether no online/offline transition has happened for
// the user since status was taken.
func (r *Registry) Current(status Status) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.users[status.UserID]
	if !ok {
		return status.Gen == 0
	}
	return e.gen == status.Gen
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.users[userID]
	return ok && e.conns > 0
}

func (r *Registry) Status(userID string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.users[userID]
	if !ok {
		return Status{UserID: userID}
	}
	return Status{UserID: userID, IsOnline: e.conns > 0, LastSeen: e.lastSeen, Gen: e.gen}
}

func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.users))
	for id, e := range r.users {
		out = append(out, Status{UserID: id, IsOnline: e.conns > 0, LastSeen: e.lastSeen})
	}
	return out
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.users {
		if e.conns > 0 {
			n++
		}
	}
	return n
}

// Offline filters userIDs down to the ones with no open connection.
func (r *Registry) Offline(userIDs []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if e, ok := r.users[id]; !ok || e.conns == 0 {
			out = append(out, id)
		}
	}
	return out
}

func (r *Registry) LastSeenOf(userID string) time.Time {
	return r.Status(userID).LastSeen
}

// Reset forgets every user. Used at shutdown so a reused registry starts
// from all-offline.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make(map[string]*entry)
}
