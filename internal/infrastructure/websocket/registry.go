package websocket

import (
	"sort"
	"sync"

	"kowa/internal/domain/entity"
	"kowa/internal/infrastructure/metrics"
)

// Registry maps users to their live connections. Presence broadcasts are
// enqueued while the lock is held so each online/offline transition is
// announced exactly once and in order.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[*Client]struct{}
	conns int
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]map[*Client]struct{}),
	}
}

// Register adds the connection and reports whether it is the user's first.
func (r *Registry) Register(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		r.users[c.UserID] = set
	}
	if _, dup := set[c]; dup {
		return false
	}
	set[c] = struct{}{}
	r.conns++
	metrics.ActiveConnections.Set(float64(r.conns))

	first := len(set) == 1
	if first {
		metrics.OnlineUsers.Set(float64(len(r.users)))
		r.broadcastLocked(c.UserID, encodeEvent(entity.EventUserOnline, presenceData{UserID: c.UserID}))
	}
	return first
}

// Unregister removes the connection and reports whether it was the user's
// last. Unknown connections are ignored.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID]
	if !ok {
		return false
	}
	if _, known := set[c]; !known {
		return false
	}
	delete(set, c)
	r.conns--
	metrics.ActiveConnections.Set(float64(r.conns))

	if len(set) > 0 {
		return false
	}
	delete(r.users, c.UserID)
	metrics.OnlineUsers.Set(float64(len(r.users)))
	r.broadcastLocked(c.UserID, encodeEvent(entity.EventUserOffline, presenceData{UserID: c.UserID}))
	return true
}

// broadcastLocked sends frame to every connection not owned by except.
func (r *Registry) broadcastLocked(except string, frame []byte) {
	for userID, set := range r.users {
		if userID == except {
			continue
		}
		for c := range set {
			c.Enqueue(frame)
		}
	}
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// HandlesFor returns a snapshot of the user's connections, empty when offline.
func (r *Registry) HandlesFor(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// OnlineUserIDs lists online users other than except, sorted.
func (r *Registry) OnlineUserIDs(except string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.users))
	for userID := range r.users {
		if userID != except {
			out = append(out, userID)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns
}
