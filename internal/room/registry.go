// Package room implements the broadcast layer: per-course rooms, live
// subscriber tracking, and durable event fan-out.
package room

import (
	"log/slog"
	"sync"

	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// Subscriber is one live connection's membership in a room. Events are
// delivered through the buffered Send channel; the connection's write pump
// drains it in order. Send is closed exactly once, on leave; deliveries and
// the close are serialized through the subscriber's own mutex so a publish
// racing a leave can never write to a closed channel.
type Subscriber struct {
	RoomID string
	UserID string
	Role   string
	Send   chan *models.RoomEvent

	mu     sync.Mutex
	closed bool
}

// NewSubscriber creates a subscriber for a room with the given send buffer.
func NewSubscriber(roomID, userID, role string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 256
	}
	return &Subscriber{
		RoomID: roomID,
		UserID: userID,
		Role:   role,
		Send:   make(chan *models.RoomEvent, buffer),
	}
}

// deliver attempts a non-blocking send. Returns false if the subscriber has
// left or its buffer is full.
func (s *Subscriber) deliver(event *models.RoomEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.Send <- event:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.Send)
	}
}

// Registry tracks which subscribers are currently in which room. Membership
// is process memory only; the durable message log lives in the store.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*Subscriber]struct{})}
}

// Join adds the subscriber to its room. Joining twice with the same
// subscriber is a no-op.
func (r *Registry) Join(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rooms[sub.RoomID]
	if !ok {
		m = make(map[*Subscriber]struct{})
		r.rooms[sub.RoomID] = m
	}
	if _, member := m[sub]; member {
		return
	}
	m[sub] = struct{}{}

	slog.Info("subscriber joined room",
		"room_id", sub.RoomID, "user_id", sub.UserID, "role", sub.Role)
}

// Leave removes the subscriber from its room and closes its Send channel.
// Safe to call on a non-member or repeatedly; the channel is closed only on
// the call that actually removes the subscriber. The websocket handler calls
// this on transport disconnect, so subscriber sets never accumulate dead
// connections.
func (r *Registry) Leave(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rooms[sub.RoomID]
	if !ok {
		return
	}
	if _, member := m[sub]; !member {
		return
	}
	delete(m, sub)
	if len(m) == 0 {
		delete(r.rooms, sub.RoomID)
	}
	sub.close()

	slog.Info("subscriber left room", "room_id", sub.RoomID, "user_id", sub.UserID)
}

// Snapshot returns the room's current subscribers. The copy lets callers
// deliver without holding the registry lock.
func (r *Registry) Snapshot(roomID string) []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.rooms[roomID]
	subs := make([]*Subscriber, 0, len(m))
	for sub := range m {
		subs = append(subs, sub)
	}
	return subs
}

// Count returns the number of subscribers in a room.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
