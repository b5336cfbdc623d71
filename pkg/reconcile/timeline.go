// Package reconcile merges room events received over the push channel with
// events fetched via history pulls into one deduplicated, time-ordered view.
// It is the consumer-side counterpart of the broadcast layer: delivery is
// at-least-once, so every viewer runs its events through a Timeline before
// rendering.
package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// Timeline accumulates room events from any mix of push and pull sources.
// Two events are the same logical event when they match on
// (sender, timestamp, payload); an event observed through both channels is
// kept once. Safe for concurrent use.
type Timeline struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	events []*models.RoomEvent
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[string]struct{})}
}

// Observe adds one event. Returns true if the event was new, false if it was
// a duplicate of one already observed.
func (t *Timeline) Observe(event *models.RoomEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observe(event)
}

// Merge adds a batch of events (typically a history pull) and returns how
// many were new.
func (t *Timeline) Merge(events []*models.RoomEvent) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	added := 0
	for _, event := range events {
		if t.observe(event) {
			added++
		}
	}
	return added
}

func (t *Timeline) observe(event *models.RoomEvent) bool {
	key := dedupKey(event)
	if _, dup := t.seen[key]; dup {
		return false
	}
	t.seen[key] = struct{}{}

	i := sort.Search(len(t.events), func(i int) bool {
		return !before(t.events[i], event)
	})
	t.events = append(t.events, nil)
	copy(t.events[i+1:], t.events[i:])
	t.events[i] = event
	return true
}

// Events returns the current deduplicated view in chronological order.
func (t *Timeline) Events() []*models.RoomEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*models.RoomEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Len returns the number of distinct events observed.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// dedupKey is the stable composite identity of a logical event. The payload
// is hashed so the key stays bounded regardless of message size.
func dedupKey(event *models.RoomEvent) string {
	sum := sha256.Sum256(event.Payload)
	return fmt.Sprintf("%s|%d|%s",
		event.SenderID, event.CreatedAt.UTC().UnixNano(), hex.EncodeToString(sum[:]))
}

func before(a, b *models.RoomEvent) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}
