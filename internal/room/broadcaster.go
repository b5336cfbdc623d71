package room

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// Broadcaster appends room events durably and fans them out to live
// subscribers. Publish returns once the durable append succeeds; live
// delivery is best-effort per subscriber and a slow or dead subscriber never
// stalls the others.
// publishStripes is the size of the fixed publish-lock array. Memory stays
// bounded no matter how many rooms come and go; two rooms sharing a stripe
// only costs contention, never correctness.
const publishStripes = 64

type Broadcaster struct {
	store    store.Store
	registry *Registry
	stripes  [publishStripes]sync.Mutex
}

// NewBroadcaster creates a Broadcaster over the given store and registry.
func NewBroadcaster(st store.Store, registry *Registry) *Broadcaster {
	return &Broadcaster{
		store:    st,
		registry: registry,
	}
}

// roomLock returns the publish mutex for the room. A room always hashes to
// the same stripe, so publishes within one room serialize in order.
func (b *Broadcaster) roomLock(roomID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return &b.stripes[h.Sum32()%publishStripes]
}

// Publish appends the event to the room's message log, then delivers it to
// every current subscriber of the room. The per-room lock holds from append
// through delivery, so each subscriber observes events in publish order.
// Delivery failure (full send buffer) is logged, never surfaced to the
// publisher.
func (b *Broadcaster) Publish(ctx context.Context, event *models.RoomEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	l := b.roomLock(event.RoomID)
	l.Lock()
	defer l.Unlock()

	if err := b.store.AppendRoomEvent(ctx, event); err != nil {
		return fmt.Errorf("append room event: %w", err)
	}

	for _, sub := range b.registry.Snapshot(event.RoomID) {
		if !sub.deliver(event) {
			slog.Warn("dropping event for subscriber",
				"room_id", event.RoomID, "user_id", sub.UserID, "event_id", event.ID)
		}
	}
	return nil
}
