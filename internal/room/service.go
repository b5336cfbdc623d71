package room

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// Service is the room-facing API used by handlers: join with backlog, leave,
// pull history, and post chat messages. Pull is the recovery path only; the
// event payload itself travels over the push channel.
type Service struct {
	registry     *Registry
	broadcaster  *Broadcaster
	store        store.Store
	backlogLimit int
	sendBuffer   int
}

// NewService wires the registry, broadcaster, and store.
func NewService(registry *Registry, broadcaster *Broadcaster, st store.Store, backlogLimit, sendBuffer int) *Service {
	if backlogLimit <= 0 {
		backlogLimit = 50
	}
	return &Service{
		registry:     registry,
		broadcaster:  broadcaster,
		store:        st,
		backlogLimit: backlogLimit,
		sendBuffer:   sendBuffer,
	}
}

// Join subscribes a connection to the course room and returns the recent
// backlog so a new viewer has immediate context without a separate fetch.
// The subscriber is registered before the backlog read: an event published in
// between then reaches the viewer through the live channel (and possibly the
// backlog too, a duplicate the client-side timeline dedup absorbs), never
// through neither. The returned leave func is the scoped unsubscribe handle
// owned by the caller; it is safe to call more than once and must be called
// on transport disconnect.
func (s *Service) Join(ctx context.Context, tenantID uuid.UUID, courseCode, userID, role string) (*Subscriber, []*models.RoomEvent, func(), error) {
	roomID := models.RoomID(tenantID, courseCode)

	sub := NewSubscriber(roomID, userID, role, s.sendBuffer)
	s.registry.Join(sub)
	leave := func() { s.registry.Leave(sub) }

	backlog, err := s.store.ListRoomEvents(ctx, roomID, s.backlogLimit)
	if err != nil {
		leave()
		return nil, nil, nil, fmt.Errorf("load room backlog: %w", err)
	}

	return sub, backlog, leave, nil
}

// History returns the most recent events for a course room, oldest first.
func (s *Service) History(ctx context.Context, tenantID uuid.UUID, courseCode string, limit int) ([]*models.RoomEvent, error) {
	if limit <= 0 || limit > s.backlogLimit*10 {
		limit = s.backlogLimit
	}
	return s.store.ListRoomEvents(ctx, models.RoomID(tenantID, courseCode), limit)
}

// PostChat publishes a chat message to the course room.
func (s *Service) PostChat(ctx context.Context, tenantID uuid.UUID, courseCode, senderID, senderRole, text string) (*models.RoomEvent, error) {
	payload, err := json.Marshal(models.ChatPayload{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal chat payload: %w", err)
	}

	event := &models.RoomEvent{
		ID:         uuid.New(),
		RoomID:     models.RoomID(tenantID, courseCode),
		Kind:       models.EventKindChatMessage,
		SenderID:   senderID,
		SenderRole: senderRole,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.broadcaster.Publish(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}
