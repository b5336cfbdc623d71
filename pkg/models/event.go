package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventKindChatMessage = "chat_message"
	EventKindJobStatus   = "job_status"
	EventKindJobResult   = "job_result"
	EventKindJobError    = "job_error"
)

// RoomEvent is one unit of information delivered through a room: a chat
// message or a job-status change. Seq is assigned by the durable append and is
// monotone within a room, so (CreatedAt, Seq) gives a stable total order for
// one room's log. An event is appended to the log exactly once before live
// delivery; late joiners re-reading history therefore see the same event the
// live subscribers saw.
type RoomEvent struct {
	ID         uuid.UUID       `db:"id"          json:"id"`
	RoomID     string          `db:"room_id"     json:"room_id"`
	Seq        int64           `db:"seq"         json:"seq"`
	Kind       string          `db:"kind"        json:"kind"`
	SenderID   string          `db:"sender_id"   json:"sender_id"`
	SenderRole string          `db:"sender_role" json:"sender_role"`
	Payload    json.RawMessage `db:"payload"     json:"payload"`
	CreatedAt  time.Time       `db:"created_at"  json:"created_at"`
}

// ChatPayload is the payload for chat_message events.
type ChatPayload struct {
	Text string `json:"text"`
}

// JobStatusPayload is the payload for job_status events.
type JobStatusPayload struct {
	JobID   uuid.UUID `json:"job_id"`
	ClassID string    `json:"class_id"`
	Status  string    `json:"status"`
}

// JobResultPayload is the payload for job_result events (terminal success).
type JobResultPayload struct {
	JobID   uuid.UUID      `json:"job_id"`
	ClassID string         `json:"class_id"`
	Result  AnalysisResult `json:"result"`
}

// JobErrorPayload is the payload for job_error events (terminal failure).
type JobErrorPayload struct {
	JobID       uuid.UUID `json:"job_id"`
	ClassID     string    `json:"class_id"`
	ErrorDetail string    `json:"error_detail"`
}
