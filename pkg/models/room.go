package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RoomID derives the broadcast room for a course deterministically from
// (tenantID, courseCode). The derivation is pure: the same inputs always yield
// the same room, so clients can compute it without a lookup. The course code
// is normalized first (whitespace trimmed, lowercased), which is part of the
// contract: "CS101" and " cs101 " name the same course and share one room,
// while distinct normalized codes within a tenant never collide. The
// normalized code is hashed rather than embedded so arbitrary user-entered
// codes cannot collide with the separator or with each other.
func RoomID(tenantID uuid.UUID, courseCode string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(courseCode))))
	return fmt.Sprintf("room:%s:%s", tenantID, hex.EncodeToString(sum[:8]))
}

// Class is the scheduled-class record served by the external directory.
// Read-only here: used to validate trigger requests and derive the room.
type Class struct {
	ID         string    `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	CourseCode string    `json:"course_code"`
	Topic      string    `json:"topic"`
}
