package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	mw "github.com/debabrata-png/aipaathsala1-sub000/internal/api/middleware"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/api/response"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/room"
)

const maxChatMessageLen = 4096

// Rooms serves the course-room history pull and chat message endpoints.
type Rooms struct {
	rooms *room.Service
}

// NewRooms creates the rooms handler.
func NewRooms(rooms *room.Service) *Rooms {
	return &Rooms{rooms: rooms}
}

// History returns the most recent events for a course room, oldest first.
// This is the pull path clients use to recover after a dropped connection;
// live delivery happens over the websocket.
func (h *Rooms) History(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant context", nil)
		return
	}

	courseCode := chi.URLParam(r, "courseCode")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.rooms.History(r.Context(), tenantID, courseCode, limit)
	if err != nil {
		slog.Error("load room history", "course_code", courseCode, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to load room history", nil)
		return
	}

	response.JSON(w, events)
}

type postMessageRequest struct {
	Text string `json:"text"`
}

// PostMessage publishes a chat message to the course room. The message is
// appended to the durable log before any live delivery, so it survives even
// if every subscriber is offline.
func (h *Rooms) PostMessage(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant context", nil)
		return
	}
	userID, role, ok := mw.GetUserIdentity(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "MISSING_IDENTITY",
			"X-User-ID header is required", nil)
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", nil)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Message text is required", nil)
		return
	}
	if len(req.Text) > maxChatMessageLen {
		response.Error(w, http.StatusBadRequest, "MESSAGE_TOO_LONG",
			"Message exceeds maximum length", map[string]any{"max_length": maxChatMessageLen})
		return
	}

	courseCode := chi.URLParam(r, "courseCode")
	event, err := h.rooms.PostChat(r.Context(), tenantID, courseCode, userID, role, req.Text)
	if err != nil {
		slog.Error("post chat message", "course_code", courseCode, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to post message", nil)
		return
	}

	response.Created(w, event)
}
