package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	mw "github.com/debabrata-png/aipaathsala1-sub000/internal/api/middleware"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/api/response"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/room"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// RoomSocket upgrades a request to a websocket and streams the course room's
// events over it. This is the push channel; the inbound direction carries
// only control frames, chat goes through the HTTP message endpoint.
type RoomSocket struct {
	rooms     *room.Service
	upgrader  websocket.Upgrader
	readLimit int64
}

// NewRoomSocket creates the websocket handler.
func NewRoomSocket(rooms *room.Service, readLimit int64) *RoomSocket {
	return &RoomSocket{
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		readLimit: readLimit,
	}
}

// Serve joins the caller to the course room, replays the backlog, and then
// relays live events until the connection drops. Disconnect is the implicit
// leave: the read pump exits on any error and runs the cleanup returned by
// Join, so the registry never accumulates dead connections.
func (h *RoomSocket) Serve(w http.ResponseWriter, r *http.Request) {
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

	courseCode := chi.URLParam(r, "courseCode")
	sub, backlog, leave, err := h.rooms.Join(r.Context(), tenantID, courseCode, userID, role)
	if err != nil {
		slog.Error("join room", "course_code", courseCode, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to join room", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		leave()
		slog.Warn("websocket upgrade", "course_code", courseCode, "error", err)
		return
	}

	go h.writePump(conn, sub, backlog)
	h.readPump(conn, leave)
}

// writePump is the only writer on the connection. It replays the backlog,
// then drains the subscriber's channel; it exits when the channel is closed
// by leave or when a write fails.
func (h *RoomSocket) writePump(conn *websocket.Conn, sub *room.Subscriber, backlog []*models.RoomEvent) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for _, event := range backlog {
		if !h.writeEvent(conn, event) {
			return
		}
	}

	for {
		select {
		case event, open := <-sub.Send:
			if !open {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if !h.writeEvent(conn, event) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *RoomSocket) writeEvent(conn *websocket.Conn, event *models.RoomEvent) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		slog.Debug("websocket write", "room_id", event.RoomID, "error", err)
		return false
	}
	return true
}

// readPump discards inbound frames and detects disconnect. Any read error,
// including a clean close, unsubscribes the connection.
func (h *RoomSocket) readPump(conn *websocket.Conn, leave func()) {
	defer func() {
		leave()
		conn.Close()
	}()

	conn.SetReadLimit(h.readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
