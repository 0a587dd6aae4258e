/*
Package hub contains the core logic of the messaging hub: session and room
tracking, presence, typing state, and message distribution.

This file defines the Hub struct, the coordinator every connection event
flows through. One mutex guards all shared state, so membership, presence
and typing computations never observe a partially applied change. Delivery
enqueues pre-marshalled frames on non-blocking sinks while the lock is
held; store reads and writes always happen outside it.
*/
package hub

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"parley/internal/app/store"
	"parley/internal/configs"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
)

// Sink is the write side of one connection. Deliver enqueues a frame
// without blocking and reports whether it was accepted. A slow sink never
// blocks delivery to the rest of a room.
type Sink interface {
	Deliver(frame []byte) bool
}

// Hub coordinates sessions, rooms, presence, typing state and message
// distribution for all live connections.
type Hub struct {
	// mu guards every field below.
	mu sync.Mutex

	// sessions maps a connection ID to its live session.
	sessions map[string]*Session

	// byUser maps a user ID to its connection ID, for private-message
	// resolution.
	byUser map[string]string

	// rooms groups member connection IDs by room, derived from sessions.
	// A room with zero members is absent from the map.
	rooms map[string]map[string]struct{}

	// typing holds the active typing entry per user ID.
	typing map[string]*typingEntry

	// messages is the durable history collaborator.
	messages store.MessageStore

	// config holds the application's read-only configuration settings.
	config *configs.AppConfig

	// structured logger with Hub context.
	logger zerolog.Logger

	// closed blocks new sessions once Close has run.
	closed bool
}

// NewHub constructs a Hub backed by the given message store.
func NewHub(cfg *configs.AppConfig, messages store.MessageStore) *Hub {
	hubLogger := logx.Logger().With().Str("component", "Hub").Logger()

	return &Hub{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]string),
		rooms:    make(map[string]map[string]struct{}),
		typing:   make(map[string]*typingEntry),
		messages: messages,
		config:   cfg,
		logger:   hubLogger,
	}
}

// Join binds a connection to an identity and a room. The joiner receives
// the room's recent history, the other members a joined notice, and the
// whole room a fresh user list. A join on a connection that already has a
// session switches rooms, preserving the user ID; both the vacated and the
// entered room get their notices and list refreshed.
func (h *Hub) Join(ctx context.Context, connectionID string, sink Sink, displayName, room string) *errs.CustomError {
	displayName = strings.TrimSpace(displayName)
	room = strings.TrimSpace(room)

	if displayName == "" || room == "" {
		return errs.New(errs.ErrInvalidJoin)
	}
	if IsReservedRoom(room) {
		return errs.New(errs.ErrRoomNameReserved)
	}
	if strings.Contains(room, ":") {
		return errs.New(errs.ErrInvalidJoin)
	}

	history, historyErr := h.recentHistory(ctx, room)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errs.New(errs.ErrUnknown)
	}

	s, exists := h.sessions[connectionID]
	switch {
	case !exists:
		s = h.registerSessionLocked(connectionID, sink, displayName, room)
		h.deliverHistoryLocked(s, room, history)
		h.announceLocked(EventUserJoined, room, s.User.Name, s.ConnectionID)
		h.broadcastUserListLocked(room)

		h.logger.Info().
			Str("connection_id", connectionID).
			Str("user_id", s.User.ID).
			Str("room", room).
			Msg("Session joined.")

	case s.Room == room:
		// Rejoining the current room refreshes the requester without
		// disturbing the rest of the room.
		h.deliverHistoryLocked(s, room, history)
		if frame := h.userListFrameLocked(room); frame != nil {
			h.deliverLocked(s, frame)
		}

		h.logger.Debug().
			Str("connection_id", connectionID).
			Str("room", room).
			Msg("Session refreshed room state.")

	default:
		vacated := s.Room
		h.stopTypingLocked(s)
		h.moveSessionLocked(s, room)
		h.announceLocked(EventUserLeft, vacated, s.User.Name, s.ConnectionID)
		h.broadcastUserListLocked(vacated)
		h.deliverHistoryLocked(s, room, history)
		h.announceLocked(EventUserJoined, room, s.User.Name, s.ConnectionID)
		h.broadcastUserListLocked(room)

		h.logger.Info().
			Str("connection_id", connectionID).
			Str("user_id", s.User.ID).
			Str("from_room", vacated).
			Str("to_room", room).
			Msg("Session switched rooms.")
	}

	if historyErr != nil {
		h.deliverLocked(s, ErrorFrame(historyErr))
	}

	return nil
}

// Disconnect removes a connection's session, clears its typing state, and
// notifies the vacated room. It is idempotent: disconnecting a connection
// with no session is a no-op.
func (h *Hub) Disconnect(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connectionID]
	if !ok {
		return
	}

	h.stopTypingLocked(s)
	h.removeSessionLocked(connectionID)
	h.announceLocked(EventUserLeft, s.Room, s.User.Name, connectionID)
	h.broadcastUserListLocked(s.Room)

	h.logger.Info().
		Str("connection_id", connectionID).
		Str("user_id", s.User.ID).
		Str("room", s.Room).
		Msg("Session disconnected.")
}

// RoomSummary describes one active room for the REST surface.
type RoomSummary struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// RoomSummaries returns the active rooms with their member counts, sorted
// by name.
func (h *Hub) RoomSummaries() []RoomSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	summaries := make([]RoomSummary, 0, len(h.rooms))
	for room, members := range h.rooms {
		summaries = append(summaries, RoomSummary{Name: room, Members: len(members)})
	}

	slices.SortFunc(summaries, func(a, b RoomSummary) int {
		return strings.Compare(a.Name, b.Name)
	})

	return summaries
}

// Close shuts the hub down: typing timers stop, state is released, and new
// joins are refused. Live connections are torn down by the transport layer,
// not here.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, entry := range h.typing {
		entry.gen++
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}

	h.sessions = nil
	h.byUser = nil
	h.rooms = nil
	h.typing = nil

	h.logger.Info().Msg("Hub shutdown complete.")
}

// deliverLocked enqueues a frame on a session's sink without blocking. A
// refused frame is dropped here; the sink owner decides whether the
// connection survives. Caller holds h.mu.
func (h *Hub) deliverLocked(s *Session, frame []byte) {
	if frame == nil {
		return
	}

	if !s.sink.Deliver(frame) {
		h.logger.Warn().
			Str("connection_id", s.ConnectionID).
			Msg("Send buffer full. Frame dropped.")
	}
}

// deliverRoomLocked enqueues a frame to every member of a room, skipping
// excludeConnectionID when non-empty. Caller holds h.mu.
func (h *Hub) deliverRoomLocked(room string, frame []byte, excludeConnectionID string) {
	for connectionID := range h.rooms[room] {
		if connectionID == excludeConnectionID {
			continue
		}
		if s, ok := h.sessions[connectionID]; ok {
			h.deliverLocked(s, frame)
		}
	}
}

// deliverHistoryLocked sends the room's recent window to one session.
// Caller holds h.mu.
func (h *Hub) deliverHistoryLocked(s *Session, room string, history []ChatMessagePayload) {
	if history == nil {
		history = []ChatMessagePayload{}
	}

	frame, err := NewEvent(EventChatHistory, ChatHistoryPayload{Room: room, Messages: history})
	if err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("Failed to build CHAT_HISTORY frame.")
		return
	}

	h.deliverLocked(s, frame)
}
