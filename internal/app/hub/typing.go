/*
Package hub contains the core logic of the messaging hub: session and room
tracking, presence, typing state, and message distribution.

This file tracks who is currently typing. Each typing user holds one entry
carrying their room, an expiry timer, and a generation counter. The counter
makes timer races harmless: every explicit signal bumps the generation, and
a timer firing for an older generation does nothing.
*/
package hub

import (
	"time"

	"parley/internal/pkg/errs"
)

// typingEntry is the active typing state of one user. A user has at most
// one entry, always for their current room.
type typingEntry struct {
	room  string
	gen   uint64
	timer *time.Timer
}

// StartTyping marks the connection's user as typing in their current room.
// The first signal notifies the other room members; repeated signals only
// rearm the expiry timer.
func (h *Hub) StartTyping(connectionID string) *errs.CustomError {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connectionID]
	if !ok {
		return errs.New(errs.ErrNotJoined)
	}

	entry, active := h.typing[s.User.ID]
	if active {
		h.armTypingLocked(s, entry)
		return nil
	}

	entry = &typingEntry{room: s.Room}
	h.typing[s.User.ID] = entry
	h.armTypingLocked(s, entry)

	h.notifyTypingLocked(EventTyping, s)

	return nil
}

// StopTyping clears the connection's typing state and notifies the room.
// A stop with no active typing state is a no-op.
func (h *Hub) StopTyping(connectionID string) *errs.CustomError {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connectionID]
	if !ok {
		return errs.New(errs.ErrNotJoined)
	}

	h.stopTypingLocked(s)

	return nil
}

// armTypingLocked bumps the entry's generation and schedules a fresh expiry
// timer carrying it. Any previously scheduled fire becomes stale. Caller
// holds h.mu.
func (h *Hub) armTypingLocked(s *Session, entry *typingEntry) {
	entry.gen++
	gen := entry.gen

	if entry.timer != nil {
		entry.timer.Stop()
	}

	userID := s.User.ID
	entry.timer = time.AfterFunc(h.config.TypingTTL, func() {
		h.expireTyping(userID, gen)
	})
}

// stopTypingLocked removes the user's typing entry, if any, and notifies
// the entry's room as if stop-typing were signaled. Caller holds h.mu.
func (h *Hub) stopTypingLocked(s *Session) {
	entry, ok := h.typing[s.User.ID]
	if !ok {
		return
	}

	entry.gen++
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(h.typing, s.User.ID)

	h.notifyTypingLocked(EventStopTyping, s)
}

// expireTyping is the timer callback for a typing entry. A fire whose
// generation no longer matches lost a race against an explicit signal and
// does nothing.
func (h *Hub) expireTyping(userID string, gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.typing[userID]
	if !ok || entry.gen != gen {
		return
	}

	s := h.resolveUserLocked(userID)
	if s == nil {
		delete(h.typing, userID)
		return
	}

	h.logger.Debug().Str("user_id", userID).Str("room", entry.room).Msg("Typing state expired.")
	h.stopTypingLocked(s)
}

// notifyTypingLocked delivers a TYPING or STOP_TYPING event to every member
// of the signaler's room except the signaler. Caller holds h.mu.
func (h *Hub) notifyTypingLocked(eventType string, s *Session) {
	frame, err := NewEvent(eventType, TypingPayload{
		Room:        s.Room,
		UserID:      s.User.ID,
		DisplayName: s.User.Name,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", s.User.ID).Msg("Failed to build typing frame.")
		return
	}

	h.deliverRoomLocked(s.Room, frame, s.ConnectionID)
}
