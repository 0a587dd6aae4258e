/*
Package hub contains the core logic of the messaging hub: session and room
tracking, presence, typing state, and message distribution.

This file defines the Session record and the registry bookkeeping: which
connection is bound to which identity and room, plus the derived room index
used for targeted broadcast. The room index is rebuilt incrementally as a
side effect of session mutations and is never the sole record of membership.
*/
package hub

import (
	"strings"

	"parley/internal/app/user"
	"parley/internal/pkg/randx"
)

// reservedRoomPrefix marks the room-like tags under which private message
// threads are persisted. No live room may use the namespace.
const reservedRoomPrefix = "pm:"

// Session is the live binding of one connection to a claimed identity and a
// current room. ConnectionID and User are immutable for the session's life;
// Room changes on a room switch.
type Session struct {
	ConnectionID string
	User         user.User
	Room         string

	sink Sink
}

// IsReservedRoom reports whether the room name lies in the namespace
// reserved for private message threads.
func IsReservedRoom(room string) bool {
	return strings.HasPrefix(room, reservedRoomPrefix)
}

// PrivateThreadTag returns the room-like tag a private conversation between
// two users is persisted under. The pair is ordered so both directions of
// the conversation share one thread.
func PrivateThreadTag(userID, otherID string) string {
	if otherID < userID {
		userID, otherID = otherID, userID
	}
	return reservedRoomPrefix + userID + ":" + otherID
}

// registerSessionLocked creates a new session for a connection with a fresh
// user ID and indexes it under its room. Caller holds h.mu.
func (h *Hub) registerSessionLocked(connectionID string, sink Sink, displayName, room string) *Session {
	s := &Session{
		ConnectionID: connectionID,
		User:         user.User{ID: randx.UserID(), Name: displayName},
		Room:         room,
		sink:         sink,
	}

	h.sessions[connectionID] = s
	h.byUser[s.User.ID] = connectionID
	h.addMemberLocked(room, connectionID)

	return s
}

// moveSessionLocked switches a session to another room, preserving its
// connection ID and user identity. Caller holds h.mu.
func (h *Hub) moveSessionLocked(s *Session, room string) {
	h.dropMemberLocked(s.Room, s.ConnectionID)
	s.Room = room
	h.addMemberLocked(room, s.ConnectionID)
}

// removeSessionLocked deletes a session and its index entries. It returns
// nil when the connection has no session, so removal is idempotent. Caller
// holds h.mu.
func (h *Hub) removeSessionLocked(connectionID string) *Session {
	s, ok := h.sessions[connectionID]
	if !ok {
		return nil
	}

	delete(h.sessions, connectionID)
	delete(h.byUser, s.User.ID)
	h.dropMemberLocked(s.Room, connectionID)

	return s
}

// resolveUserLocked returns the session currently bound to a user ID, or
// nil. Resolution happens at call time, never from a cached address. Caller
// holds h.mu.
func (h *Hub) resolveUserLocked(userID string) *Session {
	connectionID, ok := h.byUser[userID]
	if !ok {
		return nil
	}
	return h.sessions[connectionID]
}

func (h *Hub) addMemberLocked(room, connectionID string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[connectionID] = struct{}{}
}

// dropMemberLocked removes a connection from a room's member set, deleting
// the set when it empties. Rooms with zero members are absent, never kept.
func (h *Hub) dropMemberLocked(room, connectionID string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}

	delete(members, connectionID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// membersLocked resolves a room's member set to live sessions. Caller holds
// h.mu.
func (h *Hub) membersLocked(room string) []*Session {
	members := h.rooms[room]
	sessions := make([]*Session, 0, len(members))
	for connectionID := range members {
		if s, ok := h.sessions[connectionID]; ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}
