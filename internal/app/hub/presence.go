/*
Package hub contains the core logic of the messaging hub: session and room
tracking, presence, typing state, and message distribution.

This file computes and distributes presence: the full user list broadcast to
a room after every membership change, and the human-readable joined/left
notices.
*/
package hub

import (
	"slices"
	"strings"

	"github.com/samber/lo"

	"parley/internal/app/user"
)

// userListLocked builds the presence list for a room, sorted by display
// name then user ID so every observer sees an identical list. Caller holds
// h.mu.
func (h *Hub) userListLocked(room string) []user.User {
	users := lo.Map(h.membersLocked(room), func(s *Session, _ int) user.User {
		return s.User
	})

	slices.SortFunc(users, func(a, b user.User) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return users
}

// userListFrameLocked builds the USER_LIST frame for a room, or nil on a
// marshalling failure. Caller holds h.mu.
func (h *Hub) userListFrameLocked(room string) []byte {
	frame, err := NewEvent(EventUserList, UserListPayload{Room: room, Users: h.userListLocked(room)})
	if err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("Failed to build USER_LIST frame.")
		return nil
	}

	return frame
}

// broadcastUserListLocked delivers the room's current user list to every
// member, including the most recent arrival. Called after every join, room
// switch and disconnect, for each affected room. Caller holds h.mu.
func (h *Hub) broadcastUserListLocked(room string) {
	members := h.membersLocked(room)
	if len(members) == 0 {
		return
	}

	frame := h.userListFrameLocked(room)
	if frame == nil {
		return
	}

	for _, s := range members {
		h.deliverLocked(s, frame)
	}
}

// announceLocked delivers a USER_JOINED or USER_LEFT notice to every member
// of the room except the subject connection. Caller holds h.mu.
func (h *Hub) announceLocked(eventType, room, displayName, excludeConnectionID string) {
	frame, err := NewEvent(eventType, UserNoticePayload{Room: room, DisplayName: displayName})
	if err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("Failed to build membership notice frame.")
		return
	}

	h.deliverRoomLocked(room, frame, excludeConnectionID)
}
