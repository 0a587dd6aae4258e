/*
Package hub contains the core logic of the messaging hub: session and room
tracking, presence, typing state, and message distribution.

This file defines the wire event surface. Every frame exchanged with a client
is an Event envelope: a type tag plus a JSON payload. Outbound frames are
marshalled once and the same bytes are enqueued to every recipient.
*/
package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"parley/internal/app/user"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
)

// Inbound event types.
const (
	EventJoin           = "JOIN"
	EventChatMessage    = "CHAT_MESSAGE"
	EventTyping         = "TYPING"
	EventStopTyping     = "STOP_TYPING"
	EventPrivateMessage = "PRIVATE_MESSAGE"
)

// Outbound-only event types. CHAT_MESSAGE, PRIVATE_MESSAGE, TYPING and
// STOP_TYPING flow in both directions.
const (
	EventChatHistory = "CHAT_HISTORY"
	EventUserList    = "USER_LIST"
	EventUserJoined  = "USER_JOINED"
	EventUserLeft    = "USER_LEFT"
	EventError       = "ERROR"
)

// Event is the envelope for every frame exchanged with a client.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload is the inbound JOIN payload. Sending it again on a live
// session switches rooms.
type JoinPayload struct {
	DisplayName string `json:"displayName"`
	Room        string `json:"room"`
}

// ChatPayload is the inbound CHAT_MESSAGE payload. Room and identity come
// from the session, never from the client.
type ChatPayload struct {
	Body string `json:"body"`
}

// PrivatePayload is the inbound PRIVATE_MESSAGE payload.
type PrivatePayload struct {
	TargetUserID string `json:"targetUserId"`
	Body         string `json:"body"`
}

// ChatMessagePayload is the server-confirmed copy of a room message. The
// sender renders from this copy too, so every observer sees one ordering.
type ChatMessagePayload struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Sender    user.User `json:"sender"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatHistoryPayload carries the recent window of a room, oldest first.
// Sent once, to the joining connection only.
type ChatHistoryPayload struct {
	Room     string               `json:"room"`
	Messages []ChatMessagePayload `json:"messages"`
}

// UserListPayload carries the full presence list of a room, sent to every
// member after any membership change.
type UserListPayload struct {
	Room  string      `json:"room"`
	Users []user.User `json:"users"`
}

// UserNoticePayload carries the USER_JOINED / USER_LEFT notices.
type UserNoticePayload struct {
	Room        string `json:"room"`
	DisplayName string `json:"displayName"`
}

// TypingPayload carries the outbound TYPING / STOP_TYPING notifications,
// sent to every room member except the signaler.
type TypingPayload struct {
	Room        string `json:"room"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// PrivateMessagePayload is delivered to the target connection and, as a
// confirmation copy, to the sender.
type PrivateMessagePayload struct {
	ID        string    `json:"id"`
	From      user.User `json:"from"`
	To        user.User `json:"to"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrorPayload reports a rejected event to the offending connection only.
type ErrorPayload struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// NewEvent marshals a payload into a ready-to-send Event frame.
func NewEvent(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", eventType, err)
	}

	frame, err := json.Marshal(Event{Type: eventType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", eventType, err)
	}

	return frame, nil
}

// ErrorFrame builds the ERROR event frame for a CustomError. It returns nil
// on a marshalling failure, which delivery treats as nothing to send.
func ErrorFrame(customErr *errs.CustomError) []byte {
	frame, err := NewEvent(EventError, ErrorPayload{Code: customErr.Code, Reason: customErr.Message})
	if err != nil {
		logx.Error(err, "Failed to build ERROR frame", "code", customErr.Code)
		return nil
	}

	return frame
}
