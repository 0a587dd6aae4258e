/*
Package hub contains the core logic of the messaging hub: session and room
tracking, presence, typing state, and message distribution.

This file validates, persists and distributes messages: room broadcasts,
private messages, operational notices, and the history window replayed on
join. Store writes complete, or are declared failed, before any frame is
enqueued; a failed write downgrades to a warning on the sender instead of
suppressing the live broadcast.
*/
package hub

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"parley/internal/app/store"
	"parley/internal/app/user"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/randx"
)

// NoticeAuthorID is the synthetic user ID operational notices are
// attributed to. It never collides with a minted user ID and never resolves
// to a live session.
const NoticeAuthorID = "system"

// PostRoomMessage validates, persists and broadcasts a room message from a
// connection. The broadcast reaches every current member of the sender's
// room, the sender included.
func (h *Hub) PostRoomMessage(ctx context.Context, connectionID, body string) *errs.CustomError {
	h.mu.Lock()
	s, ok := h.sessions[connectionID]
	if !ok {
		h.mu.Unlock()
		return errs.New(errs.ErrNotJoined)
	}
	sender := s.User
	room := s.Room
	h.mu.Unlock()

	body, customErr := h.normalizeBody(body)
	if customErr != nil {
		return customErr
	}

	record := store.Message{
		ID:         randx.MessageID(),
		Room:       room,
		AuthorID:   sender.ID,
		AuthorName: sender.Name,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}

	appendErr := h.messages.Append(ctx, record)
	if appendErr != nil {
		h.logger.Error().Err(appendErr).
			Str("message_id", record.ID).
			Str("room", room).
			Msg("Message append failed. Broadcasting anyway.")
	}

	frame, err := NewEvent(EventChatMessage, chatPayloadFromRecord(record))
	if err != nil {
		return errs.New(errs.ErrUnknown, err)
	}

	h.mu.Lock()
	h.deliverRoomLocked(room, frame, "")
	if appendErr != nil {
		h.warnSenderLocked(connectionID)
	}
	h.mu.Unlock()

	return nil
}

// PostPrivateMessage validates, persists and delivers a private message.
// The target receives one copy and the sender a confirmation copy. The
// target's connection is resolved from their user ID at delivery time,
// never from a cached address.
func (h *Hub) PostPrivateMessage(ctx context.Context, connectionID, targetUserID, body string) *errs.CustomError {
	h.mu.Lock()
	s, ok := h.sessions[connectionID]
	if !ok {
		h.mu.Unlock()
		return errs.New(errs.ErrNotJoined)
	}
	sender := s.User
	h.mu.Unlock()

	body, customErr := h.normalizeBody(body)
	if customErr != nil {
		return customErr
	}

	targetUserID = strings.TrimSpace(targetUserID)

	h.mu.Lock()
	target := h.resolveUserLocked(targetUserID)
	if target == nil {
		h.mu.Unlock()
		return errs.New(errs.ErrRecipientNotFound)
	}
	if target.User.ID == sender.ID {
		h.mu.Unlock()
		return errs.New(errs.ErrSelfPrivateMessage)
	}
	recipient := target.User
	h.mu.Unlock()

	record := store.Message{
		ID:         randx.MessageID(),
		Room:       PrivateThreadTag(sender.ID, recipient.ID),
		AuthorID:   sender.ID,
		AuthorName: sender.Name,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}

	appendErr := h.messages.Append(ctx, record)
	if appendErr != nil {
		h.logger.Error().Err(appendErr).
			Str("message_id", record.ID).
			Msg("Private message append failed. Delivering anyway.")
	}

	frame, err := NewEvent(EventPrivateMessage, PrivateMessagePayload{
		ID:        record.ID,
		From:      sender,
		To:        recipient,
		Body:      body,
		CreatedAt: record.CreatedAt,
	})
	if err != nil {
		return errs.New(errs.ErrUnknown, err)
	}

	h.mu.Lock()
	if current := h.resolveUserLocked(recipient.ID); current != nil {
		h.deliverLocked(current, frame)
	} else {
		h.logger.Debug().
			Str("target_user_id", recipient.ID).
			Msg("Recipient disconnected before private delivery.")
	}
	if current, ok := h.sessions[connectionID]; ok {
		h.deliverLocked(current, frame)
	}
	if appendErr != nil {
		h.warnSenderLocked(connectionID)
	}
	h.mu.Unlock()

	return nil
}

// PostNotice persists and broadcasts an operational announcement into a
// room, attributed to a service name instead of a session. Unlike user
// messages, a failed store write fails the whole call, since the caller can
// simply retry.
func (h *Hub) PostNotice(ctx context.Context, room, authorName, body string) *errs.CustomError {
	room = strings.TrimSpace(room)
	if IsReservedRoom(room) {
		return errs.New(errs.ErrRoomNameReserved)
	}
	if room == "" || strings.Contains(room, ":") {
		return errs.New(errs.ErrInvalidParams)
	}

	authorName = strings.TrimSpace(authorName)
	if authorName == "" {
		authorName = "server"
	}

	body, customErr := h.normalizeBody(body)
	if customErr != nil {
		return customErr
	}

	record := store.Message{
		ID:         randx.MessageID(),
		Room:       room,
		AuthorID:   NoticeAuthorID,
		AuthorName: authorName,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.messages.Append(ctx, record); err != nil {
		h.logger.Error().Err(err).
			Str("message_id", record.ID).
			Str("room", room).
			Msg("Notice append failed.")
		return errs.New(errs.ErrStoreUnavailable)
	}

	frame, err := NewEvent(EventChatMessage, chatPayloadFromRecord(record))
	if err != nil {
		return errs.New(errs.ErrUnknown, err)
	}

	h.mu.Lock()
	h.deliverRoomLocked(room, frame, "")
	h.mu.Unlock()

	h.logger.Info().Str("room", room).Str("message_id", record.ID).Msg("Notice posted.")

	return nil
}

// recentHistory reads the room's recent window from the store, oldest
// first. Runs outside the hub lock.
func (h *Hub) recentHistory(ctx context.Context, room string) ([]ChatMessagePayload, *errs.CustomError) {
	records, err := h.messages.RecentByRoom(ctx, room, h.config.HistoryLimit)
	if err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("History fetch failed.")
		return nil, errs.New(errs.ErrStoreUnavailable)
	}

	return lo.Map(records, func(m store.Message, _ int) ChatMessagePayload {
		return chatPayloadFromRecord(m)
	}), nil
}

// normalizeBody trims a message body and validates it against the length
// policy, counted in runes.
func (h *Hub) normalizeBody(body string) (string, *errs.CustomError) {
	body = strings.TrimSpace(body)

	if body == "" {
		return "", errs.New(errs.ErrMessageEmpty)
	}

	if utf8.RuneCountInString(body) > h.config.MaxMessageChars {
		return "", errs.New(errs.ErrMessageTooLong, h.config.MaxMessageChars)
	}

	return body, nil
}

// warnSenderLocked delivers the store-unavailable warning to the sender, if
// still connected. Caller holds h.mu.
func (h *Hub) warnSenderLocked(connectionID string) {
	if current, ok := h.sessions[connectionID]; ok {
		h.deliverLocked(current, ErrorFrame(errs.New(errs.ErrStoreUnavailable)))
	}
}

func chatPayloadFromRecord(m store.Message) ChatMessagePayload {
	return ChatMessagePayload{
		ID:        m.ID,
		Room:      m.Room,
		Sender:    user.User{ID: m.AuthorID, Name: m.AuthorName},
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}
