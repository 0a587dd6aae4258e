/*
Package store persists conversation history and serves the recent window
replayed to joining participants.

Two drivers implement the MessageStore interface: an embedded Badger store
for single-node deployments and a PostgreSQL store for shared ones.
*/
package store

import (
	"context"
	"time"
)

// Message is a persisted conversation message, either a room broadcast or a
// private message filed under its conversation tag.
type Message struct {
	// ID is the ULID assigned when the message was accepted. IDs sort in
	// acceptance order.
	ID string `json:"id"`

	// Room is the room name, or the pm:<a>:<b> conversation tag for private
	// messages.
	Room string `json:"room"`

	// AuthorID and AuthorName identify the sender at the time of sending.
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`

	// Body is the message text.
	Body string `json:"body"`

	// CreatedAt is the server-side acceptance time.
	CreatedAt time.Time `json:"createdAt"`
}

// MessageStore persists accepted messages and returns the recent history
// window for a room.
type MessageStore interface {
	// Append stores one accepted message. Re-appending a message with an ID
	// already present is a no-op.
	Append(ctx context.Context, msg Message) error

	// RecentByRoom returns up to limit of the most recent messages in the
	// room, oldest first.
	RecentByRoom(ctx context.Context, room string, limit int) ([]Message, error)

	// Close releases the underlying database handle.
	Close() error
}
