package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// maxTimestamp sorts after every zero-padded UnixNano value, so a reverse
// seek lands on the newest key of a room.
const maxTimestamp = "9999999999999999999"

// BadgerStore keeps messages in an embedded Badger database.
//
// Keys are "msg:<room>:<timestamp>:<id>" with the timestamp zero-padded to
// 19 digits, so a forward prefix scan walks one room in chronological order
// and a reverse scan yields newest first. The message ID suffix keeps two
// messages stored in the same nanosecond apart.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens the Badger database at path, creating it if needed.
func OpenBadger(path string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("opening badger database at %s: %w", path, err)
	}

	return &BadgerStore{db: db}, nil
}

func messageKey(msg Message) []byte {
	return fmt.Appendf(nil, "msg:%s:%019d:%s", msg.Room, msg.CreatedAt.UnixNano(), msg.ID)
}

func roomPrefix(room string) []byte {
	return fmt.Appendf(nil, "msg:%s:", room)
}

// Append stores the message under its room- and time-ordered key. Keys are
// unique per message ID, so a repeated append overwrites the same entry.
func (s *BadgerStore) Append(_ context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message %s: %w", msg.ID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), value)
	})
}

// RecentByRoom walks the room's keyspace newest first, stops after limit
// entries, and returns them oldest first.
func (s *BadgerStore) RecentByRoom(_ context.Context, room string, limit int) ([]Message, error) {
	var messages []Message

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), maxTimestamp...)

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				break
			}

			var msg Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			})
			if err != nil {
				return err
			}

			messages = append(messages, msg)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning room %s: %w", room, err)
	}

	return lo.Reverse(messages), nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
