/*
Package randx provides generation of the identifiers used across the hub.

Three kinds exist: connection IDs (opaque Base62 handles minted by the
gateway), user IDs (UUIDv4, minted once per join), and message IDs (ULID,
time-sortable so stores can order by key).
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// ConnectionIDLength is the fixed length of generated connection IDs.
	ConnectionIDLength = 12
)

// ConnectionID generates an opaque Base62 handle for a live connection using
// crypto/rand. Uniqueness is probabilistic; 12 Base62 characters leave
// collisions out of practical reach for the lifetime of a process.
func ConnectionID() (string, error) {
	result := make([]byte, ConnectionIDLength)

	for i := 0; i < ConnectionIDLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for connection id: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// UserID generates a UUIDv4 string identifying a user for the life of their
// session. Stable across room switches, discarded on disconnect.
func UserID() string {
	return uuid.New().String()
}

// MessageID generates a ULID string for a chat or private message. ULIDs sort
// lexicographically by creation time, which the badger store relies on for
// chronological key iteration.
func MessageID() string {
	return ulid.Make().String()
}

// IsValidConnectionID checks that the given string has the shape of a
// generated connection ID.
func IsValidConnectionID(id string) bool {
	if len(id) != ConnectionIDLength {
		return false
	}

	for _, char := range id {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}
