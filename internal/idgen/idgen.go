// Package idgen generates process-unique identifiers for memories,
// snapshots, worktrees, and subscriptions.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New creates a globally unique ID in the format {prefix}_{unix_nano}_{12_hex_chars}.
// The 12 hex characters are derived from 6 cryptographically random bytes,
// giving 48 bits of randomness to avoid collisions at the same nanosecond.
// If crypto/rand fails, the ID omits the random suffix and relies on the
// nanosecond timestamp alone.
func New(prefix string) string {
	timestamp := time.Now().UnixNano()

	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%s_%d", prefix, timestamp)
	}

	return fmt.Sprintf("%s_%d_%s", prefix, timestamp, hex.EncodeToString(b[:]))
}

// UUID returns a random UUID string, used where the spec calls for a
// "uuid-like" identifier (snapshot ids, subscription ids).
func UUID() string {
	return uuid.New().String()
}
