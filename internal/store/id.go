package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// generatePrefixedID creates a globally unique ID in the format:
//
//	{prefix}_{unix_nano}_{12_hex_chars}
//
// The 12 hex characters are derived from 6 cryptographically random bytes,
// giving 48 bits of randomness to avoid collisions at the same nanosecond.
// If crypto/rand fails, the ID omits the random suffix and relies on the
// nanosecond timestamp alone (acceptable for single-machine usage).
func generatePrefixedID(prefix string) string {
	timestamp := time.Now().UnixNano()

	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%s_%d", prefix, timestamp)
	}

	return fmt.Sprintf("%s_%d_%s", prefix, timestamp, hex.EncodeToString(b[:]))
}

func generateSessionID() string { return generatePrefixedID("sess") }
func generateQueueID() string   { return generatePrefixedID("queue") }
func generateTaskID() string    { return generatePrefixedID("task") }
func generateProjectID() string { return generatePrefixedID("proj") }

// FriendlyLabel builds the human task label for a queue and sequence
// number: queue "Back End", seq 3 -> "BACK-END-3". Labels are assigned at
// creation from the queue's counter and never reused, even after deletes.
func FriendlyLabel(queueName string, seq int64) string {
	return fmt.Sprintf("%s-%d", slugifyQueueName(queueName), seq)
}

// slugifyQueueName upper-cases the queue name and collapses runs of
// non-alphanumeric characters into single dashes.
func slugifyQueueName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToUpper(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "QUEUE"
	}
	return slug
}
