// Package idgen provides ID generation: deterministic student identifiers
// derived from names, and random IDs for alert records.
package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// studentIDPrefix marks IDs derived from student names.
const studentIDPrefix = "stu_"

// StudentID derives a stable identifier from a student name.
// The name is trimmed and lower-cased before hashing, so "Priya Sharma" and
// " priya sharma " map to the same ID across uploads and process restarts.
// Distinct students sharing the exact same name collide; resolving that needs
// a roster with real enrollment IDs, which uploads don't carry.
func StudentID(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	sum := sha256.Sum256([]byte(normalized))
	return studentIDPrefix + hex.EncodeToString(sum[:4])
}

// WithPrefix generates a random ID with a prefix (e.g. "alert_", "sms_").
// Result is prefix + 24 hex chars (12 random bytes).
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}
