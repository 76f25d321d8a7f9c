package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a time-ordered UUIDv7 string. IDs generated later sort after
// earlier ones, which the store relies on as an ordering tie-break.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		b := make([]byte, 16)
		_, _ = rand.Read(b)
		return hex.EncodeToString(b)
	}
	return id.String()
}
