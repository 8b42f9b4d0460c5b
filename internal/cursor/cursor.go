// Package cursor converts creation timestamps to and from opaque page cursors.
package cursor

import (
	"encoding/base64"
	"time"

	"github.com/phrasebook-app/apiserver/internal/apperr"
)

var encoding = base64.RawURLEncoding

// Encode returns the cursor for a creation timestamp.
func Encode(t time.Time) string {
	return encoding.EncodeToString([]byte(t.UTC().Format(time.RFC3339Nano)))
}

// Decode parses a cursor produced by Encode. Malformed input yields
// an error matching apperr.ErrInvalidCursor.
func Decode(s string) (time.Time, error) {
	raw, err := encoding.DecodeString(s)
	if err != nil {
		return time.Time{}, apperr.InvalidCursor(err)
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, apperr.InvalidCursor(err)
	}
	return t.UTC(), nil
}
