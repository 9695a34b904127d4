// Package internal holds helpers shared by the SQL proof repositories.
package internal

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sagarc03/hubstore"
)

// TimeLayout is the fixed-width UTC layout used for text timestamps.
// Fixed width keeps lexical and chronological order the same.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Cursor is a decoded keyset position: the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// EncodeCursor encodes a keyset position as an opaque string.
func EncodeCursor(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor produced by EncodeCursor. An empty string
// decodes to the zero Cursor.
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}

	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w: invalid encoding", hubstore.ErrInvalidInput)
	}

	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return Cursor{}, fmt.Errorf("decode cursor: %w: invalid format", hubstore.ErrInvalidInput)
	}
	if id == "" {
		return Cursor{}, fmt.Errorf("decode cursor: %w: empty id", hubstore.ErrInvalidInput)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w: invalid timestamp", hubstore.ErrInvalidInput)
	}

	return Cursor{CreatedAt: createdAt, ID: id}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLikePattern escapes LIKE metacharacters using backslash.
func EscapeLikePattern(s string) string {
	return likeEscaper.Replace(s)
}
