package hubstore

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const pageCursorPrefix = "after|"

// EncodePageCursor encodes the last path of a listing page into an opaque cursor.
// Drivers that list in lexical path order resume strictly after that path.
func EncodePageCursor(lastPath string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(pageCursorPrefix + lastPath))
}

// DecodePageCursor decodes a cursor produced by EncodePageCursor.
// An empty cursor decodes to an empty path (first page).
func DecodePageCursor(page string) (string, error) {
	if page == "" {
		return "", nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(page)
	if err != nil {
		return "", fmt.Errorf("decode page cursor: %w: invalid encoding", ErrInvalidInput)
	}

	lastPath, ok := strings.CutPrefix(string(decoded), pageCursorPrefix)
	if !ok || lastPath == "" {
		return "", fmt.Errorf("decode page cursor: %w: invalid format", ErrInvalidInput)
	}

	return lastPath, nil
}
