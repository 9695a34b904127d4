package hubstore

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxAddressLength bounds namespace identifiers accepted from the URL.
const MaxAddressLength = 128

// IsValidAddress reports whether address is a usable namespace identifier:
// non-empty, ASCII alphanumeric, at most MaxAddressLength characters.
func IsValidAddress(address string) bool {
	if address == "" || len(address) > MaxAddressLength {
		return false
	}

	for i := 0; i < len(address); i++ {
		c := address[i]
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isAlnum {
			return false
		}
	}

	return true
}

// NormalizePath strips a single trailing slash, so "photos/" and "photos" name the same object.
func NormalizePath(p string) string {
	return strings.TrimSuffix(p, "/")
}

// IsValidPath reports whether p can name an object inside a namespace.
// p must be valid UTF-8 and split on "/" into non-empty segments, none of
// them "." or "..". Whitespace, control characters and any of \ ? # ~ are
// rejected anywhere in p.
//
// Run NormalizePath first: a trailing slash leaves an empty final segment.
func IsValidPath(p string) bool {
	if p == "" || !utf8.ValidString(p) {
		return false
	}
	if strings.IndexFunc(p, forbiddenInPath) >= 0 {
		return false
	}

	for seg := range strings.SplitSeq(p, "/") {
		switch seg {
		case "", ".", "..":
			return false
		}
	}
	return true
}

func forbiddenInPath(r rune) bool {
	if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune(`\?#~`, r)
}
