package hubstore

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"
)

// StoreRequest describes a single object write handed to a Driver.
type StoreRequest struct {
	Address     string
	Path        string
	ContentType string
	// ContentLength is -1 when the client did not declare a length.
	ContentLength int64
	Body          io.Reader
}

// ListFilesResult is one page of a namespace listing.
// A nil Page marks the end of the listing and encodes as JSON null.
type ListFilesResult struct {
	Entries []string `json:"entries"`
	Page    *string  `json:"page"`
}

// ReadResult is an object opened for reading. The caller must close Body.
type ReadResult struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	ETag        string
	ModTime     time.Time
}

// HubInfo is the discovery document served to clients.
type HubInfo struct {
	ChallengeText     string `json:"challenge_text"`
	LatestAuthVersion string `json:"latest_auth_version"`
	ReadURLPrefix     string `json:"read_url_prefix"`
}

// EndOfListing returns an empty final page.
func EndOfListing() ListFilesResult {
	return ListFilesResult{Entries: []string{}, Page: nil}
}

// NextPage returns a pointer to page, or nil when page is empty.
func NextPage(page string) *string {
	if page == "" {
		return nil
	}
	return &page
}

// Tables holds configurable table names for proof storage.
// This allows several hubs to share one database.
type Tables struct {
	Proofs string `mapstructure:"proofs"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Proofs == "" {
		return errors.New("validate tables: proofs table name cannot be empty")
	}

	if !IsValidTableName(t.Proofs) {
		return fmt.Errorf("validate tables: invalid proofs table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Proofs)
	}

	return nil
}
