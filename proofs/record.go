package proofs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is a stored proof with its bookkeeping columns.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Address   string    `json:"address"`
	Proof     Proof     `json:"proof"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListQuery selects a page of proof records ordered by creation time.
type ListQuery struct {
	// AddressPrefix restricts the listing to addresses starting with it.
	AddressPrefix string
	Limit         int
	Cursor        string
}

// ListResult is one page of records. An empty NextCursor ends the listing.
type ListResult struct {
	Items      []Record `json:"items"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// Repo is the persistent proof table. It is a Source, so a hub can check
// proofs straight from the database.
type Repo interface {
	Source
	// Upsert records p for address. The bool reports whether a new row was created.
	Upsert(ctx context.Context, address string, p Proof) (Record, bool, error)
	// Delete removes one proof. It returns hubstore.ErrNotFound when absent.
	Delete(ctx context.Context, address, service, identifier string) error
	List(ctx context.Context, q ListQuery) (ListResult, error)
}
