// Package repotest provides a conformance suite for proofs.Repo implementations.
package repotest

import (
	"context"
	"fmt"
	"testing"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/proofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a repo backed by a fresh, migrated table.
type Factory func(t *testing.T) proofs.Repo

// Run executes the suite against repos produced by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("upsert inserts then updates", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		first, inserted, err := r.Upsert(ctx, "addr1", proofs.Proof{Service: "twitter", Identifier: "alice", Valid: false})
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, "addr1", first.Address)
		assert.False(t, first.Proof.Valid)
		assert.False(t, first.CreatedAt.IsZero())

		second, inserted, err := r.Upsert(ctx, "addr1", proofs.Proof{Service: "twitter", Identifier: "alice", Valid: true})
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, first.ID, second.ID)
		assert.True(t, second.Proof.Valid)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
		assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
	})

	t.Run("proofs are scoped to an address", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		mustUpsert(t, r, "addrA", proofs.Proof{Service: "github", Identifier: "a", Valid: true})
		mustUpsert(t, r, "addrA", proofs.Proof{Service: "facebook", Identifier: "a", Valid: false})
		mustUpsert(t, r, "addrB", proofs.Proof{Service: "github", Identifier: "b", Valid: true})

		got, err := r.Proofs(ctx, "addrA")
		require.NoError(t, err)
		assert.Equal(t, []proofs.Proof{
			{Service: "facebook", Identifier: "a", Valid: false},
			{Service: "github", Identifier: "a", Valid: true},
		}, got)

		none, err := r.Proofs(ctx, "unknown")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("delete", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		mustUpsert(t, r, "addr1", proofs.Proof{Service: "github", Identifier: "x", Valid: true})

		require.NoError(t, r.Delete(ctx, "addr1", "github", "x"))

		got, err := r.Proofs(ctx, "addr1")
		require.NoError(t, err)
		assert.Empty(t, got)

		err = r.Delete(ctx, "addr1", "github", "x")
		assert.ErrorIs(t, err, hubstore.ErrNotFound)
	})

	t.Run("list pages through every record once", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		want := map[string]bool{}
		for i := range 7 {
			rec := mustUpsert(t, r, fmt.Sprintf("addr%d", i), proofs.Proof{Service: "github", Identifier: "id", Valid: true})
			want[rec.ID.String()] = true
		}

		seen := map[string]bool{}
		cursor := ""
		pages := 0
		for {
			res, err := r.List(ctx, proofs.ListQuery{Limit: 3, Cursor: cursor})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(res.Items), 3)
			for _, rec := range res.Items {
				assert.False(t, seen[rec.ID.String()], "duplicate %s", rec.ID)
				seen[rec.ID.String()] = true
			}
			pages++
			if res.NextCursor == "" {
				break
			}
			cursor = res.NextCursor
			require.Less(t, pages, 10, "listing did not terminate")
		}

		assert.Equal(t, want, seen)
		assert.Equal(t, 3, pages)
	})

	t.Run("list filters by address prefix", func(t *testing.T) {
		r := newRepo(t)
		ctx := context.Background()

		mustUpsert(t, r, "1Abc", proofs.Proof{Service: "github", Identifier: "1", Valid: true})
		mustUpsert(t, r, "1Abd", proofs.Proof{Service: "github", Identifier: "2", Valid: true})
		mustUpsert(t, r, "2Xyz", proofs.Proof{Service: "github", Identifier: "3", Valid: true})

		res, err := r.List(ctx, proofs.ListQuery{AddressPrefix: "1Ab", Limit: 10})
		require.NoError(t, err)
		require.Len(t, res.Items, 2)
		for _, rec := range res.Items {
			assert.Contains(t, []string{"1Abc", "1Abd"}, rec.Address)
		}
		assert.Empty(t, res.NextCursor)
	})

	t.Run("list rejects a malformed cursor", func(t *testing.T) {
		r := newRepo(t)

		_, err := r.List(context.Background(), proofs.ListQuery{Limit: 1, Cursor: "!!!"})
		assert.ErrorIs(t, err, hubstore.ErrInvalidInput)
	})

	t.Run("repo backs a checker", func(t *testing.T) {
		r := newRepo(t)

		mustUpsert(t, r, "addr1", proofs.Proof{Service: "github", Identifier: "a", Valid: true})
		mustUpsert(t, r, "addr1", proofs.Proof{Service: "twitter", Identifier: "a", Valid: true})

		checker, err := proofs.NewChecker(proofs.Policy{Enabled: true, MinProofs: 2}, r)
		require.NoError(t, err)

		assert.NoError(t, checker.CheckProofs(context.Background(), "addr1"))
		assert.ErrorIs(t, checker.CheckProofs(context.Background(), "addr2"), hubstore.ErrNotEnoughProof)
	})
}

func mustUpsert(t *testing.T, r proofs.Repo, address string, p proofs.Proof) proofs.Record {
	t.Helper()
	rec, _, err := r.Upsert(context.Background(), address, p)
	require.NoError(t, err)
	return rec
}
