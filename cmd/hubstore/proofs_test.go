package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/config"
	"github.com/sagarc03/hubstore/database"
	"github.com/sagarc03/hubstore/driver"
	"github.com/sagarc03/hubstore/proofs"
)

const (
	// Addresses of the raw public keys 0x01*32 and 0x02*32.
	addrA = "QmW4nsXQFRqVVuFzkHfFaxxUkM9soTNQQEsD7qXpFLLJGa"
	addrB = "QmWFSERSXyjqtgcghrTAJhS7k9GjiJf3wZ4oLAv7dyonfj"
)

func newTestRepo(t *testing.T) proofs.Repo {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{
		Type:   "sqlite",
		DSN:    ":memory:",
		Tables: hubstore.Tables{Proofs: "proofs"},
	}, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.GetRepo()
}

func TestAddProofs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, updated, err := addProofs(ctx, repo, []proofEntry{
		{Address: addrA, Service: "github", Identifier: "alice", Valid: true},
		{Address: addrA, Service: "twitter", Identifier: "alice", Valid: false},
		{Address: addrB, Service: "github", Identifier: "bob", Valid: true},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, 0, updated)

	created, updated, err = addProofs(ctx, repo, []proofEntry{
		{Address: addrA, Service: "twitter", Identifier: "alice", Valid: true},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 1, updated)

	list, err := repo.Proofs(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, []proofs.Proof{
		{Service: "github", Identifier: "alice", Valid: true},
		{Service: "twitter", Identifier: "alice", Valid: true},
	}, list)
}

func TestAddProofs_ValidatesBeforeWriting(t *testing.T) {
	tests := []struct {
		name  string
		entry proofEntry
	}{
		{"invalid address", proofEntry{Address: "nope", Service: "github", Identifier: "alice"}},
		{"bitcoin address", proofEntry{Address: "1LzPFuEy6bXEJjZqpNLZBpbFpkKE2XMSnB", Service: "github", Identifier: "alice"}},
		{"missing service", proofEntry{Address: addrA, Identifier: "alice"}},
		{"missing identifier", proofEntry{Address: addrA, Service: "github"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepo(t)

			_, _, err := addProofs(ctx, repo, []proofEntry{
				{Address: addrB, Service: "github", Identifier: "bob", Valid: true},
				tt.entry,
			}, true)
			require.ErrorIs(t, err, hubstore.ErrInvalidInput)

			list, err := repo.Proofs(ctx, addrB)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestReadProofFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proofs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"address": "`+addrA+`", "service": "github", "identifier": "alice", "valid": true}
	]`), 0o600))

	entries, err := readProofFile(path)
	require.NoError(t, err)
	assert.Equal(t, []proofEntry{{Address: addrA, Service: "github", Identifier: "alice", Valid: true}}, entries)

	require.NoError(t, os.WriteFile(path, []byte(`{"address": 1}`), 0o600))
	_, err = readProofFile(path)
	require.Error(t, err)

	_, err = readProofFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestRemoveAddressProofs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, _, err := addProofs(ctx, repo, []proofEntry{
		{Address: addrA, Service: "github", Identifier: "alice", Valid: true},
		{Address: addrA, Service: "twitter", Identifier: "alice", Valid: false},
		{Address: addrB, Service: "github", Identifier: "bob", Valid: true},
	}, true)
	require.NoError(t, err)

	removed, err := removeAddressProofs(ctx, repo, addrA, true)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := repo.Proofs(ctx, addrA)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = repo.Proofs(ctx, addrB)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type fakeInvalidator struct {
	addresses []string
	err       error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, address string) error {
	f.addresses = append(f.addresses, address)
	return f.err
}

func TestInvalidatingRepo(t *testing.T) {
	t.Run("writes evict the address", func(t *testing.T) {
		ctx := context.Background()
		cache := &fakeInvalidator{}
		repo := invalidatingRepo{Repo: newTestRepo(t), cache: cache}

		_, _, err := addProofs(ctx, repo, []proofEntry{
			{Address: addrA, Service: "github", Identifier: "alice", Valid: true},
			{Address: addrB, Service: "github", Identifier: "bob", Valid: true},
		}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{addrA, addrB}, cache.addresses)

		removed, err := removeAddressProofs(ctx, repo, addrA, true)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		assert.Equal(t, []string{addrA, addrB, addrA}, cache.addresses)
	})

	t.Run("failed writes do not evict", func(t *testing.T) {
		ctx := context.Background()
		cache := &fakeInvalidator{}
		repo := invalidatingRepo{Repo: newTestRepo(t), cache: cache}

		_, _, err := addProofs(ctx, repo, []proofEntry{
			{Address: "nope", Service: "github", Identifier: "alice"},
		}, true)
		require.ErrorIs(t, err, hubstore.ErrInvalidInput)

		err = repo.Delete(ctx, addrA, "github", "alice")
		require.ErrorIs(t, err, hubstore.ErrNotFound)
		assert.Empty(t, cache.addresses)
	})

	t.Run("eviction errors do not fail the write", func(t *testing.T) {
		ctx := context.Background()
		cache := &fakeInvalidator{err: errors.New("redis down")}
		repo := invalidatingRepo{Repo: newTestRepo(t), cache: cache}

		created, _, err := addProofs(ctx, repo, []proofEntry{
			{Address: addrA, Service: "github", Identifier: "alice", Valid: true},
		}, true)
		require.NoError(t, err)
		assert.Equal(t, 1, created)
		assert.Equal(t, []string{addrA}, cache.addresses)
	})
}

func TestWritableProofRepo(t *testing.T) {
	db, err := database.Open(context.Background(), database.Config{
		Type:   "sqlite",
		DSN:    ":memory:",
		Tables: hubstore.Tables{Proofs: "proofs"},
	}, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	repo, closeCache := writableProofRepo(cfg, db)
	_, wrapped := repo.(invalidatingRepo)
	assert.False(t, wrapped)
	require.NoError(t, closeCache())

	cfg.Proofs.Cache = config.RedisCacheConfig{Enabled: true, Addr: "127.0.0.1:6379", KeyPrefix: "hubstore:proofs:"}
	repo, closeCache = writableProofRepo(cfg, db)
	_, wrapped = repo.(invalidatingRepo)
	assert.True(t, wrapped)
	require.NoError(t, closeCache())
}

func TestCollectProofs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	var entries []proofEntry
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		entries = append(entries, proofEntry{Address: addrA, Service: "github", Identifier: id, Valid: true})
	}
	entries = append(entries, proofEntry{Address: addrB, Service: "github", Identifier: "bob", Valid: true})
	_, _, err := addProofs(ctx, repo, entries, true)
	require.NoError(t, err)

	all, err := collectProofs(ctx, repo, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	limited, err := collectProofs(ctx, repo, "", 4)
	require.NoError(t, err)
	assert.Len(t, limited, 4)

	filtered, err := collectProofs(ctx, repo, addrB[:4], 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "bob", filtered[0].Proof.Identifier)
}

func TestWriteProofs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, _, err := addProofs(ctx, repo, []proofEntry{
		{Address: addrA, Service: "github", Identifier: "alice", Valid: true},
	}, true)
	require.NoError(t, err)

	records, err := collectProofs(ctx, repo, "", 0)
	require.NoError(t, err)

	var table bytes.Buffer
	require.NoError(t, writeProofsTable(&table, records))
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ADDRESS"))
	assert.Contains(t, lines[1], addrA)
	assert.Contains(t, lines[1], "github")
	assert.Contains(t, lines[1], "true")

	var out bytes.Buffer
	require.NoError(t, writeProofsJSON(&out, records))
	var decoded []proofs.Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, records[0].ID, decoded[0].ID)
	assert.Equal(t, addrA, decoded[0].Address)
}

func TestWriteDrivers(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeDrivers(&out, driver.Backends()))

	for _, name := range []string{"disk", "memory", "pebble", "s3"} {
		assert.Contains(t, out.String(), name)
	}
}
