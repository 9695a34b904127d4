package e2e_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/hubstore/auth"
	"github.com/sagarc03/hubstore/clientcli"
)

func newWriter(t *testing.T, baseURL, keyType string) *clientcli.Client {
	t.Helper()

	key, err := clientcli.GenerateKey(keyType)
	require.NoError(t, err)

	client, err := clientcli.New(&clientcli.Config{Endpoint: baseURL, PrivateKey: key.PrivateKey})
	require.NoError(t, err)
	return client
}

func writeLocal(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestE2E_StoreListRead_SQLite(t *testing.T) {
	cfg := HubConfig{
		Port:     getOpenPort(t),
		DBType:   "sqlite",
		DBDSN:    filepath.Join(t.TempDir(), "hub.db"),
		DataPath: t.TempDir(),
	}
	baseURL, _ := startHub(t, cfg)

	runStoreListRead(t, baseURL, cfg)
}

func TestE2E_StoreListRead_Pebble(t *testing.T) {
	cfg := HubConfig{
		Port:     getOpenPort(t),
		DBType:   "sqlite",
		DBDSN:    filepath.Join(t.TempDir(), "hub.db"),
		Driver:   "pebble",
		DataPath: t.TempDir(),
	}
	baseURL, _ := startHub(t, cfg)

	runStoreListRead(t, baseURL, cfg)
}

// runStoreListRead exercises the write, list and read paths of a running hub.
func runStoreListRead(t *testing.T, baseURL string, cfg HubConfig) {
	t.Helper()
	ctx := context.Background()

	for _, keyType := range []string{"ed25519", "dilithium3"} {
		t.Run(keyType, func(t *testing.T) {
			writer := newWriter(t, baseURL, keyType)

			info, err := writer.HubInfo(ctx)
			require.NoError(t, err)
			assert.Equal(t, cfg.readURLPrefix(), info.ReadURLPrefix)
			assert.Equal(t, string(auth.LatestVersion), info.LatestAuthVersion)
			assert.Contains(t, info.ChallengeText, "hub.e2e.test")

			names := []string{"a.txt", "b.txt", "c/d.json"}
			for _, name := range names {
				results, err := writer.Upload(ctx, clientcli.UploadOptions{
					LocalPath:  writeLocal(t, filepath.Base(name), "content of "+name),
					RemotePath: name,
				})
				require.NoError(t, err)
				require.Len(t, results, 1)
				require.NoError(t, results[0].Err)
				assert.Equal(t, cfg.readURLPrefix()+writer.Address()+"/"+name, results[0].PublicURL)
			}

			first, err := writer.List(ctx, clientcli.ListOptions{})
			require.NoError(t, err)
			assert.Len(t, first.Entries, 2)
			assert.NotEmpty(t, first.NextPage)

			all, err := writer.List(ctx, clientcli.ListOptions{All: true})
			require.NoError(t, err)
			assert.ElementsMatch(t, names, all.Entries)
			assert.Empty(t, all.NextPage)

			reader, err := clientcli.New(&clientcli.Config{Endpoint: baseURL})
			require.NoError(t, err)

			result, body, err := reader.Read(ctx, clientcli.ReadOptions{
				Address:    writer.Address(),
				RemotePath: "c/d.json",
				LocalPath:  "-",
			})
			require.NoError(t, err)
			defer func() { _ = body.Close() }()

			data, err := io.ReadAll(body)
			require.NoError(t, err)
			assert.Equal(t, "content of c/d.json", string(data))
			assert.Equal(t, "application/json", result.ContentType)

			_, _, err = reader.Read(ctx, clientcli.ReadOptions{
				Address:    writer.Address(),
				RemotePath: "missing.txt",
				LocalPath:  "-",
			})
			require.ErrorIs(t, err, clientcli.ErrNotFound)
		})
	}
}

func TestE2E_Overwrite(t *testing.T) {
	baseURL, _ := startHub(t, HubConfig{
		Port:     getOpenPort(t),
		DBType:   "sqlite",
		DBDSN:    filepath.Join(t.TempDir(), "hub.db"),
		DataPath: t.TempDir(),
	})
	ctx := context.Background()
	writer := newWriter(t, baseURL, "ed25519")

	for _, content := range []string{"first", "second"} {
		_, err := writer.Upload(ctx, clientcli.UploadOptions{
			LocalPath:  writeLocal(t, "note.txt", content),
			RemotePath: "note.txt",
		})
		require.NoError(t, err)
	}

	_, body, err := writer.Read(ctx, clientcli.ReadOptions{RemotePath: "note.txt", LocalPath: "-"})
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestE2E_Proofs_SQLite(t *testing.T) {
	cfg := HubConfig{
		Port:      getOpenPort(t),
		DBType:    "sqlite",
		DBDSN:     filepath.Join(t.TempDir(), "hub.db"),
		DataPath:  t.TempDir(),
		MinProofs: 1,
	}
	baseURL, configPath := startHub(t, cfg)

	runProofGate(t, baseURL, configPath)
}

func TestE2E_Proofs_Postgres(t *testing.T) {
	cfg := HubConfig{
		Port:      getOpenPort(t),
		DBType:    "postgres",
		DBDSN:     getSharedPostgresDatabase(t),
		DataPath:  t.TempDir(),
		MinProofs: 1,
	}
	baseURL, configPath := startHub(t, cfg)

	runProofGate(t, baseURL, configPath)
}

// runProofGate checks that writes are refused until the proofs command records one.
func runProofGate(t *testing.T, baseURL, configPath string) {
	t.Helper()
	ctx := context.Background()

	writer := newWriter(t, baseURL, "ed25519")
	local := writeLocal(t, "gated.txt", "gated")

	_, err := writer.Upload(ctx, clientcli.UploadOptions{LocalPath: local, RemotePath: "gated.txt"})
	require.ErrorIs(t, err, clientcli.ErrNotEnoughProof)

	runHub(t, configPath, "proofs", "add", "--invalid", writer.Address(), "twitter", "someone")

	_, err = writer.Upload(ctx, clientcli.UploadOptions{LocalPath: local, RemotePath: "gated.txt"})
	require.ErrorIs(t, err, clientcli.ErrNotEnoughProof)

	runHub(t, configPath, "proofs", "add", writer.Address(), "github", "someone")

	results, err := writer.Upload(ctx, clientcli.UploadOptions{LocalPath: local, RemotePath: "gated.txt"})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	listed := runHub(t, configPath, "proofs", "list", "--prefix", writer.Address())
	assert.Contains(t, listed, "github")
	assert.Contains(t, listed, "twitter")

	runHub(t, configPath, "proofs", "remove", "--all", writer.Address())

	_, err = writer.Upload(ctx, clientcli.UploadOptions{LocalPath: local, RemotePath: "gated.txt"})
	require.ErrorIs(t, err, clientcli.ErrNotEnoughProof)
}

func TestE2E_Whitelist(t *testing.T) {
	key, err := clientcli.GenerateKey("ed25519")
	require.NoError(t, err)

	baseURL, _ := startHub(t, HubConfig{
		Port:      getOpenPort(t),
		DBType:    "sqlite",
		DBDSN:     filepath.Join(t.TempDir(), "hub.db"),
		DataPath:  t.TempDir(),
		Whitelist: []string{key.Address},
	})
	ctx := context.Background()
	local := writeLocal(t, "w.txt", "whitelisted")

	allowed, err := clientcli.New(&clientcli.Config{Endpoint: baseURL, PrivateKey: key.PrivateKey})
	require.NoError(t, err)
	_, err = allowed.Upload(ctx, clientcli.UploadOptions{LocalPath: local, RemotePath: "w.txt"})
	require.NoError(t, err)

	stranger := newWriter(t, baseURL, "ed25519")
	_, err = stranger.Upload(ctx, clientcli.UploadOptions{LocalPath: local, RemotePath: "w.txt"})
	require.ErrorIs(t, err, clientcli.ErrUnauthorized)
}

func TestE2E_UploadTooLarge(t *testing.T) {
	baseURL, _ := startHub(t, HubConfig{
		Port:      getOpenPort(t),
		DBType:    "sqlite",
		DBDSN:     filepath.Join(t.TempDir(), "hub.db"),
		DataPath:  t.TempDir(),
		MaxUpload: 8,
	})

	writer := newWriter(t, baseURL, "ed25519")
	_, err := writer.Upload(context.Background(), clientcli.UploadOptions{
		LocalPath:  writeLocal(t, "big.txt", "more than eight bytes"),
		RemotePath: "big.txt",
	})
	require.ErrorIs(t, err, clientcli.ErrTooLarge)
}
