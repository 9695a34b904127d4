package clientcli_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/auth"
	"github.com/sagarc03/hubstore/clientcli"
	"github.com/sagarc03/hubstore/driver/memory"
	hubhttp "github.com/sagarc03/hubstore/http"
	"github.com/sagarc03/hubstore/proofs"
)

type hubOptions struct {
	minProofs int
	source    proofs.StaticSource
	whitelist []string
	maxUpload int64
}

type testHub struct {
	server       *httptest.Server
	infoRequests atomic.Int32
}

func newTestHub(t *testing.T, opts hubOptions) *testHub {
	t.Helper()

	verifier, err := auth.NewVerifier(auth.Config{ChallengeText: auth.ChallengeText("hub.test")})
	require.NoError(t, err)

	checker, err := proofs.NewChecker(proofs.Policy{Enabled: opts.minProofs > 0, MinProofs: opts.minProofs}, opts.source)
	require.NoError(t, err)

	hub, err := hubstore.NewHubServer(memory.New("https://read.hub.test/", 2), verifier, checker,
		hubstore.HubConfig{Whitelist: opts.whitelist})
	require.NoError(t, err)

	maxUpload := opts.maxUpload
	if maxUpload == 0 {
		maxUpload = 1 << 20
	}
	router := hubhttp.NewHandler(&hubhttp.HandlerConfig{MaxUploadSize: maxUpload}, hub).Router()

	th := &testHub{}
	th.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/hub_info" {
			th.infoRequests.Add(1)
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(th.server.Close)
	return th
}

func newKey(t *testing.T, keyType string) *clientcli.KeyInfo {
	t.Helper()
	key, err := clientcli.GenerateKey(keyType)
	require.NoError(t, err)
	return key
}

func newClient(t *testing.T, endpoint string, key *clientcli.KeyInfo, opts ...clientcli.Option) *clientcli.Client {
	t.Helper()
	cfg := &clientcli.Config{Endpoint: endpoint}
	if key != nil {
		cfg.PrivateKey = key.PrivateKey
	}
	client, err := clientcli.New(cfg, opts...)
	require.NoError(t, err)
	return client
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := clientcli.New(nil)
		require.ErrorIs(t, err, clientcli.ErrConfigRequired)
	})

	t.Run("without key", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)
		assert.Empty(t, client.Address())
	})

	t.Run("with key", func(t *testing.T) {
		key := newKey(t, "ed25519")
		client, err := clientcli.New(&clientcli.Config{Endpoint: "http://localhost:3000/", PrivateKey: key.PrivateKey})
		require.NoError(t, err)
		assert.Equal(t, key.Address, client.Address())
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := clientcli.New(&clientcli.Config{PrivateKey: "ed25519:not-base64!"})
		require.Error(t, err)
	})
}

func TestClient_HubInfo(t *testing.T) {
	hub := newTestHub(t, hubOptions{})
	client := newClient(t, hub.server.URL, nil)

	info, err := client.HubInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, auth.ChallengeText("hub.test"), info.ChallengeText)
	assert.Equal(t, "v2", info.LatestAuthVersion)
	assert.Equal(t, "https://read.hub.test/", info.ReadURLPrefix)

	_, err = client.HubInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hub.infoRequests.Load())
}

func TestClient_UploadListRead(t *testing.T) {
	for _, keyType := range []string{"ed25519", "dilithium3"} {
		t.Run(keyType, func(t *testing.T) {
			hub := newTestHub(t, hubOptions{})
			key := newKey(t, keyType)
			client := newClient(t, hub.server.URL, key)
			ctx := context.Background()

			dir := t.TempDir()
			single := filepath.Join(dir, "note.txt")
			writeFile(t, single, "hello hub")

			results, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: single, RemotePath: "docs/note.txt"})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "docs/note.txt", results[0].RemotePath)
			assert.Equal(t, "https://read.hub.test/"+key.Address+"/docs/note.txt", results[0].PublicURL)
			assert.Equal(t, int64(9), results[0].Size)
			assert.Equal(t, "text/plain; charset=utf-8", results[0].ContentType)

			tree := filepath.Join(dir, "site")
			writeFile(t, filepath.Join(tree, "index.html"), "<html></html>")
			writeFile(t, filepath.Join(tree, "css", "main.css"), "body{}")

			results, err = client.Upload(ctx, clientcli.UploadOptions{LocalPath: tree, RemotePath: "site/", Recursive: true})
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.False(t, clientcli.HasUploadErrors(results))

			all, err := client.List(ctx, clientcli.ListOptions{All: true})
			require.NoError(t, err)
			sort.Strings(all.Entries)
			assert.Equal(t, []string{"docs/note.txt", "site/css/main.css", "site/index.html"}, all.Entries)
			assert.Empty(t, all.NextPage)

			first, err := client.List(ctx, clientcli.ListOptions{})
			require.NoError(t, err)
			assert.Len(t, first.Entries, 2)
			require.NotEmpty(t, first.NextPage)

			rest, err := client.List(ctx, clientcli.ListOptions{Page: first.NextPage})
			require.NoError(t, err)
			assert.Len(t, rest.Entries, 1)
			assert.Empty(t, rest.NextPage)

			out := filepath.Join(dir, "out", "copy.txt")
			res, body, err := client.Read(ctx, clientcli.ReadOptions{RemotePath: "docs/note.txt", LocalPath: out})
			require.NoError(t, err)
			assert.Nil(t, body)
			assert.Equal(t, int64(9), res.Size)
			assert.NotEmpty(t, res.ETag)
			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, "hello hub", string(data))

			reader := newClient(t, hub.server.URL, nil)
			res, body, err = reader.Read(ctx, clientcli.ReadOptions{Address: key.Address, RemotePath: "site/css/main.css", LocalPath: "-"})
			require.NoError(t, err)
			require.NotNil(t, body)
			defer func() { _ = body.Close() }()
			data, err = io.ReadAll(body)
			require.NoError(t, err)
			assert.Equal(t, "body{}", string(data))
			assert.Equal(t, "-", res.LocalPath)
		})
	}
}

func TestClient_UploadEscapesPath(t *testing.T) {
	hub := newTestHub(t, hubOptions{})
	key := newKey(t, "ed25519")
	client := newClient(t, hub.server.URL, key)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, local, "x")

	_, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: local, RemotePath: "100%/café.txt"})
	require.NoError(t, err)

	list, err := client.List(ctx, clientcli.ListOptions{All: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"100%/café.txt"}, list.Entries)
}

func TestClient_TokenVersionV1(t *testing.T) {
	hub := newTestHub(t, hubOptions{})
	key := newKey(t, "ed25519")
	client := newClient(t, hub.server.URL, key, clientcli.WithTokenVersion(auth.V1))

	local := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, local, "x")

	_, err := client.Upload(context.Background(), clientcli.UploadOptions{LocalPath: local, RemotePath: "a.txt"})
	require.NoError(t, err)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	local := filepath.Join(t.TempDir(), "a.txt")
	writeFile(t, local, "0123456789")

	t.Run("upload without key", func(t *testing.T) {
		hub := newTestHub(t, hubOptions{})
		client := newClient(t, hub.server.URL, nil)
		_, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: local})
		require.ErrorIs(t, err, clientcli.ErrPrivateKeyRequired)
	})

	t.Run("empty local path", func(t *testing.T) {
		client := newClient(t, "http://127.0.0.1:1", newKey(t, "ed25519"))
		_, err := client.Upload(ctx, clientcli.UploadOptions{})
		require.ErrorIs(t, err, clientcli.ErrEmptyPath)
	})

	t.Run("not enough proofs", func(t *testing.T) {
		hub := newTestHub(t, hubOptions{minProofs: 1, source: proofs.StaticSource{}})
		client := newClient(t, hub.server.URL, newKey(t, "ed25519"))
		_, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: local, RemotePath: "a.txt"})
		require.ErrorIs(t, err, clientcli.ErrNotEnoughProof)
	})

	t.Run("not whitelisted", func(t *testing.T) {
		allowed := newKey(t, "ed25519")
		hub := newTestHub(t, hubOptions{whitelist: []string{allowed.Address}})
		client := newClient(t, hub.server.URL, newKey(t, "ed25519"))
		_, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: local, RemotePath: "a.txt"})
		require.ErrorIs(t, err, clientcli.ErrUnauthorized)

		var apiErr *clientcli.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "Failed to validate authentication token", apiErr.Message)
	})

	t.Run("too large", func(t *testing.T) {
		hub := newTestHub(t, hubOptions{maxUpload: 4})
		client := newClient(t, hub.server.URL, newKey(t, "ed25519"))
		_, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: local, RemotePath: "a.txt"})
		require.ErrorIs(t, err, clientcli.ErrTooLarge)
	})

	t.Run("read missing object", func(t *testing.T) {
		hub := newTestHub(t, hubOptions{})
		client := newClient(t, hub.server.URL, newKey(t, "ed25519"))
		_, _, err := client.Read(ctx, clientcli.ReadOptions{RemotePath: "missing.txt", LocalPath: "-"})
		require.ErrorIs(t, err, clientcli.ErrNotFound)
	})

	t.Run("read without address", func(t *testing.T) {
		client := newClient(t, "http://127.0.0.1:1", nil)
		_, _, err := client.Read(ctx, clientcli.ReadOptions{RemotePath: "a.txt"})
		require.ErrorIs(t, err, clientcli.ErrPrivateKeyRequired)
	})
}

func TestAPIError(t *testing.T) {
	err := &clientcli.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	assert.ErrorIs(t, err, clientcli.ErrNotFound)
	assert.NotErrorIs(t, err, clientcli.ErrUnauthorized)
	assert.Equal(t, "hub error: 404 - Not Found", err.Error())
}

func TestGenerateKey(t *testing.T) {
	tests := []struct {
		keyType string
		alg     string
	}{
		{"", "EdDSA"},
		{"ed25519", "EdDSA"},
		{"Dilithium3", "Dilithium3"},
	}

	for _, tt := range tests {
		t.Run(tt.keyType, func(t *testing.T) {
			key, err := clientcli.GenerateKey(tt.keyType)
			require.NoError(t, err)
			assert.Equal(t, tt.alg, key.Algorithm)
			assert.True(t, hubstore.IsValidAddress(key.Address))
			assert.NotEmpty(t, key.PrivateKey)

			described, err := clientcli.DescribeKey(key.PrivateKey)
			require.NoError(t, err)
			assert.Equal(t, key.Address, described.Address)
			assert.Equal(t, key.PublicKey, described.PublicKey)
			assert.Empty(t, described.PrivateKey)
		})
	}

	_, err := clientcli.GenerateKey("rsa")
	require.ErrorIs(t, err, clientcli.ErrUnknownKeyType)
}

func TestNormalizeLocalToRemotePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple file", "file.txt", "file.txt"},
		{"with leading dot slash", "./file.txt", "file.txt"},
		{"absolute path", "/abs/path/file.txt", "abs/path/file.txt"},
		{"parent traversal", "../sibling/file.txt", "sibling/file.txt"},
		{"multiple parent traversal", "../../other/file.txt", "other/file.txt"},
		{"mixed traversal", "./foo/../bar/file.txt", "bar/file.txt"},
		{"just dot", ".", ""},
		{"just double dot", "..", ""},
		{"trailing slash directory", "./images/", "images"},
		{"current dir reference", "./foo/./bar/file.txt", "foo/bar/file.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clientcli.NormalizeLocalToRemotePath(tt.input))
		})
	}
}
