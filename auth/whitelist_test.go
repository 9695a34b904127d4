package auth_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whitelist.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWhitelist(t *testing.T) {
	t.Parallel()

	t.Run("empty config", func(t *testing.T) {
		t.Parallel()
		addrs, err := auth.LoadWhitelist(auth.WhitelistConfig{})
		require.NoError(t, err)
		assert.Empty(t, addrs)
	})

	t.Run("merges inline and file, deduplicated and sorted", func(t *testing.T) {
		t.Parallel()
		path := writeTestFile(t, `["zzz999", "abc123"]`)

		addrs, err := auth.LoadWhitelist(auth.WhitelistConfig{
			Inline: []string{"abc123", "mmm555", ""},
			File:   path,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"abc123", "mmm555", "zzz999"}, addrs)
	})

	t.Run("invalid inline address", func(t *testing.T) {
		t.Parallel()
		_, err := auth.LoadWhitelist(auth.WhitelistConfig{Inline: []string{"not/valid"}})
		assert.ErrorIs(t, err, hubstore.ErrConfig)
	})

	t.Run("invalid file address", func(t *testing.T) {
		t.Parallel()
		path := writeTestFile(t, `["ok1", "bad address"]`)
		_, err := auth.LoadWhitelist(auth.WhitelistConfig{File: path})
		assert.ErrorIs(t, err, hubstore.ErrConfig)
	})
}

func TestLoadWhitelistFile(t *testing.T) {
	t.Parallel()

	t.Run("file not found", func(t *testing.T) {
		t.Parallel()
		_, err := auth.LoadWhitelistFile("/nonexistent/path/whitelist.json")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "read whitelist file")
	})

	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "this is not json"},
		{name: "object instead of array", content: `{"address": "abc"}`},
		{name: "malformed json", content: `["abc"`},
		{name: "array of numbers", content: `[1, 2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeTestFile(t, tt.content)
			_, err := auth.LoadWhitelistFile(path)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "parse whitelist file")
		})
	}
}
