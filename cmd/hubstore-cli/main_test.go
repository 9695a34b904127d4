package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/hubstore/clientcli"
)

func resetFlags(t *testing.T) {
	t.Helper()
	cfgFile, profile, endpoint, privateKey = "", "", "", ""
	t.Setenv("HUBSTORE_CONFIG", "")
	t.Setenv("HUBSTORE_PROFILE", "")
	t.Setenv("HUBSTORE_ENDPOINT", "")
	t.Setenv("HUBSTORE_PRIVATE_KEY", "")
	t.Setenv("HOME", t.TempDir())
}

func writeProfiles(t *testing.T, profiles ...clientcli.Profile) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	file := &clientcli.ConfigFile{Profiles: profiles}
	require.NoError(t, file.Save(path))
	return path
}

func TestBuildConfig(t *testing.T) {
	key, err := clientcli.GenerateKey("ed25519")
	require.NoError(t, err)

	t.Run("defaults without config file", func(t *testing.T) {
		resetFlags(t)

		cfg, err := buildConfig()
		require.NoError(t, err)
		assert.Equal(t, clientcli.DefaultEndpoint, cfg.Endpoint)
		assert.Empty(t, cfg.PrivateKey)
	})

	t.Run("default profile", func(t *testing.T) {
		resetFlags(t)
		cfgFile = writeProfiles(t,
			clientcli.Profile{Name: "local", Endpoint: "http://localhost:3000"},
			clientcli.Profile{Name: "prod", Endpoint: "https://hub.example.com", PrivateKey: key.PrivateKey, Default: true},
		)

		cfg, err := buildConfig()
		require.NoError(t, err)
		assert.Equal(t, "https://hub.example.com", cfg.Endpoint)
		assert.Equal(t, key.PrivateKey, cfg.PrivateKey)
	})

	t.Run("profile from env", func(t *testing.T) {
		resetFlags(t)
		t.Setenv("HUBSTORE_CONFIG", writeProfiles(t,
			clientcli.Profile{Name: "local", Endpoint: "http://localhost:3000", Default: true},
			clientcli.Profile{Name: "staging", Endpoint: "https://staging.example.com"},
		))
		t.Setenv("HUBSTORE_PROFILE", "staging")

		cfg, err := buildConfig()
		require.NoError(t, err)
		assert.Equal(t, "https://staging.example.com", cfg.Endpoint)
	})

	t.Run("flags override env and profile", func(t *testing.T) {
		resetFlags(t)
		cfgFile = writeProfiles(t, clientcli.Profile{Name: "local", Endpoint: "http://localhost:3000"})
		t.Setenv("HUBSTORE_ENDPOINT", "http://env:3000")
		endpoint = "http://flag:3000"

		cfg, err := buildConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://flag:3000", cfg.Endpoint)
	})

	t.Run("unknown profile", func(t *testing.T) {
		resetFlags(t)
		cfgFile = writeProfiles(t, clientcli.Profile{Name: "local", Endpoint: "http://localhost:3000"})
		profile = "missing"

		_, err := buildConfig()
		require.ErrorIs(t, err, clientcli.ErrProfileNotFound)
	})

	t.Run("explicit config file missing", func(t *testing.T) {
		resetFlags(t)
		cfgFile = filepath.Join(t.TempDir(), "nope.yaml")

		_, err := buildConfig()
		require.Error(t, err)
	})
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"http://localhost:3000", false},
		{"https://hub.example.com", false},
		{"", true},
		{"ftp://hub.example.com", true},
		{"localhost:3000", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := validateEndpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
