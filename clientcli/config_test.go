package clientcli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/hubstore/clientcli"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := &clientcli.Config{}
	withDefaults := cfg.WithDefaults()
	assert.Equal(t, clientcli.DefaultEndpoint, withDefaults.Endpoint)
	assert.Empty(t, cfg.Endpoint, "original must not be mutated")

	cfg = &clientcli.Config{Endpoint: "https://hub.example.com"}
	assert.Equal(t, "https://hub.example.com", cfg.WithDefaults().Endpoint)
}

func TestConfig_ValidateWithAuth(t *testing.T) {
	require.ErrorIs(t, (&clientcli.Config{}).ValidateWithAuth(), clientcli.ErrPrivateKeyRequired)
	require.NoError(t, (&clientcli.Config{PrivateKey: "ed25519:AAAA"}).ValidateWithAuth())
}

func TestConfigFile_Profiles(t *testing.T) {
	var cf clientcli.ConfigFile

	_, err := cf.GetProfile("")
	require.ErrorIs(t, err, clientcli.ErrNoProfiles)

	require.NoError(t, cf.AddProfile(clientcli.Profile{Name: "local", Endpoint: "http://localhost:3000"}))
	require.NoError(t, cf.AddProfile(clientcli.Profile{Name: "prod", Endpoint: "https://hub.example.com"}))
	require.ErrorIs(t, cf.AddProfile(clientcli.Profile{Name: "local"}), clientcli.ErrProfileExists)

	p, err := cf.GetProfile("")
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name, "first profile is the default when none is marked")

	require.NoError(t, cf.SetDefault("prod"))
	p, err = cf.GetDefaultProfile()
	require.NoError(t, err)
	assert.Equal(t, "prod", p.Name)
	require.ErrorIs(t, cf.SetDefault("missing"), clientcli.ErrProfileNotFound)

	require.NoError(t, cf.UpdateProfile(clientcli.Profile{Name: "local", Endpoint: "http://127.0.0.1:3000"}))
	p, err = cf.GetProfile("local")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:3000", p.Endpoint)
	require.ErrorIs(t, cf.UpdateProfile(clientcli.Profile{Name: "missing"}), clientcli.ErrProfileNotFound)

	assert.Equal(t, []string{"local", "prod"}, cf.ProfileNames())

	require.NoError(t, cf.RemoveProfile("local"))
	require.ErrorIs(t, cf.RemoveProfile("local"), clientcli.ErrProfileNotFound)
	_, err = cf.GetProfile("local")
	require.ErrorIs(t, err, clientcli.ErrProfileNotFound)
}

func TestConfigFile_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	key := newKey(t, "ed25519")

	cf := &clientcli.ConfigFile{Profiles: []clientcli.Profile{
		{Name: "local", Endpoint: "http://localhost:3000", PrivateKey: key.PrivateKey, Default: true},
	}}
	require.NoError(t, cf.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := clientcli.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, cf, loaded)

	t.Run("file not found", func(t *testing.T) {
		_, err := clientcli.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(bad, []byte(`profiles: [yaml: content`), 0o600))
		_, err := clientcli.LoadConfigFile(bad)
		assert.Error(t, err)
	})
}

func TestConfigFromProfile(t *testing.T) {
	assert.Equal(t, &clientcli.Config{}, clientcli.ConfigFromProfile(nil))
	assert.Equal(t,
		&clientcli.Config{Endpoint: "http://a.com", PrivateKey: "k"},
		clientcli.ConfigFromProfile(&clientcli.Profile{Name: "a", Endpoint: "http://a.com", PrivateKey: "k"}),
	)
}

func TestMergeConfig(t *testing.T) {
	tests := []struct {
		name     string
		configs  []*clientcli.Config
		expected *clientcli.Config
	}{
		{
			name:     "empty configs",
			configs:  []*clientcli.Config{},
			expected: &clientcli.Config{},
		},
		{
			name: "later config overrides",
			configs: []*clientcli.Config{
				{Endpoint: "http://a.com", PrivateKey: "key1"},
				{Endpoint: "http://b.com"},
			},
			expected: &clientcli.Config{Endpoint: "http://b.com", PrivateKey: "key1"},
		},
		{
			name: "empty strings do not override",
			configs: []*clientcli.Config{
				{Endpoint: "http://a.com", PrivateKey: "key1"},
				{},
			},
			expected: &clientcli.Config{Endpoint: "http://a.com", PrivateKey: "key1"},
		},
		{
			name: "nil config is skipped",
			configs: []*clientcli.Config{
				{Endpoint: "http://a.com"},
				nil,
				{PrivateKey: "key2"},
			},
			expected: &clientcli.Config{Endpoint: "http://a.com", PrivateKey: "key2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clientcli.MergeConfig(tt.configs...))
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("HUBSTORE_ENDPOINT", "http://test.example.com")
	t.Setenv("HUBSTORE_PRIVATE_KEY", "ed25519:env")
	t.Setenv("HUBSTORE_PROFILE", "staging")
	t.Setenv("HUBSTORE_CONFIG", "/etc/hubstore/client.yaml")

	cfg := clientcli.ConfigFromEnv()
	assert.Equal(t, "http://test.example.com", cfg.Endpoint)
	assert.Equal(t, "ed25519:env", cfg.PrivateKey)
	assert.Equal(t, "staging", clientcli.ProfileFromEnv())
	assert.Equal(t, "/etc/hubstore/client.yaml", clientcli.ConfigPathFromEnv())
}
