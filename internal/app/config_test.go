package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/lodestone/internal/persist"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Equal(t, "none", cfg.LogExporter)
	assert.Equal(t, "127.0.0.1:4100", cfg.Host.Address())
	assert.Equal(t, "http://127.0.0.1:4100", cfg.Remote.BaseURL)
	assert.Equal(t, CredentialStorageFile, cfg.Host.Credentials)
	assert.Equal(t, "lodestone", filepath.Base(cfg.Host.DataDir))
	assert.Equal(t, persist.DefaultSaveTimeout, cfg.Persist.SaveTimeout)
	assert.Equal(t, persist.DefaultFlushInterval, cfg.Persist.FlushInterval)
	assert.Equal(t, DefaultConfigShutdownTimeout, cfg.Shutdown.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_RemoteFollowsHost(t *testing.T) {
	cfg := &Config{Host: HostConfig{Host: "localhost", Port: 8123}}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, "http://localhost:8123", cfg.Remote.BaseURL)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Remote:  RemoteConfig{BaseURL: "https://store.example.com", Timeout: time.Second},
		Persist: PersistConfig{SaveTimeout: 2 * time.Second, FlushInterval: time.Minute},
	}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, "https://store.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Persist.SaveTimeout)
	assert.Equal(t, time.Minute, cfg.Persist.FlushInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"bad exporter", func(c *Config) { c.LogExporter = "zipkin" }, true},
		{"bad otlp endpoint", func(c *Config) { c.OTLPEndpoint = "::" }, true},
		{"bad credentials storage", func(c *Config) { c.Host.Credentials = "env" }, true},
		{"keyring without user", func(c *Config) {
			c.Host.Credentials = CredentialStorageKeyring
			c.Host.KeyringUser = ""
		}, true},
		{"keyring with user", func(c *Config) {
			c.Host.Credentials = CredentialStorageKeyring
			c.Host.KeyringUser = "alice"
		}, false},
		{"bad remote url", func(c *Config) { c.Remote.BaseURL = "not a url" }, true},
		{"missing client id", func(c *Config) { c.Identity.ClientID = "" }, true},
		{"negative save timeout", func(c *Config) { c.Persist.SaveTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHostConfig_Documents(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	cfg.Host.DataDir = t.TempDir()

	docs, err := cfg.Host.Documents()
	require.NoError(t, err)
	assert.NotNil(t, docs.Config)
	assert.NotNil(t, docs.PluginConfig)
	assert.NotNil(t, docs.Credentials)
}
