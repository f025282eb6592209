package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/lodestone/internal/docstore"
	"github.com/florianilch/lodestone/internal/host"
	"github.com/florianilch/lodestone/internal/observability"
	"github.com/florianilch/lodestone/internal/persist"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// CredentialStorageType represents where the host keeps the credentials document.
type CredentialStorageType string

const (
	CredentialStorageFile    CredentialStorageType = "file"
	CredentialStorageKeyring CredentialStorageType = "keyring"
)

// keyringService names the keyring entry holding the credentials document.
const keyringService = "lodestone-credentials"

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigLogExporter     = observability.ExporterNone
	DefaultConfigHostHost        = "127.0.0.1"
	DefaultConfigHostPort        = 4100
	DefaultConfigCredentials     = CredentialStorageFile
	DefaultConfigRemoteTimeout   = 30 * time.Second
	DefaultConfigShutdownTimeout = 5 * time.Second

	DefaultConfigIdentityClientID    = "com_jagex_auth_desktop_launcher"
	DefaultConfigIdentityTokenURL    = "https://account.jagex.com/oauth2/token"
	DefaultConfigIdentityRevokeURL   = "https://account.jagex.com/oauth2/revoke"
	DefaultConfigIdentityProfileURL  = "https://api.jagex.com/v1"
	DefaultConfigIdentityAccountsURL = "https://auth.jagex.com/game-session/v1/accounts"
	DefaultConfigIdentityTimeout     = 15 * time.Second
)

// HostConfig holds the backing store server configuration.
type HostConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type

	// DataDir receives config.json, plugin_config.json and credentials.json.
	DataDir     string                `json:"data_dir" validate:"required"`
	Credentials CredentialStorageType `json:"credentials" validate:"required,oneof=file keyring"`
	KeyringUser string                `json:"keyring_user,omitempty"`

	// JarFile is answered by the jar file picker endpoint. Empty means no selection.
	JarFile string `json:"jar_file,omitempty"`
}

// Address returns the host:port the server listens on.
func (h HostConfig) Address() string {
	return h.Host + ":" + strconv.FormatUint(uint64(h.Port), 10)
}

// BaseURL returns the URL clients use to reach the server.
func (h HostConfig) BaseURL() string {
	return "http://" + h.Address()
}

// Documents opens the stores backing each persisted document.
func (h HostConfig) Documents() (host.Documents, error) {
	configStore, err := docstore.NewFileStore(filepath.Join(h.DataDir, "config.json"))
	if err != nil {
		return host.Documents{}, fmt.Errorf("config store: %w", err)
	}
	pluginStore, err := docstore.NewFileStore(filepath.Join(h.DataDir, "plugin_config.json"))
	if err != nil {
		return host.Documents{}, fmt.Errorf("plugin config store: %w", err)
	}

	var credentials docstore.Store
	switch h.Credentials {
	case CredentialStorageFile:
		credentials, err = docstore.NewFileStore(filepath.Join(h.DataDir, "credentials.json"))
	case CredentialStorageKeyring:
		credentials, err = docstore.NewKeyringStore(keyringService, h.KeyringUser)
	default:
		err = fmt.Errorf("unsupported storage type: %s", h.Credentials)
	}
	if err != nil {
		return host.Documents{}, fmt.Errorf("credentials store: %w", err)
	}

	return host.Documents{
		Config:       configStore,
		PluginConfig: pluginStore,
		Credentials:  credentials,
	}, nil
}

// RemoteConfig holds the client side of the persistence endpoint.
type RemoteConfig struct {
	// BaseURL defaults to the local host server.
	BaseURL string        `json:"base_url" validate:"required,url"`
	Timeout time.Duration `json:"timeout"`
}

// IdentityConfig holds the identity provider endpoints.
type IdentityConfig struct {
	ClientID    string        `json:"client_id" validate:"required"`
	TokenURL    string        `json:"token_url" validate:"required,url"`
	RevokeURL   string        `json:"revoke_url" validate:"required,url"`
	ProfileURL  string        `json:"profile_url" validate:"required,url"`
	AccountsURL string        `json:"accounts_url" validate:"required,url"`
	Timeout     time.Duration `json:"timeout"`
}

// PersistConfig holds document saving behavior.
type PersistConfig struct {
	SaveTimeout   time.Duration `json:"save_timeout"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel     slog.Level     `json:"log_level"`
	LogFormat    LogFormat      `json:"log_format" validate:"oneof=text json"`
	LogExporter  string         `json:"log_exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
	OTLPEndpoint string         `json:"otlp_endpoint,omitempty" validate:"omitempty,url"`
	Host         HostConfig     `json:"host"`
	Remote       RemoteConfig   `json:"remote"`
	Identity     IdentityConfig `json:"identity"`
	Persist      PersistConfig  `json:"persist"`
	Shutdown     ShutdownConfig `json:"shutdown"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}

	if c.Host.Host == "" {
		c.Host.Host = DefaultConfigHostHost
	}
	if c.Host.Port == 0 {
		c.Host.Port = DefaultConfigHostPort
	}
	if c.Host.Credentials == "" {
		c.Host.Credentials = DefaultConfigCredentials
	}
	if c.Host.DataDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("host.data_dir required (auto-detect failed: %w)", err)
		}
		c.Host.DataDir = filepath.Join(configDir, "lodestone")
	}
	if c.Host.Credentials == CredentialStorageKeyring && c.Host.KeyringUser == "" {
		currentUser, err := user.Current()
		if err != nil {
			return fmt.Errorf("host.keyring_user required (auto-detect failed: %w)", err)
		}
		c.Host.KeyringUser = currentUser.Username
	}

	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = c.Host.BaseURL()
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = DefaultConfigRemoteTimeout
	}

	if c.Identity.ClientID == "" {
		c.Identity.ClientID = DefaultConfigIdentityClientID
	}
	if c.Identity.TokenURL == "" {
		c.Identity.TokenURL = DefaultConfigIdentityTokenURL
	}
	if c.Identity.RevokeURL == "" {
		c.Identity.RevokeURL = DefaultConfigIdentityRevokeURL
	}
	if c.Identity.ProfileURL == "" {
		c.Identity.ProfileURL = DefaultConfigIdentityProfileURL
	}
	if c.Identity.AccountsURL == "" {
		c.Identity.AccountsURL = DefaultConfigIdentityAccountsURL
	}
	if c.Identity.Timeout == 0 {
		c.Identity.Timeout = DefaultConfigIdentityTimeout
	}

	if c.Persist.SaveTimeout == 0 {
		c.Persist.SaveTimeout = persist.DefaultSaveTimeout
	}
	if c.Persist.FlushInterval == 0 {
		c.Persist.FlushInterval = persist.DefaultFlushInterval
	}

	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Host.Credentials == CredentialStorageKeyring && c.Host.KeyringUser == "" {
		return errors.New("keyring_user required for keyring storage")
	}
	if c.Persist.SaveTimeout < 0 || c.Persist.FlushInterval < 0 {
		return errors.New("persist durations must be positive")
	}

	return nil
}
