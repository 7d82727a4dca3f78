package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/hub"
	"github.com/opd-ai/relaysync/limits"
	"github.com/opd-ai/relaysync/messaging"
	"github.com/opd-ai/relaysync/outbox"
	"github.com/opd-ai/relaysync/presence"
)

// ErrNoClientID is returned by Validate when a client config lacks an identity.
var ErrNoClientID = errors.New("client_id not set; run `relaychat config init`")

// Config is the root of a relaysync config file.
type Config struct {
	LogLevel string        `toml:"log_level"`
	Client   ClientConfig  `toml:"client"`
	Outbox   outbox.Config `toml:"outbox"`
	Server   ServerConfig  `toml:"server"`
}

// ClientConfig holds settings for relaychat.
type ClientConfig struct {
	ClientID       string   `toml:"client_id"`
	DisplayName    string   `toml:"display_name"`
	ServerURL      string   `toml:"server_url"`
	TypingDebounce Duration `toml:"typing_debounce"`
}

// ServerConfig holds settings for relayd.
type ServerConfig struct {
	Listen       string  `toml:"listen"`
	HistoryLimit int     `toml:"history_limit"`
	RateLimit    float64 `toml:"rate_limit"`
	RateBurst    int     `toml:"rate_burst"`
	SendBuffer   int     `toml:"send_buffer"`
}

// Hub converts the server table into hub settings.
func (s ServerConfig) Hub() hub.Config {
	return hub.Config{
		HistoryLimit: s.HistoryLimit,
		RateLimit:    s.RateLimit,
		RateBurst:    s.RateBurst,
		SendBuffer:   s.SendBuffer,
	}
}

// Duration is a time.Duration written as a string such as "1.5s".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns a config with every setting at its default. dataDir holds
// the outbox; an empty dataDir selects the in-memory outbox.
func Default(dataDir string) *Config {
	h := hub.DefaultConfig()
	cfg := &Config{
		LogLevel: "info",
		Client: ClientConfig{
			ServerURL:      "ws://localhost:3000/ws",
			TypingDebounce: Duration(presence.DefaultDebounce),
		},
		Outbox: outbox.Config{Type: outbox.TypeMemory},
		Server: ServerConfig{
			Listen:       ":3000",
			HistoryLimit: h.HistoryLimit,
			RateLimit:    h.RateLimit,
			RateBurst:    h.RateBurst,
			SendBuffer:   h.SendBuffer,
		},
	}
	if dataDir != "" {
		cfg.Outbox = outbox.Config{Type: outbox.TypePebble, Path: filepath.Join(dataDir, "outbox")}
	}
	return cfg
}

// NewClientConfig returns defaults with a freshly generated client identity.
func NewClientConfig(dataDir, displayName string) *Config {
	cfg := Default(dataDir)
	cfg.Client.ClientID = messaging.NewClientID()
	cfg.Client.DisplayName = displayName
	return cfg
}

// DefaultPath is where the binaries look for a config file when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "relaysync.toml"
	}
	return filepath.Join(dir, "relaysync", "config.toml")
}

// DefaultDataDir is where the outbox lives by default.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "relaysync")
}

// ValidateClient checks the client section. Servers do not need it.
func (c *Config) ValidateClient() error {
	if c.Client.ClientID == "" {
		return ErrNoClientID
	}
	if err := limits.ValidateIdentifier(c.Client.ClientID); err != nil {
		return fmt.Errorf("client_id: %w", err)
	}
	if c.Client.DisplayName != "" {
		if err := limits.ValidateDisplayName(c.Client.DisplayName); err != nil {
			return fmt.Errorf("display_name: %w", err)
		}
	}
	u, err := url.Parse(c.Client.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server_url: scheme must be ws or wss, got %q", u.Scheme)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r on top of the defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default("")
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes cfg to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file, since
// that would discard the client identity.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// Load reads path, or the defaults when path does not exist, then applies
// .env files and RELAY_* overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"error":    err.Error(),
		}).Warn("Failed to load .env file")
	}

	cfg, err := ReadFromFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		logrus.WithFields(logrus.Fields{
			"function": "Load",
			"path":     path,
		}).Debug("No config file, using defaults")
		cfg = Default(DefaultDataDir())
	default:
		return nil, err
	}

	ApplyEnvironment(cfg)
	return cfg, nil
}
