package outbox

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Backend type names accepted by Config.Type.
const (
	TypeMemory = "memory"
	TypePebble = "pebble"
	TypeSQLite = "sqlite"
)

// Config selects and locates the outbox backend.
type Config struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
}

// OpenBackend opens the configured backend without any fallback.
func OpenBackend(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case TypeMemory, "":
		return NewMemoryStore(), nil
	case TypePebble:
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for pebble outbox")
		}
		return OpenPebble(cfg.Path, nil)
	case TypeSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite outbox")
		}
		path := cfg.Path
		if path != ":memory:" && filepath.Ext(path) == "" {
			path = filepath.Join(path, "outbox.db")
		}
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown outbox type: %s", cfg.Type)
	}
}

// Open opens the configured backend wrapped in a Guarded store. When the backend
// cannot be opened the client runs on a MemoryStore for this session and offline
// replay across restarts is unavailable.
func Open(cfg Config) *Guarded {
	store, err := OpenBackend(cfg)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Open",
			"type":     cfg.Type,
			"path":     cfg.Path,
			"error":    err.Error(),
		}).Warn("Outbox unavailable, falling back to in-memory storage")
		store = NewMemoryStore()
	}
	return NewGuarded(store)
}
