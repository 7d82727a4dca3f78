package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/outbox"
)

// Environment variables consulted by ApplyEnvironment.
const (
	EnvListen       = "RELAY_LISTEN"
	EnvPort         = "PORT"
	EnvServerURL    = "RELAY_SERVER_URL"
	EnvLogLevel     = "RELAY_LOG_LEVEL"
	EnvOutboxType   = "RELAY_OUTBOX_TYPE"
	EnvOutboxPath   = "RELAY_OUTBOX_PATH"
	EnvHistoryLimit = "RELAY_HISTORY_LIMIT"
)

// MaxHistoryLimit bounds RELAY_HISTORY_LIMIT.
const MaxHistoryLimit = 1_000_000

// ApplyEnvironment overrides cfg from RELAY_* variables. Invalid values are
// logged and ignored.
func ApplyEnvironment(cfg *Config) {
	parseListenSetting(cfg)
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.Client.ServerURL = v
	}
	parseLogLevelSetting(cfg)
	parseOutboxSetting(cfg)
	parseHistoryLimitSetting(cfg)
}

// parseListenSetting prefers RELAY_LISTEN and falls back to a bare PORT as
// set by most hosting platforms.
func parseListenSetting(cfg *Config) {
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Server.Listen = v
		return
	}
	portStr := os.Getenv(EnvPort)
	if portStr == "" {
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		logrus.WithFields(logrus.Fields{
			"function":    "parseListenSetting",
			"env_var":     EnvPort,
			"value":       portStr,
			"using_value": cfg.Server.Listen,
		}).Warn("Invalid PORT environment variable, using default")
		return
	}
	cfg.Server.Listen = ":" + strconv.Itoa(port)
}

func parseLogLevelSetting(cfg *Config) {
	v := os.Getenv(EnvLogLevel)
	if v == "" {
		return
	}
	if _, err := logrus.ParseLevel(v); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseLogLevelSetting",
			"env_var":     EnvLogLevel,
			"value":       v,
			"error":       err.Error(),
			"using_value": cfg.LogLevel,
		}).Warn("Failed to parse RELAY_LOG_LEVEL environment variable, using default")
		return
	}
	cfg.LogLevel = v
}

func parseOutboxSetting(cfg *Config) {
	if v := os.Getenv(EnvOutboxPath); v != "" {
		cfg.Outbox.Path = v
	}
	v := os.Getenv(EnvOutboxType)
	if v == "" {
		return
	}
	switch t := strings.ToLower(v); t {
	case outbox.TypeMemory, outbox.TypePebble, outbox.TypeSQLite:
		cfg.Outbox.Type = t
	default:
		logrus.WithFields(logrus.Fields{
			"function":    "parseOutboxSetting",
			"env_var":     EnvOutboxType,
			"value":       v,
			"using_value": cfg.Outbox.Type,
		}).Warn("Unknown RELAY_OUTBOX_TYPE, using default")
	}
}

func parseHistoryLimitSetting(cfg *Config) {
	v := os.Getenv(EnvHistoryLimit)
	if v == "" {
		return
	}
	limit, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseHistoryLimitSetting",
			"env_var":     EnvHistoryLimit,
			"value":       v,
			"error":       err.Error(),
			"using_value": cfg.Server.HistoryLimit,
		}).Warn("Failed to parse RELAY_HISTORY_LIMIT environment variable, using default")
		return
	}
	if limit < 0 || limit > MaxHistoryLimit {
		logrus.WithFields(logrus.Fields{
			"function":    "parseHistoryLimitSetting",
			"env_var":     EnvHistoryLimit,
			"value":       limit,
			"min":         0,
			"max":         MaxHistoryLimit,
			"using_value": cfg.Server.HistoryLimit,
		}).Warn("RELAY_HISTORY_LIMIT value out of bounds, using default")
		return
	}
	cfg.Server.HistoryLimit = limit
}
