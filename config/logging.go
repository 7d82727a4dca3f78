package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SetupLogging configures the global logger for a binary.
func SetupLogging(level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}
