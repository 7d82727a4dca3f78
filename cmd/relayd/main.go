package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/relaysync"
	"github.com/opd-ai/relaysync/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "relayd",
	Short: "Realtime message relay hub",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Server.Listen = listen
		}
		if err := config.SetupLogging(cfg.LogLevel); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logrus.WithFields(logrus.Fields{
			"function":      "serve",
			"listen":        cfg.Server.Listen,
			"history_limit": cfg.Server.HistoryLimit,
		}).Info("Starting relay hub")

		return relaysync.NewServer(cfg.Server).ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("config", config.DefaultPath(), "Path to the config file")
	serveCmd.Flags().String("listen", "", "Listen address, overrides the config file")
	rootCmd.AddCommand(serveCmd)
}
