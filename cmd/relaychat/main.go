package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

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
	Use:   "relaychat",
	Short: "Terminal chat client with offline outbox",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config with a new client identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		name, _ := cmd.Flags().GetString("name")
		server, _ := cmd.Flags().GetString("server")

		cfg := config.NewClientConfig(config.DefaultDataDir(), name)
		if server != "" {
			cfg.Client.ServerURL = server
		}
		if err := cfg.ValidateClient(); err != nil {
			return err
		}
		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		fmt.Printf("Client ID: %s\n", cfg.Client.ClientID)
		fmt.Printf("Outbox: %s (%s)\n", cfg.Outbox.Path, cfg.Outbox.Type)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join the chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if err := config.SetupLogging(cfg.LogLevel); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		p := newPresenter(out, cfg.Client.ClientID)
		client, err := relaysync.NewClient(cfg, p)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p.expose = func(id string) { client.Engine().ExposureReported(ctx, id) }

		runErr := make(chan error, 1)
		go func() { runErr <- client.Run(ctx) }()

		sh := &shell{engine: client.Engine(), presenter: p}
		lines := make(chan string)
		go func() {
			defer close(lines)
			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				lines <- sc.Text()
			}
		}()

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case line, ok := <-lines:
				if !ok || sh.exec(ctx, line) {
					break loop
				}
			}
		}

		stop()
		if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultPath(), "Path to the config file")
	configInitCmd.Flags().String("name", "", "Display name")
	configInitCmd.Flags().String("server", "", "Hub websocket URL")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(chatCmd)
}
