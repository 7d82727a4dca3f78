package relaysync

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/config"
	"github.com/opd-ai/relaysync/outbox"
	"github.com/opd-ai/relaysync/syncer"
	"github.com/opd-ai/relaysync/transport"
)

// Client is a chat participant: a sync engine backed by a durable outbox and
// linked to a hub over websocket.
type Client struct {
	store  *outbox.Guarded
	link   *transport.Client
	engine *syncer.Engine
}

// NewClient assembles a client from cfg. The outbox falls back to memory when
// the configured backend cannot be opened.
func NewClient(cfg *config.Config, listener syncer.Listener) (*Client, error) {
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}

	store := outbox.Open(cfg.Outbox)
	link := transport.NewClient(transport.ClientConfig{
		URL:         cfg.Client.ServerURL,
		Identity:    cfg.Client.ClientID,
		DisplayName: cfg.Client.DisplayName,
	})
	engine, err := syncer.New(syncer.Config{
		Self:           cfg.Client.ClientID,
		DisplayName:    cfg.Client.DisplayName,
		TypingDebounce: cfg.Client.TypingDebounce.Std(),
	}, store, link, listener)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating sync engine: %w", err)
	}

	return &Client{store: store, link: link, engine: engine}, nil
}

// Engine exposes the user operations.
func (c *Client) Engine() *syncer.Engine { return c.engine }

// Run loads the outbox and keeps the hub link up until ctx is cancelled.
// Unsynced messages are replayed on every connect.
func (c *Client) Run(ctx context.Context) error {
	n := c.engine.Load(ctx)
	logrus.WithFields(logrus.Fields{
		"function": "Client.Run",
		"self":     c.engine.Self(),
		"restored": n,
	}).Info("Outbox loaded")

	return c.link.Run(ctx, c.engine)
}

// Close releases the outbox. Run must have returned.
func (c *Client) Close() error {
	return c.store.Close()
}
