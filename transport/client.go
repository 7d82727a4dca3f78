package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/event"
	"github.com/opd-ai/relaysync/limits"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ClientConfig configures a websocket Client.
type ClientConfig struct {
	// URL is the hub websocket endpoint, e.g. ws://host:3000/ws.
	URL string
	// Identity is the persistent client identifier sent as client_id.
	Identity string
	// DisplayName is sent as the initial name; optional.
	DisplayName string
	// SendBuffer is the capacity of the outbound queue per connection.
	SendBuffer int

	Backoff Backoff
	Sleeper Sleeper
	Dialer  *websocket.Dialer
}

// Client is a reconnecting websocket link to the hub.
type Client struct {
	cfg ClientConfig

	mu   sync.Mutex
	conn *link
}

// link is the outbound side of one live connection.
type link struct {
	out  chan event.Event
	done chan struct{}
}

// NewClient creates a Client. Zero-valued fields take defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.Backoff.Initial <= 0 || cfg.Backoff.Max <= 0 {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = DefaultSleeper{}
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Client{cfg: cfg}
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Emit queues ev on the current connection without blocking.
func (c *Client) Emit(ev event.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.offer(ev)
}

func (l *link) offer(ev event.Event) bool {
	if l == nil {
		return false
	}
	select {
	case l.out <- ev:
		return true
	default:
		return false
	}
}

// Run connects, serves the connection, and reconnects with backoff until ctx
// is cancelled. It returns ctx.Err().
func (c *Client) Run(ctx context.Context, h Handler) error {
	attempt := 0
	for {
		ws, err := c.dial(ctx)
		if err == nil {
			attempt = 0
			c.serve(ctx, ws, h)
		} else {
			logrus.WithFields(logrus.Fields{
				"function": "Client.Run",
				"url":      c.cfg.URL,
				"attempt":  attempt + 1,
				"error":    err.Error(),
			}).Warn("Connection attempt failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := c.cfg.Backoff.Delay(attempt)
		attempt++
		if err := c.cfg.Sleeper.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse hub url: %w", err)
	}
	q := u.Query()
	q.Set("client_id", c.cfg.Identity)
	if c.cfg.DisplayName != "" {
		q.Set("name", c.cfg.DisplayName)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	if err := limits.ValidateIdentifier(c.cfg.Identity); err != nil {
		return nil, err
	}
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	ws, _, err := c.cfg.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"function": "Client.dial",
		"url":      c.cfg.URL,
	}).Info("Connected to hub")
	return ws, nil
}

// serve runs one connection until it fails or ctx is cancelled.
func (c *Client) serve(ctx context.Context, ws *websocket.Conn, h Handler) {
	conn := &link{
		out:  make(chan event.Event, c.cfg.SendBuffer),
		done: make(chan struct{}),
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	writerDone := make(chan struct{})
	go c.writePump(ws, conn, writerDone)
	stop := context.AfterFunc(ctx, func() { ws.Close() })

	h.HandleConnect(ctx)
	c.readPump(ctx, ws, h)

	stop()
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	close(conn.done)
	ws.Close()
	<-writerDone

	h.HandleDisconnect(ctx)
}

func (c *Client) readPump(ctx context.Context, ws *websocket.Conn, h Handler) {
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPingHandler(func(data string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logrus.WithFields(logrus.Fields{
					"function": "Client.readPump",
					"error":    err.Error(),
				}).Warn("Connection lost")
			}
			return
		}
		ev, err := event.Unmarshal(frame)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Client.readPump",
				"error":    err.Error(),
			}).Warn("Dropping malformed event from hub")
			continue
		}
		h.HandleEvent(ctx, ev)
	}
}

func (c *Client) writePump(ws *websocket.Conn, conn *link, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-conn.done:
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case ev := <-conn.out:
			frame, err := event.Marshal(ev)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Client.writePump",
					"event":    ev.Name(),
					"error":    err.Error(),
				}).Error("Failed to encode event")
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				ws.Close()
				<-conn.done
				return
			}
		}
	}
}
