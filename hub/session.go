package hub

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/opd-ai/relaysync/event"
)

// Session is one connected channel. Its fields other than send are owned by
// the hub loop.
type Session struct {
	id          string
	identity    string
	displayName string
	send        chan event.Event
	limiter     *rate.Limiter
	closed      bool

	// ctx is cancelled when the session is dropped, releasing paced submits.
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(identity, displayName string, cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ctx:         ctx,
		cancel:      cancel,
		id:          uuid.New().String(),
		identity:    identity,
		displayName: displayName,
		send:        make(chan event.Event, cfg.SendBuffer),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

// ID returns the transient session identifier.
func (s *Session) ID() string { return s.id }

// Identity returns the persistent client identifier the session connected with.
func (s *Session) Identity() string { return s.identity }

// Send returns the queue of events addressed to this session. It is closed
// when the hub drops the session.
func (s *Session) Send() <-chan event.Event { return s.send }

// enqueue offers ev without blocking and reports whether it fit.
func (s *Session) enqueue(ev event.Event) bool {
	if s.closed {
		return false
	}
	select {
	case s.send <- ev:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	if !s.closed {
		s.closed = true
		s.cancel()
		close(s.send)
	}
}
