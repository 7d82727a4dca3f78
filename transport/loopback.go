package transport

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/event"
	"github.com/opd-ai/relaysync/hub"
)

// Loopback links a Handler to an in-process hub.
type Loopback struct {
	hub        *hub.Hub
	identity   string
	name       string
	sendBuffer int

	mu       sync.Mutex
	conn     *link
	session  *hub.Session
	finished chan struct{}
}

// NewLoopback creates a disconnected link for identity.
func NewLoopback(h *hub.Hub, identity, name string) *Loopback {
	return &Loopback{hub: h, identity: identity, name: name, sendBuffer: 256}
}

// Connected reports whether the link is up.
func (l *Loopback) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Emit queues ev for the hub without blocking.
func (l *Loopback) Emit(ev event.Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.offer(ev)
}

// Connect registers a session with the hub and starts delivering its events to
// h. It returns once the session exists; HandleConnect runs asynchronously.
func (l *Loopback) Connect(ctx context.Context, h Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}

	s, err := l.hub.Connect(ctx, l.identity, l.name)
	if err != nil {
		return err
	}
	conn := &link{out: make(chan event.Event, l.sendBuffer), done: make(chan struct{})}
	l.conn = conn
	l.session = s
	l.finished = make(chan struct{})

	go l.pump(s, conn)
	go l.receive(ctx, s, conn, h, l.finished)
	return nil
}

// Disconnect closes the session and waits until HandleDisconnect has run.
// It must not be called from a Handler callback.
func (l *Loopback) Disconnect() {
	l.mu.Lock()
	s, finished := l.session, l.finished
	l.mu.Unlock()
	if s == nil {
		return
	}
	l.hub.Disconnect(s)
	<-finished
}

func (l *Loopback) pump(s *hub.Session, conn *link) {
	for {
		select {
		case <-conn.done:
			return
		case ev := <-conn.out:
			wire, err := roundTrip(ev)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Loopback.pump",
					"event":    ev.Name(),
					"error":    err.Error(),
				}).Warn("Dropping event rejected by codec")
				continue
			}
			l.hub.Submit(s, wire)
		}
	}
}

func (l *Loopback) receive(ctx context.Context, s *hub.Session, conn *link, h Handler, finished chan struct{}) {
	defer close(finished)

	h.HandleConnect(ctx)
	for ev := range s.Send() {
		wire, err := roundTrip(ev)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Loopback.receive",
				"event":    ev.Name(),
				"error":    err.Error(),
			}).Warn("Dropping event rejected by codec")
			continue
		}
		h.HandleEvent(ctx, wire)
	}

	l.mu.Lock()
	if l.conn == conn {
		l.conn = nil
		l.session = nil
	}
	l.mu.Unlock()
	close(conn.done)

	h.HandleDisconnect(ctx)
}
