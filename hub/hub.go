package hub

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/event"
	"github.com/opd-ai/relaysync/limits"
	"github.com/opd-ai/relaysync/messaging"
)

// ErrStopped is returned when the hub loop is no longer running.
var ErrStopped = errors.New("hub stopped")

// Config tunes the hub.
type Config struct {
	// HistoryLimit bounds the shared history; 0 keeps every message.
	HistoryLimit int `toml:"history_limit"`
	// RateLimit is the sustained inbound events per second allowed per session.
	RateLimit float64 `toml:"rate_limit"`
	// RateBurst is the inbound burst allowed per session.
	RateBurst int `toml:"rate_burst"`
	// SendBuffer is the capacity of each session's send queue.
	SendBuffer int `toml:"send_buffer"`
}

// DefaultConfig returns the hub defaults.
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 0,
		RateLimit:    20,
		RateBurst:    40,
		SendBuffer:   256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HistoryLimit < 0 {
		c.HistoryLimit = 0
	}
	if c.RateLimit <= 0 {
		c.RateLimit = d.RateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = d.RateBurst
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	return c
}

// Trimmed IDs are remembered for retiredFactor times the history limit, and
// never fewer than minRetired.
const (
	retiredFactor = 4
	minRetired    = 1024
)

type inbound struct {
	session *Session
	event   event.Event
}

// Hub is the broadcast hub. Create it with New and start Run before connecting
// sessions.
type Hub struct {
	cfg     Config
	metrics *Metrics

	register   chan *Session
	unregister chan *Session
	inbound    chan inbound
	queries    chan func()
	done       chan struct{}

	// owned by Run
	sessions   map[string]*Session
	history    []messaging.Message
	index      map[string]int
	tombstones map[string]struct{}
	slow       []*Session

	// retired remembers IDs trimmed from history so replays are confirmed
	// without being appended again. Oldest entries are forgotten first.
	retired      map[string]struct{}
	retiredOrder []string
}

// New creates a hub. A nil metrics uses unregistered collectors.
func New(cfg Config, metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Hub{
		cfg:        cfg.withDefaults(),
		metrics:    metrics,
		register:   make(chan *Session),
		unregister: make(chan *Session),
		inbound:    make(chan inbound),
		queries:    make(chan func()),
		done:       make(chan struct{}),
		sessions:   make(map[string]*Session),
		index:      make(map[string]int),
		tombstones: make(map[string]struct{}),
		retired:    make(map[string]struct{}),
	}
}

// Run processes events until ctx is cancelled. All sessions are closed on return.
func (h *Hub) Run(ctx context.Context) {
	logrus.WithFields(logrus.Fields{
		"function":      "Run",
		"history_limit": h.cfg.HistoryLimit,
	}).Info("Hub started")

	defer func() {
		close(h.done)
		for _, s := range h.sessions {
			s.close()
		}
		h.sessions = map[string]*Session{}
		h.metrics.sessions.Set(0)
		logrus.WithFields(logrus.Fields{
			"function": "Run",
		}).Info("Hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			h.connect(s)
		case s := <-h.unregister:
			h.disconnect(s, "disconnect")
		case in := <-h.inbound:
			h.handle(in.session, in.event)
		case q := <-h.queries:
			q()
		}
		h.evictSlow()
	}
}

// Connect registers a new session for identity. An invalid name is replaced by
// a generated default.
func (h *Hub) Connect(ctx context.Context, identity, name string) (*Session, error) {
	if err := limits.ValidateIdentifier(identity); err != nil {
		return nil, err
	}
	s := newSession(identity, "", h.cfg)
	s.displayName = strings.TrimSpace(name)
	if limits.ValidateDisplayName(s.displayName) != nil {
		s.displayName = "Guest-" + s.id[:4]
	}

	select {
	case h.register <- s:
		return s, nil
	case <-h.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disconnect unregisters s. Disconnecting an unknown or evicted session is a no-op.
func (h *Hub) Disconnect(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Submit hands an event from s to the hub loop. Typing events over the
// session's rate are dropped; every other event waits for the limiter so
// messages and acknowledgements are paced, never lost. It reports false when
// the event was dropped, the session was closed, or the hub is stopped.
func (h *Hub) Submit(s *Session, ev event.Event) bool {
	if ev.Name() == event.NameTyping {
		if !s.limiter.Allow() {
			h.metrics.dropped.WithLabelValues("rate_limited").Inc()
			logrus.WithFields(logrus.Fields{
				"function": "Submit",
				"session":  s.id,
				"event":    ev.Name(),
			}).Debug("Rate limit exceeded, typing event dropped")
			return false
		}
	} else if err := s.limiter.Wait(s.ctx); err != nil {
		return false
	}
	select {
	case h.inbound <- inbound{session: s, event: ev}:
		return true
	case <-s.ctx.Done():
		return false
	case <-h.done:
		return false
	}
}

// History returns a copy of the shared history in receipt order.
func (h *Hub) History() []messaging.Message {
	var out []messaging.Message
	h.query(func() {
		out = make([]messaging.Message, len(h.history))
		copy(out, h.history)
	})
	return out
}

// Online returns the number of registered sessions.
func (h *Hub) Online() int {
	var n int
	h.query(func() { n = len(h.sessions) })
	return n
}

func (h *Hub) query(f func()) {
	finished := make(chan struct{})
	select {
	case h.queries <- func() { f(); close(finished) }:
		<-finished
	case <-h.done:
	}
}

func (h *Hub) connect(s *Session) {
	h.sessions[s.id] = s
	h.metrics.sessions.Set(float64(len(h.sessions)))

	snapshot := make(event.HistorySnapshot, len(h.history))
	copy(snapshot, h.history)
	h.deliver(s, snapshot)
	h.broadcastOnline()

	logrus.WithFields(logrus.Fields{
		"function": "connect",
		"session":  s.id,
		"identity": s.identity,
		"name":     s.displayName,
		"history":  len(snapshot),
	}).Info("Session connected")
}

func (h *Hub) disconnect(s *Session, reason string) {
	if _, ok := h.sessions[s.id]; !ok {
		return
	}
	delete(h.sessions, s.id)
	s.close()
	h.metrics.sessions.Set(float64(len(h.sessions)))
	h.broadcastOnline()

	logrus.WithFields(logrus.Fields{
		"function": "disconnect",
		"session":  s.id,
		"reason":   reason,
	}).Info("Session disconnected")
}

// deliver enqueues ev for s and marks s for eviction when its queue is full.
func (h *Hub) deliver(s *Session, ev event.Event) {
	if !s.enqueue(ev) && !s.closed {
		h.slow = append(h.slow, s)
	}
}

func (h *Hub) broadcast(ev event.Event, except *Session) {
	for _, s := range h.sessions {
		if s != except {
			h.deliver(s, ev)
		}
	}
}

func (h *Hub) broadcastOnline() {
	h.broadcast(event.OnlineCount(len(h.sessions)), nil)
}

// evictSlow drops sessions whose queue overflowed. Each eviction broadcasts a
// new online count, which can overflow further queues.
func (h *Hub) evictSlow() {
	for len(h.slow) > 0 {
		s := h.slow[0]
		h.slow = h.slow[1:]
		if _, ok := h.sessions[s.id]; !ok {
			continue
		}
		h.metrics.dropped.WithLabelValues("slow_consumer").Inc()
		logrus.WithFields(logrus.Fields{
			"function": "evictSlow",
			"session":  s.id,
		}).Warn("Send queue full, evicting session")
		h.disconnect(s, "slow consumer")
	}
}

func (h *Hub) handle(s *Session, ev event.Event) {
	if _, ok := h.sessions[s.id]; !ok {
		return
	}
	h.metrics.eventsReceived.WithLabelValues(string(ev.Name())).Inc()

	if err := ev.Validate(); err != nil {
		h.metrics.dropped.WithLabelValues("invalid").Inc()
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"session":  s.id,
			"event":    ev.Name(),
			"error":    err.Error(),
		}).Warn("Invalid event dropped")
		return
	}

	switch ev := ev.(type) {
	case event.Message:
		h.relayMessage(s, ev.Message)
	case event.DeliveredAck:
		h.relayAck(s, string(ev), messaging.StatusDelivered)
	case event.SeenAck:
		h.relayAck(s, string(ev), messaging.StatusSeen)
	case event.DeleteMessage:
		h.deleteMessage(s, ev)
	case event.Typing:
		h.relayTyping(s, ev)
	case event.SetDisplayName:
		h.setDisplayName(s, string(ev))
	default:
		h.metrics.dropped.WithLabelValues("unexpected").Inc()
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"session":  s.id,
			"event":    ev.Name(),
		}).Debug("Client sent a hub-only event")
	}
}

func (h *Hub) setDisplayName(s *Session, name string) {
	s.displayName = strings.TrimSpace(name)
	h.broadcastOnline()
}

func (h *Hub) relayMessage(s *Session, m messaging.Message) {
	if m.Author != s.identity {
		h.metrics.dropped.WithLabelValues("foreign_author").Inc()
		logrus.WithFields(logrus.Fields{
			"function": "relayMessage",
			"session":  s.id,
			"id":       m.ID,
		}).Warn("Message author does not match session identity")
		return
	}
	if _, deleted := h.tombstones[m.ID]; deleted {
		logrus.WithFields(logrus.Fields{
			"function": "relayMessage",
			"id":       m.ID,
		}).Debug("Replay of deleted message ignored")
		// the sender missed the deletion and would keep replaying
		h.deliver(s, event.DeleteMessage{ID: m.ID, Scope: messaging.ScopeEveryone})
		return
	}

	if _, ok := h.retired[m.ID]; ok {
		h.deliver(s, event.StatusUpdate{ID: m.ID, Status: messaging.StatusDelivered})
		return
	}

	if i, ok := h.index[m.ID]; ok {
		// replayed after a lost ack; the first copy stays authoritative
		m = h.history[i]
	} else {
		m.Origin = false
		m.Status = messaging.StatusDelivered
		h.append(m)
	}

	h.broadcast(event.Message{Message: m}, nil)
	h.deliver(s, event.StatusUpdate{ID: m.ID, Status: messaging.StatusDelivered})
	h.metrics.messagesRelayed.Inc()
}

func (h *Hub) append(m messaging.Message) {
	h.history = append(h.history, m)
	if h.cfg.HistoryLimit > 0 && len(h.history) > h.cfg.HistoryLimit {
		drop := len(h.history) - h.cfg.HistoryLimit
		for _, old := range h.history[:drop] {
			delete(h.index, old.ID)
			h.retire(old.ID)
		}
		h.history = append([]messaging.Message(nil), h.history[drop:]...)
		h.reindex()
	} else {
		h.index[m.ID] = len(h.history) - 1
	}
	h.metrics.historySize.Set(float64(len(h.history)))
}

// retire records id as trimmed, keeping at most retiredLimit entries.
func (h *Hub) retire(id string) {
	h.retired[id] = struct{}{}
	h.retiredOrder = append(h.retiredOrder, id)
	if limit := h.retiredLimit(); len(h.retiredOrder) > limit {
		drop := len(h.retiredOrder) - limit
		for _, old := range h.retiredOrder[:drop] {
			delete(h.retired, old)
		}
		h.retiredOrder = append([]string(nil), h.retiredOrder[drop:]...)
	}
}

func (h *Hub) retiredLimit() int {
	return max(minRetired, retiredFactor*h.cfg.HistoryLimit)
}

func (h *Hub) reindex() {
	clear(h.index)
	for i, m := range h.history {
		h.index[m.ID] = i
	}
}

// relayAck forwards an acknowledgement to everyone but the raiser and folds it
// into the aggregate status kept in history.
func (h *Hub) relayAck(s *Session, id string, st messaging.Status) {
	if i, ok := h.index[id]; ok && st.After(h.history[i].Status) {
		h.history[i].Status = st
	}
	h.broadcast(event.StatusUpdate{ID: id, Status: st}, s)
	h.metrics.acksRelayed.WithLabelValues(st.String()).Inc()
}

func (h *Hub) deleteMessage(s *Session, d event.DeleteMessage) {
	if d.Scope == messaging.ScopeMe {
		h.deliver(s, d)
		h.metrics.deletions.WithLabelValues(string(d.Scope)).Inc()
		return
	}

	i, ok := h.index[d.ID]
	if !ok || h.history[i].Author != s.identity {
		h.metrics.dropped.WithLabelValues("delete_rejected").Inc()
		logrus.WithFields(logrus.Fields{
			"function": "deleteMessage",
			"session":  s.id,
			"id":       d.ID,
		}).Debug("Global delete for unknown or foreign message ignored")
		return
	}

	h.history = append(h.history[:i], h.history[i+1:]...)
	h.reindex()
	h.tombstones[d.ID] = struct{}{}
	h.metrics.historySize.Set(float64(len(h.history)))
	h.metrics.deletions.WithLabelValues(string(d.Scope)).Inc()

	h.broadcast(d, nil)
}

func (h *Hub) relayTyping(s *Session, t event.Typing) {
	t.Identity = s.identity
	t.DisplayName = s.displayName
	h.broadcast(t, s)
}
