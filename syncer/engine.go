package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/event"
	"github.com/opd-ai/relaysync/limits"
	"github.com/opd-ai/relaysync/messaging"
	"github.com/opd-ai/relaysync/outbox"
	"github.com/opd-ai/relaysync/presence"
	"github.com/opd-ai/relaysync/status"
)

// Channel is the outbound half of the event channel.
type Channel interface {
	// Emit queues ev for sending. It never blocks and reports false when the
	// event was dropped because the channel is down or saturated.
	Emit(ev event.Event) bool
}

// Config holds the identity and collaborators of an Engine.
type Config struct {
	// Self is the persistent client identifier.
	Self string
	// DisplayName labels messages composed by this client.
	DisplayName string
	// TypingDebounce is the idle period before typing-stop; zero uses the default.
	TypingDebounce time.Duration

	Clock  messaging.TimeProvider
	IDs    messaging.IDGenerator
	Timers presence.TimeProvider
}

// Engine is the client-side sync protocol engine.
type Engine struct {
	mu         sync.Mutex
	self       string
	connected  bool
	store      outbox.Store
	tracker    *status.Tracker
	builder    *messaging.Builder
	channel    Channel
	listener   Listener
	indicators *presence.Indicators
	typing     *presence.Typing

	// inflight holds own message IDs emitted on the current connection and
	// not yet confirmed by the hub. Cleared on disconnect.
	inflight map[string]struct{}
	// stalled is set when the channel refused an own message; replay resumes
	// on the next inbound event.
	stalled bool

	// nameMu guards displayName separately so typing timers never wait on mu.
	nameMu      sync.RWMutex
	displayName string
}

// New creates an Engine. store is wrapped so storage failures never reach the
// caller. A nil listener discards notifications.
func New(cfg Config, store outbox.Store, channel Channel, listener Listener) (*Engine, error) {
	if err := limits.ValidateIdentifier(cfg.Self); err != nil {
		return nil, fmt.Errorf("client identity: %w", err)
	}
	if listener == nil {
		listener = ListenerFuncs{}
	}
	guarded := outbox.NewGuarded(store)

	e := &Engine{
		self:        cfg.Self,
		store:       guarded,
		tracker:     status.NewTracker(guarded),
		builder:     messaging.NewBuilder(cfg.Self, cfg.Clock, cfg.IDs),
		channel:     channel,
		listener:    listener,
		indicators:  presence.NewIndicators(),
		inflight:    make(map[string]struct{}),
		displayName: strings.TrimSpace(cfg.DisplayName),
	}
	e.typing = presence.NewTyping(cfg.TypingDebounce, cfg.Timers, e.emitTyping)

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"self":     cfg.Self,
	}).Debug("Sync engine created")

	return e, nil
}

// Self returns the persistent client identifier.
func (e *Engine) Self() string {
	return e.self
}

// DisplayName returns the current display name.
func (e *Engine) DisplayName() string {
	e.nameMu.RLock()
	defer e.nameMu.RUnlock()
	return e.displayName
}

// Connected reports whether the channel is currently up.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// HandleConnect replays unsynced outbound records. The engine lock is held for
// the whole replay, so two replays never overlap. Records stay unsynced until
// the hub confirms them, so anything lost in flight is replayed on the next
// connect.
func (e *Engine) HandleConnect(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.connected = true

	if name := e.DisplayName(); name != "" {
		e.channel.Emit(event.SetDisplayName(name))
	}

	replayed := e.replayLocked(ctx)

	logrus.WithFields(logrus.Fields{
		"function": "HandleConnect",
		"replayed": replayed,
	}).Info("Channel connected")
}

// replayLocked emits unsynced own records in compose order, skipping those
// already in flight. A refusal stalls the replay until the next inbound event
// shows the channel is draining.
func (e *Engine) replayLocked(ctx context.Context) int {
	e.stalled = false
	replayed := 0
	for rec, err := range e.store.All(ctx) {
		if err != nil {
			break
		}
		if rec.Author != e.self || rec.Synced {
			continue
		}
		if _, sent := e.inflight[rec.ID]; sent {
			continue
		}
		if !e.channel.Emit(event.Message{Message: rec.Message}) {
			logrus.WithFields(logrus.Fields{
				"function": "replayLocked",
				"id":       rec.ID,
			}).Warn("Channel refused replay, remaining records stay queued")
			e.stalled = true
			break
		}
		e.inflight[rec.ID] = struct{}{}
		replayed++
	}
	return replayed
}

// HandleDisconnect marks the channel down and clears peer typing indicators.
func (e *Engine) HandleDisconnect(ctx context.Context) {
	var out notifications

	e.mu.Lock()
	e.connected = false
	e.stalled = false
	clear(e.inflight)
	for _, id := range e.indicators.Clear() {
		out.typingChanged(presence.Peer{Identity: id}, false)
	}
	e.mu.Unlock()

	e.typing.Stop()
	out.dispatch(e.listener)

	logrus.WithFields(logrus.Fields{
		"function": "HandleDisconnect",
	}).Info("Channel disconnected")
}

// HandleEvent applies one inbound event from the hub.
func (e *Engine) HandleEvent(ctx context.Context, ev event.Event) {
	var out notifications

	e.mu.Lock()
	switch ev := ev.(type) {
	case event.HistorySnapshot:
		for _, m := range ev {
			e.acceptLocked(ctx, m, &out)
		}
	case event.Message:
		e.acceptLocked(ctx, ev.Message, &out)
	case event.StatusUpdate:
		e.statusLocked(ctx, ev, &out)
	case event.DeleteMessage:
		e.removeLocked(ctx, ev.ID, &out)
	case event.Typing:
		e.peerTypingLocked(ev, &out)
	case event.OnlineCount:
		out.onlineCountChanged(int(ev))
	default:
		logrus.WithFields(logrus.Fields{
			"function": "HandleEvent",
			"event":    ev.Name(),
		}).Debug("Ignoring event not addressed to clients")
	}
	if e.connected && e.stalled {
		e.replayLocked(ctx)
	}
	e.mu.Unlock()

	out.dispatch(e.listener)
}

func (e *Engine) acceptLocked(ctx context.Context, m messaging.Message, out *notifications) {
	if existing, err := e.store.Get(ctx, m.ID); err == nil {
		if existing.Author == e.self && !existing.Synced {
			// the hub holds it, so the echo or snapshot entry confirms it
			e.confirmLocked(ctx, m.ID, m.Status, out)
			return
		}
		logrus.WithFields(logrus.Fields{
			"function": "acceptLocked",
			"id":       m.ID,
		}).Debug("Duplicate message discarded")
		return
	}
	if deleted, _ := e.store.HasTombstone(ctx, m.ID); deleted {
		return
	}

	own := m.Author == e.self
	rec := messaging.Record{Message: m}
	rec.Origin = own
	rec.Synced = own
	wire := m.Status
	rec.Status = messaging.StatusSent
	if own && wire.Valid() {
		// the hub's aggregate is the only status record for an own message
		// that this outbox lost
		rec.Status = wire
	}

	if err := e.store.Put(ctx, rec); err != nil {
		return
	}
	out.messageAdded(rec)

	if e.indicators.Stop(m.Author) {
		out.typingChanged(presence.Peer{Identity: m.Author, DisplayName: m.DisplayName}, false)
	}

	if own {
		return
	}
	if !e.channel.Emit(event.DeliveredAck(m.ID)) {
		logrus.WithFields(logrus.Fields{
			"function": "acceptLocked",
			"id":       m.ID,
		}).Debug("Delivered ack dropped")
	}
	if change, ok := e.tracker.Advance(ctx, m.ID, messaging.StatusDelivered); ok {
		out.statusChanged(change)
	}
}

func (e *Engine) statusLocked(ctx context.Context, su event.StatusUpdate, out *notifications) {
	rec, err := e.store.Get(ctx, su.ID)
	if errors.Is(err, outbox.ErrNotFound) {
		logrus.WithFields(logrus.Fields{
			"function": "statusLocked",
			"id":       su.ID,
			"status":   su.Status.String(),
		}).Debug("Status update for unknown message")
		return
	}

	if rec.Author == e.self {
		e.confirmLocked(ctx, su.ID, su.Status, out)
		return
	}
	if change, ok := e.tracker.Advance(ctx, su.ID, su.Status); ok {
		out.statusChanged(change)
	}
}

// confirmLocked marks an own message as held by the hub and folds in the
// hub's status for it.
func (e *Engine) confirmLocked(ctx context.Context, id string, st messaging.Status, out *notifications) {
	delete(e.inflight, id)
	if !st.Valid() {
		st = messaging.StatusDelivered
	}
	if change, ok := e.tracker.AdvanceSynced(ctx, id, st); ok {
		out.statusChanged(change)
	}
}

// removeLocked deletes id locally and tombstones it. Repeated removals are no-ops.
func (e *Engine) removeLocked(ctx context.Context, id string, out *notifications) bool {
	_, err := e.store.Get(ctx, id)
	existed := err == nil
	e.store.PutTombstone(ctx, id)
	if !existed {
		logrus.WithFields(logrus.Fields{
			"function": "removeLocked",
			"id":       id,
		}).Debug("Delete for unknown message")
		return false
	}
	e.store.Delete(ctx, id)
	delete(e.inflight, id)
	out.messageRemoved(id)
	return true
}

func (e *Engine) peerTypingLocked(t event.Typing, out *notifications) {
	if t.Identity == e.self {
		return
	}
	peer := presence.Peer{Identity: t.Identity, DisplayName: t.DisplayName}
	if t.Active {
		if e.indicators.Start(t.Identity, t.DisplayName) {
			out.typingChanged(peer, true)
		}
		return
	}
	if e.indicators.Stop(t.Identity) {
		out.typingChanged(peer, false)
	}
}

// ExposureReported records that the presentation layer displayed message id.
// A peer's message is acknowledged as seen once; if the ack cannot be sent the
// next exposure tries again.
func (e *Engine) ExposureReported(ctx context.Context, id string) {
	var out notifications

	e.mu.Lock()
	rec, err := e.store.Get(ctx, id)
	switch {
	case err != nil:
		logrus.WithFields(logrus.Fields{
			"function": "ExposureReported",
			"id":       id,
		}).Debug("Exposure for unknown message")
	case rec.Author == e.self, rec.Status == messaging.StatusSeen:
	case !e.connected || !e.channel.Emit(event.SeenAck(id)):
		logrus.WithFields(logrus.Fields{
			"function": "ExposureReported",
			"id":       id,
		}).Debug("Seen ack dropped, will retry on next exposure")
	default:
		if change, ok := e.tracker.Advance(ctx, id, messaging.StatusSeen); ok {
			out.statusChanged(change)
		}
	}
	e.mu.Unlock()

	out.dispatch(e.listener)
}

// Compose stores a new message and sends it if the channel is up. The record
// is marked synced once the hub confirms it. It always forces typing-stop.
func (e *Engine) Compose(ctx context.Context, text string) (messaging.Record, error) {
	var out notifications

	e.mu.Lock()
	rec, err := e.builder.Compose(e.DisplayName(), text)
	if err != nil {
		e.mu.Unlock()
		return messaging.Record{}, err
	}
	e.store.Put(ctx, rec)
	out.messageAdded(rec)

	switch {
	case !e.connected:
	case e.stalled:
		// queued behind the stalled replay to keep compose order
	case e.channel.Emit(event.Message{Message: rec.Message}):
		e.inflight[rec.ID] = struct{}{}
	default:
		e.stalled = true
	}
	e.mu.Unlock()

	e.typing.Stop()
	out.dispatch(e.listener)

	logrus.WithFields(logrus.Fields{
		"function": "Compose",
		"id":       rec.ID,
	}).Debug("Message composed")
	return rec, nil
}

// Delete removes id locally and asks the hub to propagate the deletion.
// Only the author may delete for everyone; the hub enforces the same rule.
// A global deletion composed while offline is applied locally only.
func (e *Engine) Delete(ctx context.Context, id string, scope messaging.DeleteScope) error {
	if !scope.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}

	var out notifications

	e.mu.Lock()
	if scope == messaging.ScopeEveryone {
		if rec, err := e.store.Get(ctx, id); err == nil && rec.Author != e.self {
			e.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrNotAuthor, id)
		}
	}
	if !e.removeLocked(ctx, id, &out) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	sent := e.connected && e.channel.Emit(event.DeleteMessage{ID: id, Scope: scope})
	e.mu.Unlock()

	if !sent && scope == messaging.ScopeEveryone {
		logrus.WithFields(logrus.Fields{
			"function": "Delete",
			"id":       id,
		}).Warn("Global deletion not sent, applied locally only")
	}
	out.dispatch(e.listener)
	return nil
}

// SetDisplayName changes the label for future messages and informs the hub.
func (e *Engine) SetDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if err := limits.ValidateDisplayName(name); err != nil {
		return err
	}

	e.nameMu.Lock()
	e.displayName = name
	e.nameMu.Unlock()

	e.mu.Lock()
	if e.connected {
		e.channel.Emit(event.SetDisplayName(name))
	}
	e.mu.Unlock()
	return nil
}

// TypingInput records local input intent.
func (e *Engine) TypingInput() {
	e.typing.Input()
}

// Messages returns all stored records ordered by creation time.
func (e *Engine) Messages(ctx context.Context) []messaging.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	var recs []messaging.Record
	for rec, err := range e.store.All(ctx) {
		if err != nil {
			break
		}
		rec.Origin = rec.Author == e.self
		recs = append(recs, rec)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt != recs[j].CreatedAt {
			return recs[i].CreatedAt < recs[j].CreatedAt
		}
		return recs[i].ID < recs[j].ID
	})
	return recs
}

// Load announces every stored record to the listener in creation order and
// returns how many there were.
func (e *Engine) Load(ctx context.Context) int {
	recs := e.Messages(ctx)
	var out notifications
	for _, rec := range recs {
		out.messageAdded(rec)
	}
	out.dispatch(e.listener)
	return len(recs)
}

// TypingPeers returns the peers currently shown as typing.
func (e *Engine) TypingPeers() []presence.Peer {
	return e.indicators.Active()
}

func (e *Engine) emitTyping(active bool) {
	e.channel.Emit(event.Typing{
		Identity:    e.self,
		DisplayName: e.DisplayName(),
		Active:      active,
	})
}
