package syncer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/opd-ai/relaysync/event"
	"github.com/opd-ai/relaysync/messaging"
	"github.com/opd-ai/relaysync/presence"
	"github.com/opd-ai/relaysync/status"
)

// fakeChannel records emitted events. refuseAfter limits how many emits are
// accepted; a negative value accepts everything.
type fakeChannel struct {
	mu          sync.Mutex
	down        bool
	refuseAfter int
	events      []event.Event
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{refuseAfter: -1}
}

func (c *fakeChannel) Emit(ev event.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down || c.refuseAfter == 0 {
		return false
	}
	if c.refuseAfter > 0 {
		c.refuseAfter--
	}
	c.events = append(c.events, ev)
	return true
}

func (c *fakeChannel) setDown(down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = down
}

func (c *fakeChannel) emitted() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

func (c *fakeChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// named filters emitted events by name.
func (c *fakeChannel) named(name event.Name) []event.Event {
	var out []event.Event
	for _, ev := range c.emitted() {
		if ev.Name() == name {
			out = append(out, ev)
		}
	}
	return out
}

type recordingListener struct {
	mu      sync.Mutex
	added   []messaging.Record
	removed []string
	changes []status.Change
	typing  []string
	counts  []int
}

func (l *recordingListener) MessageAdded(rec messaging.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.added = append(l.added, rec)
}

func (l *recordingListener) MessageRemoved(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removed = append(l.removed, id)
}

func (l *recordingListener) StatusChanged(change status.Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, change)
}

func (l *recordingListener) TypingChanged(peer presence.Peer, active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.typing = append(l.typing, fmt.Sprintf("%s:%t", peer.Identity, active))
}

func (l *recordingListener) OnlineCountChanged(count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts = append(l.counts, count)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("msg-%03d", s.n)
}

// noTimers never fires; typing-stop only happens through Stop.
type noTimers struct{}

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

func (noTimers) AfterFunc(time.Duration, func()) presence.Timer { return idleTimer{} }

var errBroken = errors.New("storage broken")

type brokenStore struct{}

func (brokenStore) Put(context.Context, messaging.Record) error { return errBroken }
func (brokenStore) Get(context.Context, string) (messaging.Record, error) {
	return messaging.Record{}, errBroken
}
func (brokenStore) Delete(context.Context, string) error { return errBroken }
func (brokenStore) All(context.Context) iter.Seq2[messaging.Record, error] {
	return func(yield func(messaging.Record, error) bool) { yield(messaging.Record{}, errBroken) }
}
func (brokenStore) PutTombstone(context.Context, string) error          { return errBroken }
func (brokenStore) HasTombstone(context.Context, string) (bool, error) { return false, errBroken }
func (brokenStore) Close() error                                        { return errBroken }
