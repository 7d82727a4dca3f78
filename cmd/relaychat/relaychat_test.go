package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/relaysync/event"
	"github.com/opd-ai/relaysync/messaging"
	"github.com/opd-ai/relaysync/outbox"
	"github.com/opd-ai/relaysync/presence"
	"github.com/opd-ai/relaysync/status"
	"github.com/opd-ai/relaysync/syncer"
)

const self = "client-alice"

type offline struct{}

func (offline) Emit(event.Event) bool { return false }

type fakeEngine struct {
	records []messaging.Record
	exposed []string
}

func (f *fakeEngine) Self() string { return self }
func (f *fakeEngine) Compose(context.Context, string) (messaging.Record, error) {
	return messaging.Record{}, nil
}
func (f *fakeEngine) Delete(context.Context, string, messaging.DeleteScope) error { return nil }
func (f *fakeEngine) SetDisplayName(string) error                              { return nil }
func (f *fakeEngine) ExposureReported(_ context.Context, id string) {
	f.exposed = append(f.exposed, id)
}
func (f *fakeEngine) Messages(context.Context) []messaging.Record { return f.records }

func record(id, author string, st messaging.Status) messaging.Record {
	return messaging.Record{Message: messaging.Message{
		ID: id, Text: "hi", Author: author, CreatedAt: 1, Status: st,
	}}
}

func newShell(t *testing.T) (*shell, *syncer.Engine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	p := newPresenter(&out, self)
	e, err := syncer.New(syncer.Config{Self: self, DisplayName: "Alice"}, outbox.NewMemoryStore(), offline{}, p)
	require.NoError(t, err)
	return &shell{engine: e, presenter: p}, e, &out
}

func TestShellComposeAndDelete(t *testing.T) {
	ctx := context.Background()
	sh, e, out := newShell(t)

	assert.False(t, sh.exec(ctx, "hello there"))
	msgs := e.Messages(ctx)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello there", msgs[0].Text)
	assert.Contains(t, out.String(), "Alice: hello there")
	assert.Contains(t, out.String(), "✓ pending")

	out.Reset()
	assert.False(t, sh.exec(ctx, "/delete "+shortID(msgs[0].ID)+" everyone"))
	assert.Empty(t, e.Messages(ctx))
	assert.Contains(t, out.String(), "deleted")

	out.Reset()
	sh.exec(ctx, "/delete nothere")
	assert.Contains(t, out.String(), "delete failed")

	out.Reset()
	sh.exec(ctx, "/delete")
	assert.Contains(t, out.String(), "usage")
}

func TestShellCommands(t *testing.T) {
	ctx := context.Background()
	sh, e, out := newShell(t)

	sh.exec(ctx, "/name Alice Liddell")
	assert.Equal(t, "Alice Liddell", e.DisplayName())
	assert.Contains(t, out.String(), "you are now Alice Liddell")

	out.Reset()
	sh.exec(ctx, "/name   ")
	assert.Contains(t, out.String(), "name unchanged")
	assert.Equal(t, "Alice Liddell", e.DisplayName())

	out.Reset()
	sh.exec(ctx, "/list")
	assert.Contains(t, out.String(), "no messages")

	out.Reset()
	sh.exec(ctx, "/shout")
	assert.Contains(t, out.String(), "unknown command /shout")

	assert.False(t, sh.exec(ctx, "   "))
	assert.True(t, sh.exec(ctx, "/quit"))
}

func TestShellSeenReportsPeerMessages(t *testing.T) {
	f := &fakeEngine{records: []messaging.Record{
		record("m1", "client-bob", messaging.StatusDelivered),
		record("m2", self, messaging.StatusDelivered),
		record("m3", "client-bob", messaging.StatusSeen),
		record("m4", "client-carol", messaging.StatusSent),
	}}
	sh := &shell{engine: f, presenter: newPresenter(&bytes.Buffer{}, self)}

	sh.exec(context.Background(), "/seen")
	assert.Equal(t, []string{"m1", "m4"}, f.exposed)
}

func TestResolvePrefix(t *testing.T) {
	f := &fakeEngine{records: []messaging.Record{
		record("abc111", self, messaging.StatusSent),
		record("abc222", self, messaging.StatusSent),
		record("xyz", self, messaging.StatusSent),
	}}
	sh := &shell{engine: f, presenter: newPresenter(&bytes.Buffer{}, self)}
	ctx := context.Background()

	id, err := sh.resolve(ctx, "abc1")
	require.NoError(t, err)
	assert.Equal(t, "abc111", id)

	_, err = sh.resolve(ctx, "abc")
	assert.ErrorIs(t, err, errAmbiguousID)

	id, err = sh.resolve(ctx, "xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", id)

	id, err = sh.resolve(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "missing", id, "unknown ids pass through for the engine to reject")
}

func TestPresenterLines(t *testing.T) {
	var out bytes.Buffer
	p := newPresenter(&out, self)
	now := time.UnixMilli(1_700_000_000_000)
	p.now = func() time.Time { return now }

	own := record("0123456789abcdef", self, messaging.StatusDelivered)
	own.DisplayName = "Alice"
	own.CreatedAt = now.Add(-5 * time.Minute).UnixMilli()
	own.Synced = true
	p.MessageAdded(own)

	peer := record("fedcba9876543210", "client-bob", messaging.StatusDelivered)
	peer.CreatedAt = now.Add(-5 * time.Minute).UnixMilli()
	p.MessageAdded(peer)

	p.StatusChanged(status.Change{ID: own.ID, From: messaging.StatusDelivered, To: messaging.StatusSeen})
	p.TypingChanged(presence.Peer{Identity: "client-bob", DisplayName: "Bob"}, true)
	p.TypingChanged(presence.Peer{Identity: "client-bob", DisplayName: "Bob"}, false)
	p.OnlineCountChanged(1234)
	p.MessageRemoved(peer.ID)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"[01234567] Alice: hi (5 minutes ago) ✓✓",
		"[fedcba98] client-b: hi (5 minutes ago)",
		"[01234567] ✓✓ seen",
		"Bob is typing...",
		"1,234 online",
		"[fedcba98] deleted",
	}, lines)
}

type online struct{ sent []event.Event }

func (o *online) Emit(ev event.Event) bool {
	o.sent = append(o.sent, ev)
	return true
}

func (o *online) seen() []event.Event {
	var acks []event.Event
	for _, ev := range o.sent {
		if ev.Name() == event.NameSeenAck {
			acks = append(acks, ev)
		}
	}
	return acks
}

func TestPrintedPeerMessagesReportedSeen(t *testing.T) {
	ctx := context.Background()
	ch := &online{}
	p := newPresenter(&bytes.Buffer{}, self)
	e, err := syncer.New(syncer.Config{Self: self, DisplayName: "Alice"}, outbox.NewMemoryStore(), ch, p)
	require.NoError(t, err)
	p.expose = func(id string) { e.ExposureReported(ctx, id) }

	e.HandleConnect(ctx)
	peer := record("m1", "client-bob", messaging.StatusDelivered).Message
	e.HandleEvent(ctx, event.Message{Message: peer})

	assert.Equal(t, []event.Event{event.SeenAck("m1")}, ch.seen())
	recs := e.Messages(ctx)
	require.Len(t, recs, 1)
	assert.Equal(t, messaging.StatusSeen, recs[0].Status)

	// own messages are never reported
	_, err = e.Compose(ctx, "mine")
	require.NoError(t, err)
	e.HandleEvent(ctx, event.OnlineCount(2))
	assert.Len(t, ch.seen(), 1)
}

func TestOfflineExposureRetriedOnReconnect(t *testing.T) {
	ctx := context.Background()
	ch := &online{}
	p := newPresenter(&bytes.Buffer{}, self)
	e, err := syncer.New(syncer.Config{Self: self, DisplayName: "Alice"}, outbox.NewMemoryStore(), ch, p)
	require.NoError(t, err)
	p.expose = func(id string) { e.ExposureReported(ctx, id) }

	// arrives just before the link drops, so the seen ack cannot go out
	e.HandleConnect(ctx)
	e.HandleDisconnect(ctx)
	e.HandleEvent(ctx, event.Message{Message: record("m1", "client-bob", messaging.StatusDelivered).Message})
	assert.Empty(t, ch.seen())

	e.HandleConnect(ctx)
	e.HandleEvent(ctx, event.OnlineCount(2))
	assert.Equal(t, []event.Event{event.SeenAck("m1")}, ch.seen())

	e.HandleEvent(ctx, event.OnlineCount(3))
	assert.Len(t, ch.seen(), 1, "a seen message is reported once")
}
