package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/opd-ai/relaysync/messaging"
	"github.com/opd-ai/relaysync/presence"
	"github.com/opd-ai/relaysync/status"
)

// shortIDLen is how much of a message ID is printed and accepted by /delete.
const shortIDLen = 8

// presenter renders engine notifications as terminal lines. Every peer
// message it prints counts as displayed and is reported through expose once
// the message is delivered; reports that fail offline are retried when the
// online count next arrives.
type presenter struct {
	mu     sync.Mutex
	w      io.Writer
	self   string
	now    func() time.Time
	expose func(id string)
	// unseen holds printed peer messages not yet confirmed seen.
	unseen map[string]struct{}
}

func newPresenter(w io.Writer, self string) *presenter {
	return &presenter{w: w, self: self, now: time.Now, unseen: make(map[string]struct{})}
}

// report calls expose for ids. It must not be called with mu held since
// expose reenters the engine, which notifies the presenter.
func (p *presenter) report(ids ...string) {
	if p.expose == nil {
		return
	}
	for _, id := range ids {
		p.expose(id)
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func ticks(s messaging.Status) string {
	switch s {
	case messaging.StatusSent:
		return "✓"
	case messaging.StatusDelivered:
		return "✓✓"
	case messaging.StatusSeen:
		return "✓✓ seen"
	default:
		return "?"
	}
}

func (p *presenter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *presenter) line(rec messaging.Record) string {
	who := rec.DisplayName
	if who == "" {
		who = shortID(rec.Author)
	}
	when := humanize.RelTime(rec.Time(), p.now(), "ago", "from now")
	if rec.Author != p.self {
		return fmt.Sprintf("[%s] %s: %s (%s)", shortID(rec.ID), who, rec.Text, when)
	}
	pending := ""
	if !rec.Synced {
		pending = " pending"
	}
	return fmt.Sprintf("[%s] %s: %s (%s) %s%s", shortID(rec.ID), who, rec.Text, when, ticks(rec.Status), pending)
}

// list prints records oldest first.
func (p *presenter) list(recs []messaging.Record) {
	if len(recs) == 0 {
		p.printf("no messages")
		return
	}
	for _, rec := range recs {
		p.printf("%s", p.line(rec))
	}
}

func (p *presenter) MessageAdded(rec messaging.Record) {
	p.printf("%s", p.line(rec))
	if rec.Author == p.self || rec.Status == messaging.StatusSeen {
		return
	}
	p.mu.Lock()
	p.unseen[rec.ID] = struct{}{}
	p.mu.Unlock()
}

func (p *presenter) MessageRemoved(id string) {
	p.mu.Lock()
	delete(p.unseen, id)
	p.mu.Unlock()
	p.printf("[%s] deleted", shortID(id))
}

func (p *presenter) StatusChanged(c status.Change) {
	p.printf("[%s] %s", shortID(c.ID), ticks(c.To))

	p.mu.Lock()
	_, pending := p.unseen[c.ID]
	if c.To == messaging.StatusSeen {
		delete(p.unseen, c.ID)
	}
	p.mu.Unlock()

	if pending && c.To == messaging.StatusDelivered {
		p.report(c.ID)
	}
}

func (p *presenter) TypingChanged(peer presence.Peer, active bool) {
	name := peer.DisplayName
	if name == "" {
		name = shortID(peer.Identity)
	}
	if active {
		p.printf("%s is typing...", name)
	}
}

func (p *presenter) OnlineCountChanged(count int) {
	p.printf("%s online", humanize.Comma(int64(count)))

	p.mu.Lock()
	ids := make([]string, 0, len(p.unseen))
	for id := range p.unseen {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	sort.Strings(ids)
	p.report(ids...)
}
