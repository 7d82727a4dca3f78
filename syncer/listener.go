package syncer

import (
	"github.com/opd-ai/relaysync/messaging"
	"github.com/opd-ai/relaysync/presence"
	"github.com/opd-ai/relaysync/status"
)

// Listener receives change notifications for rendering.
// Callbacks are never invoked while the Engine holds its lock.
type Listener interface {
	MessageAdded(rec messaging.Record)
	MessageRemoved(id string)
	StatusChanged(change status.Change)
	TypingChanged(peer presence.Peer, active bool)
	OnlineCountChanged(count int)
}

// ListenerFuncs adapts optional functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnMessageAdded       func(rec messaging.Record)
	OnMessageRemoved     func(id string)
	OnStatusChanged      func(change status.Change)
	OnTypingChanged      func(peer presence.Peer, active bool)
	OnOnlineCountChanged func(count int)
}

func (l ListenerFuncs) MessageAdded(rec messaging.Record) {
	if l.OnMessageAdded != nil {
		l.OnMessageAdded(rec)
	}
}

func (l ListenerFuncs) MessageRemoved(id string) {
	if l.OnMessageRemoved != nil {
		l.OnMessageRemoved(id)
	}
}

func (l ListenerFuncs) StatusChanged(change status.Change) {
	if l.OnStatusChanged != nil {
		l.OnStatusChanged(change)
	}
}

func (l ListenerFuncs) TypingChanged(peer presence.Peer, active bool) {
	if l.OnTypingChanged != nil {
		l.OnTypingChanged(peer, active)
	}
}

func (l ListenerFuncs) OnlineCountChanged(count int) {
	if l.OnOnlineCountChanged != nil {
		l.OnOnlineCountChanged(count)
	}
}

// notifications queues listener calls made under the engine lock.
type notifications []func(Listener)

func (n *notifications) messageAdded(rec messaging.Record) {
	*n = append(*n, func(l Listener) { l.MessageAdded(rec) })
}

func (n *notifications) messageRemoved(id string) {
	*n = append(*n, func(l Listener) { l.MessageRemoved(id) })
}

func (n *notifications) statusChanged(change status.Change) {
	*n = append(*n, func(l Listener) { l.StatusChanged(change) })
}

func (n *notifications) typingChanged(peer presence.Peer, active bool) {
	*n = append(*n, func(l Listener) { l.TypingChanged(peer, active) })
}

func (n *notifications) onlineCountChanged(count int) {
	*n = append(*n, func(l Listener) { l.OnlineCountChanged(count) })
}

func (n notifications) dispatch(l Listener) {
	for _, call := range n {
		call(l)
	}
}
