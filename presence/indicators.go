package presence

import (
	"sort"
	"sync"
)

// Peer is a remote participant shown as typing.
type Peer struct {
	Identity    string
	DisplayName string
}

// Indicators maps peer identities to their typing indicator.
type Indicators struct {
	mu    sync.Mutex
	peers map[string]string
}

// NewIndicators creates an empty registry.
func NewIndicators() *Indicators {
	return &Indicators{peers: make(map[string]string)}
}

// Start shows identity as typing. It reports false if already shown.
func (i *Indicators) Start(identity, displayName string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.peers[identity]; ok {
		return false
	}
	i.peers[identity] = displayName
	return true
}

// Stop removes identity. It reports false if it was not shown.
func (i *Indicators) Stop(identity string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.peers[identity]; !ok {
		return false
	}
	delete(i.peers, identity)
	return true
}

// Active returns the peers currently typing, sorted by identity.
func (i *Indicators) Active() []Peer {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]Peer, 0, len(i.peers))
	for id, name := range i.peers {
		out = append(out, Peer{Identity: id, DisplayName: name})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Identity < out[b].Identity })
	return out
}

// Clear removes all indicators and reports the identities that were shown.
func (i *Indicators) Clear() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	ids := make([]string, 0, len(i.peers))
	for id := range i.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	i.peers = make(map[string]string)
	return ids
}
