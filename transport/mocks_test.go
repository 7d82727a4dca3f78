package transport

import (
	"context"
	"sync"
	"time"

	"github.com/opd-ai/relaysync/event"
)

type recordingHandler struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	events      []event.Event
}

func (r *recordingHandler) HandleConnect(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
}

func (r *recordingHandler) HandleDisconnect(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects++
}

func (r *recordingHandler) HandleEvent(_ context.Context, ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingHandler) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects, r.disconnects
}

func (r *recordingHandler) has(pred func(event.Event) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if pred(ev) {
			return true
		}
	}
	return false
}

// countingSleeper records requested delays and cancels after limit sleeps.
type countingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	if len(s.delays) >= s.limit {
		s.cancel()
	}
	s.mu.Unlock()
	return ctx.Err()
}
