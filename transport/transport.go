package transport

import (
	"context"
	"errors"
	"time"

	"github.com/opd-ai/relaysync/event"
)

// ErrClosed is returned when a link is used after it was shut down.
var ErrClosed = errors.New("transport closed")

// Handler consumes channel signals and inbound events.
type Handler interface {
	HandleConnect(ctx context.Context)
	HandleDisconnect(ctx context.Context)
	HandleEvent(ctx context.Context, ev event.Event)
}

// Sleeper waits between reconnect attempts. It returns early with ctx.Err()
// when ctx is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// DefaultSleeper waits on a real timer.
type DefaultSleeper struct{}

// Sleep pauses for d or until ctx is done.
func (DefaultSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backoff computes reconnect delays.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff starts at half a second and caps at thirty.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 500 * time.Millisecond, Max: 30 * time.Second}
}

// Delay returns the wait before the given retry attempt, counting from zero.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

// roundTrip passes ev through the wire codec.
func roundTrip(ev event.Event) (event.Event, error) {
	frame, err := event.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return event.Unmarshal(frame)
}
