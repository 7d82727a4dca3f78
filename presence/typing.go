package presence

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDebounce is the idle period after which typing is considered stopped.
const DefaultDebounce = 1500 * time.Millisecond

// Typing debounces local input into typing-start and typing-stop signals.
type Typing struct {
	mu         sync.Mutex
	debounce   time.Duration
	clock      TimeProvider
	emit       func(active bool)
	timer      Timer
	generation uint64
	active     bool
}

// NewTyping creates a debouncer that calls emit with true on start and false on
// stop. emit is invoked without internal locks held. A zero debounce uses
// DefaultDebounce; a nil clock uses the package default.
func NewTyping(debounce time.Duration, clock TimeProvider, emit func(active bool)) *Typing {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Typing{
		debounce: debounce,
		clock:    getTimeProvider(clock),
		emit:     emit,
	}
}

// Input records an input-intent event.
func (t *Typing) Input() {
	t.mu.Lock()
	started := !t.active
	t.active = true
	t.armLocked()
	t.mu.Unlock()

	if started {
		logrus.WithFields(logrus.Fields{
			"function": "Typing.Input",
		}).Debug("Typing started")
		t.emit(true)
	}
}

// Stop cancels any pending timer and emits stop if typing was active.
func (t *Typing) Stop() {
	t.mu.Lock()
	t.cancelLocked()
	wasActive := t.active
	t.active = false
	t.mu.Unlock()

	if wasActive {
		t.emit(false)
	}
}

// Active reports whether a typing-start is outstanding.
func (t *Typing) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Typing) armLocked() {
	t.cancelLocked()
	gen := t.generation
	t.timer = t.clock.AfterFunc(t.debounce, func() { t.expire(gen) })
}

func (t *Typing) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
}

// expire runs on the timer goroutine. A callback from a timer that was
// cancelled after it started firing carries a stale generation and is ignored.
func (t *Typing) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.generation || !t.active {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.active = false
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Typing.expire",
	}).Debug("Typing stopped after idle period")
	t.emit(false)
}
