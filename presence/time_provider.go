package presence

import "time"

// Timer is a cancellable deferred callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call stopped the timer
	// before it fired.
	Stop() bool
}

// TimeProvider creates timers. Implementations must be safe for concurrent use.
type TimeProvider interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealTimeProvider uses the standard library timers.
type RealTimeProvider struct{}

// AfterFunc calls f in its own goroutine after d.
func (RealTimeProvider) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

var defaultTimeProvider TimeProvider = RealTimeProvider{}

// SetDefaultTimeProvider sets the package-level time provider for testing.
// Pass nil to reset to the default implementation.
func SetDefaultTimeProvider(tp TimeProvider) {
	if tp == nil {
		tp = RealTimeProvider{}
	}
	defaultTimeProvider = tp
}

func getTimeProvider(tp TimeProvider) TimeProvider {
	if tp != nil {
		return tp
	}
	return defaultTimeProvider
}
