package chat

import (
	"context"
	"sync"
)

// Lifecycle is the in-flight flag and cancellation handle shared by every
// hook of a process. At most one exchange runs at a time; a send attempted
// while another is running is dropped, not queued.
type Lifecycle struct {
	mu      sync.Mutex
	loading bool
	cancel  context.CancelFunc
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// TryBegin sets the in-flight flag and returns a context that Cancel aborts.
// It returns false without side effects if an exchange is already running.
func (l *Lifecycle) TryBegin(parent context.Context) (context.Context, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loading {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	l.loading = true
	l.cancel = cancel
	return ctx, true
}

// End clears the in-flight flag and releases the handle.
func (l *Lifecycle) End() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Cancel aborts the running exchange. It reports whether there was one.
func (l *Lifecycle) Cancel() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loading || l.cancel == nil {
		return false
	}
	l.cancel()
	return true
}

func (l *Lifecycle) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}
