package locker

import (
	"context"
	"github.com/samber/lo"
	"sync"
)

type (
	// Locker grants exclusive use of a set of named resources. A request is
	// granted all of its names at once, and requests that share a name are
	// granted in arrival order.
	Locker interface {
		Acquire(ctx context.Context, names []string) (release func(), err error)
		Held(name string) bool
		Waiting() int
	}

	waiter struct {
		names   []string
		ready   chan struct{}
		granted bool
	}

	resourceLocker struct {
		mu    sync.Mutex
		held  map[string]bool
		queue []*waiter
	}
)

func New() Locker {
	return &resourceLocker{held: make(map[string]bool)}
}

// Acquire blocks until every name is free and no earlier request for any of
// them is still waiting. If ctx ends first the request leaves the queue.
func (l *resourceLocker) Acquire(ctx context.Context, names []string) (func(), error) {
	w := &waiter{names: lo.Uniq(names), ready: make(chan struct{})}

	l.mu.Lock()
	l.queue = append(l.queue, w)
	l.grant()
	l.mu.Unlock()

	select {
	case <-w.ready:
		return l.releaser(w), nil
	case <-ctx.Done():
		l.mu.Lock()
		defer l.mu.Unlock()
		if w.granted {
			l.free(w)
		} else {
			l.remove(w)
		}
		l.grant()
		return nil, ctx.Err()
	}
}

func (l *resourceLocker) Held(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[name]
}

func (l *resourceLocker) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *resourceLocker) releaser(w *waiter) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.free(w)
			l.grant()
		})
	}
}

// grant must be called with mu held. It walks the queue in order and grants
// every waiter whose names are neither held nor claimed by an earlier waiter.
func (l *resourceLocker) grant() {
	claimed := make(map[string]bool)
	pending := l.queue[:0]
	for _, w := range l.queue {
		if l.available(w, claimed) {
			for _, name := range w.names {
				l.held[name] = true
			}
			w.granted = true
			close(w.ready)
			continue
		}
		for _, name := range w.names {
			claimed[name] = true
		}
		pending = append(pending, w)
	}
	for i := len(pending); i < len(l.queue); i++ {
		l.queue[i] = nil
	}
	l.queue = pending
}

func (l *resourceLocker) available(w *waiter, claimed map[string]bool) bool {
	for _, name := range w.names {
		if l.held[name] || claimed[name] {
			return false
		}
	}
	return true
}

func (l *resourceLocker) free(w *waiter) {
	for _, name := range w.names {
		delete(l.held, name)
	}
}

func (l *resourceLocker) remove(w *waiter) {
	for i, next := range l.queue {
		if next == w {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}
