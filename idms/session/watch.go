package session

import (
	"context"
	"sync"
)

// Watch holds the most recent decoded message and wakes subscribers when it changes.
// Values coalesce: a slow subscriber sees only the latest one.
type Watch struct {
	mu      sync.Mutex
	version uint64
	value   *DecodedMessage
	changed chan struct{}
	closed  bool
}

func NewWatch() *Watch {
	return &Watch{changed: make(chan struct{})}
}

func (w *Watch) Publish(m *DecodedMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.value = m
	w.version++
	close(w.changed)
	w.changed = make(chan struct{})
}

// Latest returns the current value and its version. Version 0 means nothing was published.
func (w *Watch) Latest() (*DecodedMessage, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value, w.version
}

// Close wakes all subscribers; they report ErrClosed once they have seen the last value.
func (w *Watch) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.changed)
}

// Subscribe returns a Watcher that reports values published after this call.
func (w *Watch) Subscribe() *Watcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &Watcher{w: w, seen: w.version}
}

type Watcher struct {
	w    *Watch
	seen uint64
}

// Changed blocks until a value newer than the last one returned is available.
func (r *Watcher) Changed(ctx context.Context) (*DecodedMessage, error) {
	for {
		r.w.mu.Lock()
		if r.w.version != r.seen {
			r.seen = r.w.version
			v := r.w.value
			r.w.mu.Unlock()
			return v, nil
		}
		if r.w.closed {
			r.w.mu.Unlock()
			return nil, ErrClosed
		}
		ch := r.w.changed
		r.w.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
