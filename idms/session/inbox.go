package session

import (
	"context"
	"sync"

	"github.com/TheusHen/idms/idms/protocol"
)

// Inbox is the bounded FIFO of frames waiting for a guard.
// Producers either block (Push) or are rejected (TryPush); frames are never dropped.
type Inbox struct {
	ch        chan protocol.Frame
	done      chan struct{}
	closeOnce sync.Once
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Inbox{
		ch:   make(chan protocol.Frame, size),
		done: make(chan struct{}),
	}
}

// Push enqueues f, waiting for room.
func (in *Inbox) Push(ctx context.Context, f protocol.Frame) error {
	select {
	case <-in.done:
		return ErrClosed
	default:
	}
	select {
	case in.ch <- f:
		return nil
	case <-in.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues f or fails with ErrQueueFull.
func (in *Inbox) TryPush(f protocol.Frame) error {
	select {
	case <-in.done:
		return ErrClosed
	default:
	}
	select {
	case in.ch <- f:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting frames. Frames already queued are still delivered.
func (in *Inbox) Close() {
	in.closeOnce.Do(func() { close(in.done) })
}

func (in *Inbox) Len() int { return len(in.ch) }

// Recv returns the next queued frame. After Close it keeps returning queued
// frames until the queue is empty, then ErrClosed.
func (in *Inbox) Recv(ctx context.Context) (protocol.Frame, error) {
	select {
	case f := <-in.ch:
		return f, nil
	default:
	}
	select {
	case f := <-in.ch:
		return f, nil
	case <-in.done:
		select {
		case f := <-in.ch:
			return f, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

