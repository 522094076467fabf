package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TheusHen/idms/idms/protocol"
)

func TestInboxBackpressure(t *testing.T) {
	in := NewInbox(2)
	if err := in.TryPush(protocol.Nil{}); err != nil {
		t.Fatalf("TryPush: %v", err)
	}
	if err := in.TryPush(protocol.Nil{}); err != nil {
		t.Fatalf("TryPush: %v", err)
	}
	if err := in.TryPush(protocol.Nil{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := in.Push(ctx, protocol.Nil{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected blocked Push to time out, got %v", err)
	}

	pushed := make(chan error, 1)
	go func() { pushed <- in.Push(context.Background(), protocol.RedBox{PeerID: "late"}) }()
	if _, err := in.Recv(context.Background()); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-pushed; err != nil {
		t.Fatalf("Push after room was made: %v", err)
	}
	if in.Len() != 2 {
		t.Fatalf("expected 2 queued frames, got %d", in.Len())
	}
}

func TestInboxCloseDrains(t *testing.T) {
	ctx := context.Background()
	in := NewInbox(4)
	_ = in.TryPush(protocol.RedBox{PeerID: "a"})
	_ = in.TryPush(protocol.RedBox{PeerID: "b"})
	in.Close()
	in.Close()

	if err := in.TryPush(protocol.Nil{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from TryPush, got %v", err)
	}
	if err := in.Push(ctx, protocol.Nil{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Push, got %v", err)
	}
	for _, want := range []string{"a", "b"} {
		f, err := in.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if protocol.PeerIDOf(f) != want {
			t.Fatalf("got %q, want %q", protocol.PeerIDOf(f), want)
		}
	}
	if _, err := in.Recv(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after drain, got %v", err)
	}
}

func TestInboxRecvHonoursContext(t *testing.T) {
	in := NewInbox(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := in.Recv(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
