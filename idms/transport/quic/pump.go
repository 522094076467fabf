package quic

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	q "github.com/quic-go/quic-go"

	"github.com/TheusHen/idms/idms/protocol"
	"github.com/TheusHen/idms/idms/session"
)

// Pump reads frames from r into inbox in wire order, blocking when the inbox is full.
// It returns nil when r ends cleanly between frames.
func Pump(ctx context.Context, r io.Reader, inbox *session.Inbox) error {
	br := bufio.NewReader(r)
	for {
		f, err := protocol.ReadFrame(br)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := inbox.Push(ctx, f); err != nil {
			return err
		}
	}
}

// Serve runs g over the first stream the peer opens on conn and returns once
// the stream ends and every queued frame has been processed. The guard's key
// is announced on the stream before any frame is read. The guard is closed on
// return.
func Serve(ctx context.Context, conn q.Connection, g *session.Guard) error {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		g.Close()
		return fmt.Errorf("accept stream: %w", err)
	}
	if err := protocol.WriteFrame(stream, g.Announcement()); err != nil {
		g.Close()
		_ = conn.CloseWithError(CodeProtocolError, "announce failed")
		return fmt.Errorf("announce guard key: %w", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- g.Run(ctx) }()

	pumpErr := Pump(ctx, stream, g.Inbox())
	g.Inbox().Close()
	err = <-runErr

	switch {
	case pumpErr == nil:
		_ = conn.CloseWithError(CodeNoError, "")
	case errors.Is(pumpErr, protocol.ErrMalformedFrame),
		errors.Is(pumpErr, protocol.ErrInvalidType),
		errors.Is(pumpErr, protocol.ErrFrameTooLarge):
		stream.CancelRead(q.StreamErrorCode(CodeProtocolError))
		_ = conn.CloseWithError(CodeProtocolError, pumpErr.Error())
	}
	if pumpErr != nil && !errors.Is(pumpErr, session.ErrClosed) {
		return pumpErr
	}
	return err
}

// OpenSession opens the frame stream on conn and waits for the guard's key
// announcement. The announcement is returned unverified.
func OpenSession(ctx context.Context, conn q.Connection) (q.Stream, protocol.GuardKey, error) {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, protocol.GuardKey{}, fmt.Errorf("open stream: %w", err)
	}
	// The server sees the stream only once it carries data.
	if err := protocol.WriteFrame(stream, protocol.Nil{}); err != nil {
		return nil, protocol.GuardKey{}, fmt.Errorf("write %s: %w", protocol.MessageTypeNil, err)
	}
	if d, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(d)
	}
	f, err := protocol.ReadFrame(stream)
	_ = stream.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, protocol.GuardKey{}, fmt.Errorf("read guard key: %w", err)
	}
	gk, ok := f.(protocol.GuardKey)
	if !ok {
		return nil, protocol.GuardKey{}, fmt.Errorf("%w: expected %s, got %s", protocol.ErrInvalidType, protocol.MessageTypeGuardKey, f.Type())
	}
	return stream, gk, nil
}
