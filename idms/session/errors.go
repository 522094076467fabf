package session

import (
	"errors"
	"fmt"

	"github.com/TheusHen/idms/idms/protocol"
)

var (
	ErrUnknownPeer    = errors.New("session: unknown peer")
	ErrNotImplemented = errors.New("session: frame type not implemented")
	ErrClosed         = errors.New("session: closed")
	ErrQueueFull      = errors.New("session: inbound queue full")
	ErrEmptyPeerID    = errors.New("session: empty peer id")
)

// FrameError reports a frame the guard could not process.
// The guard stays usable after returning one.
type FrameError struct {
	Type   protocol.MessageType
	PeerID string
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("session: %s frame from %q: %v", e.Type, e.PeerID, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
