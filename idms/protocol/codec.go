package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxFramePayload limits a single protocol frame payload.
	MaxFramePayload = 1 << 20 // 1 MiB

	headerSize = 5
)

var (
	ErrFrameTooLarge  = errors.New("protocol: frame payload too large")
	ErrInvalidType    = errors.New("protocol: invalid message type")
	ErrMalformedFrame = errors.New("protocol: malformed frame")
)

// Envelope is the basic wire container.
// Format:
//
//	1 byte: type
//	4 bytes: payload length (big endian)
//	N bytes: payload
type Envelope struct {
	Type    MessageType
	Payload []byte
}

// Encode returns the wire form of f.
func Encode(f Frame) ([]byte, error) {
	if f == nil {
		return nil, ErrInvalidType
	}
	body, err := MarshalBody(f)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxFramePayload {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, headerSize, headerSize+len(body))
	out[0] = byte(f.Type())
	binary.BigEndian.PutUint32(out[1:], uint32(len(body)))
	return append(out, body...), nil
}

// WriteFrame writes f with a single Write call so concurrent writers on
// separate streams never interleave partial frames.
func WriteFrame(w io.Writer, f Frame) error {
	b, err := Encode(f)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// ReadEnvelope reads one envelope from r without decoding its body.
// r is read exactly; callers wanting buffering wrap it once, not per frame.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:1]); err != nil {
		return Envelope{}, err
	}
	if _, err := io.ReadFull(r, hdr[1:]); err != nil {
		return Envelope{}, noEOF(err)
	}
	mt := MessageType(hdr[0])
	if mt == 0 {
		return Envelope{}, ErrInvalidType
	}
	payloadLen := binary.BigEndian.Uint32(hdr[1:])
	if payloadLen > MaxFramePayload {
		return Envelope{}, fmt.Errorf("%w: %d", ErrFrameTooLarge, payloadLen)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, noEOF(err)
	}
	return Envelope{Type: mt, Payload: payload}, nil
}

// ReadFrame reads and decodes one frame. A clean end of stream before the
// first header byte returns io.EOF.
func ReadFrame(r io.Reader) (Frame, error) {
	env, err := ReadEnvelope(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalBody(env.Type, env.Payload)
}

// Decode decodes exactly one frame from b.
func Decode(b []byte) (Frame, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrMalformedFrame)
	}
	mt := MessageType(b[0])
	if mt == 0 {
		return nil, ErrInvalidType
	}
	n := binary.BigEndian.Uint32(b[1:headerSize])
	if n > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooLarge, n)
	}
	if uint32(len(b)-headerSize) != n {
		return nil, fmt.Errorf("%w: length %d, have %d", ErrMalformedFrame, n, len(b)-headerSize)
	}
	return UnmarshalBody(mt, b[headerSize:])
}

func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
