package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Body layout, all integers big endian:
//
//	Nil:         empty
//	Sync:        u16 len | peer id | u16 len | password | u16 len | public key
//	Communicate: u16 len | peer id | 1 byte flags | u32 len | ciphertext | u16 len | signature
//	RedBox:      u16 len | peer id | u32 len | payload
//	GuardKey:    u16 len | peer id | u16 len | public key | u16 len | signature

type bodyWriter struct {
	b   []byte
	err error
}

func (w *bodyWriter) short(field string, v []byte) {
	if w.err != nil {
		return
	}
	if len(v) > math.MaxUint16 {
		w.err = fmt.Errorf("%w: %s is %d bytes", ErrFrameTooLarge, field, len(v))
		return
	}
	w.b = binary.BigEndian.AppendUint16(w.b, uint16(len(v)))
	w.b = append(w.b, v...)
}

func (w *bodyWriter) long(field string, v []byte) {
	if w.err != nil {
		return
	}
	if len(v) > MaxFramePayload {
		w.err = fmt.Errorf("%w: %s is %d bytes", ErrFrameTooLarge, field, len(v))
		return
	}
	w.b = binary.BigEndian.AppendUint32(w.b, uint32(len(v)))
	w.b = append(w.b, v...)
}

type bodyReader struct {
	b   []byte
	err error
}

func (r *bodyReader) take(field string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > len(r.b) {
		r.err = fmt.Errorf("%w: %s truncated", ErrMalformedFrame, field)
		return nil
	}
	v := r.b[:n:n]
	r.b = r.b[n:]
	return v
}

func (r *bodyReader) short(field string) []byte {
	l := r.take(field+" length", 2)
	if l == nil {
		return nil
	}
	return clone(r.take(field, int(binary.BigEndian.Uint16(l))))
}

func (r *bodyReader) long(field string) []byte {
	l := r.take(field+" length", 4)
	if l == nil {
		return nil
	}
	n := binary.BigEndian.Uint32(l)
	if n > MaxFramePayload {
		r.err = fmt.Errorf("%w: %s is %d bytes", ErrFrameTooLarge, field, n)
		return nil
	}
	return clone(r.take(field, int(n)))
}

func (r *bodyReader) u8(field string) byte {
	v := r.take(field, 1)
	if v == nil {
		return 0
	}
	return v[0]
}

func (r *bodyReader) done() error {
	if r.err == nil && len(r.b) != 0 {
		r.err = fmt.Errorf("%w: %d trailing bytes", ErrMalformedFrame, len(r.b))
	}
	return r.err
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

// MarshalBody encodes the type-specific body of f.
func MarshalBody(f Frame) ([]byte, error) {
	var w bodyWriter
	switch v := f.(type) {
	case Nil:
	case Sync:
		w.short("peer id", []byte(v.PeerID))
		w.short("password", []byte(v.Password))
		w.short("public key", v.PublicKey)
	case Communicate:
		if v.Flags&^knownFlags != 0 {
			return nil, fmt.Errorf("%w: unknown flags %#x", ErrMalformedFrame, uint8(v.Flags))
		}
		w.short("peer id", []byte(v.PeerID))
		w.b = append(w.b, byte(v.Flags))
		w.long("ciphertext", v.Ciphertext)
		w.short("signature", v.Signature)
	case RedBox:
		w.short("peer id", []byte(v.PeerID))
		w.long("payload", v.Payload)
	case GuardKey:
		w.short("peer id", []byte(v.PeerID))
		w.short("public key", v.PublicKey)
		w.short("signature", v.Signature)
	default:
		return nil, ErrInvalidType
	}
	if w.err != nil {
		return nil, w.err
	}
	return w.b, nil
}

// UnmarshalBody decodes a body of type t. Trailing bytes are rejected.
func UnmarshalBody(t MessageType, body []byte) (Frame, error) {
	r := bodyReader{b: body}
	var f Frame
	switch t {
	case MessageTypeNil:
		f = Nil{}
	case MessageTypeSync:
		f = Sync{
			PeerID:    string(r.short("peer id")),
			Password:  string(r.short("password")),
			PublicKey: r.short("public key"),
		}
	case MessageTypeCommunicate:
		c := Communicate{PeerID: string(r.short("peer id"))}
		c.Flags = Flags(r.u8("flags"))
		c.Ciphertext = r.long("ciphertext")
		c.Signature = r.short("signature")
		if r.err == nil && c.Flags&^knownFlags != 0 {
			r.err = fmt.Errorf("%w: unknown flags %#x", ErrMalformedFrame, uint8(c.Flags))
		}
		f = c
	case MessageTypeRedBox:
		f = RedBox{
			PeerID:  string(r.short("peer id")),
			Payload: r.long("payload"),
		}
	case MessageTypeGuardKey:
		f = GuardKey{
			PeerID:    string(r.short("peer id")),
			PublicKey: r.short("public key"),
			Signature: r.short("signature"),
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, t)
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return f, nil
}
