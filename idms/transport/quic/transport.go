// Package quic carries session frames over QUIC streams.
//
// Each connection uses a single client-initiated stream. The client opens it
// with a Nil frame, the server answers with the guard's signed GuardKey frame,
// then the client writes a Sync frame followed by Communicate frames. The
// server pumps them into one session guard per connection.
//
// TLS certificates carry the server's identity key; clients pin that key.
package quic

import (
	"context"
	"crypto/ed25519"
	"net"
	"time"

	q "github.com/quic-go/quic-go"

	"github.com/TheusHen/idms/idms/identity"
)

const (
	CodeNoError       q.ApplicationErrorCode = 0
	CodeProtocolError q.ApplicationErrorCode = 1
)

// Config returns the QUIC settings used on both sides.
func Config() *q.Config {
	return &q.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
}

type Listener struct {
	inner *q.Listener
}

// Listen accepts connections on addr, presenting a certificate for self.
func Listen(addr string, self identity.Identity) (*Listener, error) {
	tlsConf, err := NewServerTLSConfig(self)
	if err != nil {
		return nil, err
	}
	ln, err := q.ListenAddr(addr, tlsConf, Config())
	if err != nil {
		return nil, err
	}
	return &Listener{inner: ln}, nil
}

func (l *Listener) Accept(ctx context.Context) (q.Connection, error) {
	return l.inner.Accept(ctx)
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) AddrString() string {
	if l.inner == nil {
		return ""
	}
	return l.inner.Addr().String()
}

func (l *Listener) Close() error { return l.inner.Close() }

// Dial connects to addr and fails the handshake unless the server presents
// serverKey.
func Dial(ctx context.Context, addr string, serverKey ed25519.PublicKey) (q.Connection, error) {
	return q.DialAddr(ctx, addr, NewClientTLSConfig(serverKey), Config())
}
