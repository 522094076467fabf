package idms

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	q "github.com/quic-go/quic-go"
	"go.uber.org/zap"

	"github.com/TheusHen/idms/idms/codec"
	"github.com/TheusHen/idms/idms/directory"
	"github.com/TheusHen/idms/idms/identity"
	"github.com/TheusHen/idms/idms/protocol"
	"github.com/TheusHen/idms/idms/session"
	"github.com/TheusHen/idms/idms/transport/quic"
)

var ErrNotListening = errors.New("idms: peer is not listening")

// closeTimeout bounds how long Conversation.Close waits for the guard to hang up.
const closeTimeout = 5 * time.Second

// Peer is a high-level helper that combines transport + session.
// It intentionally stays small so applications can pick their own key store and sinks.
type Peer struct {
	Identity identity.Identity
	Keys     directory.KeyStore[string]

	opts     []session.Option
	log      *zap.Logger
	listener *quic.Listener
	wg       sync.WaitGroup
}

// NewPeer creates a peer. Guards created by Serve and senders created by Dial
// inherit opts.
func NewPeer(id identity.Identity, keys directory.KeyStore[string], opts ...session.Option) *Peer {
	cfg := session.NewConfig(opts...)
	return &Peer{
		Identity: id,
		Keys:     keys,
		opts:     opts,
		log:      cfg.Logger.With(zap.String("local_id", id.ID)),
	}
}

func (p *Peer) Listen(addr string) error {
	ln, err := quic.Listen(addr, p.Identity)
	if err != nil {
		return err
	}
	p.listener = ln
	p.log.Info("listening", zap.String("addr", ln.AddrString()), zap.String("fingerprint", p.Identity.Fingerprint()))
	return nil
}

func (p *Peer) ListenAddr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.AddrString()
}

// Serve accepts connections until ctx ends or the listener is closed. Each
// connection gets its own guard over the shared key store; onGuard, if set, is
// called before the guard starts so callers can subscribe to its watch.
func (p *Peer) Serve(ctx context.Context, onGuard func(*session.Guard)) error {
	if p.listener == nil {
		return ErrNotListening
	}
	defer p.wg.Wait()
	for {
		conn, err := p.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		g, err := session.NewGuard(p.Identity, p.Keys, p.opts...)
		if err != nil {
			_ = conn.CloseWithError(quic.CodeProtocolError, "guard unavailable")
			return err
		}
		if onGuard != nil {
			onGuard(g)
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			log := p.log.With(zap.String("guard_id", g.ID()), zap.Stringer("remote", conn.RemoteAddr()))
			log.Info("connection accepted")
			if err := quic.Serve(ctx, conn, g); err != nil {
				log.Warn("connection ended", zap.Error(err))
				return
			}
			log.Info("connection closed")
		}()
	}
}

func (p *Peer) Close() error {
	if p.listener == nil {
		return nil
	}
	return p.listener.Close()
}

// Dial connects to the guard at addr run by the identity guardID holding
// guardIdentityKey. The TLS certificate and the guard's key announcement must
// both match that identity.
func (p *Peer) Dial(ctx context.Context, addr, guardID string, guardIdentityKey ed25519.PublicKey) (*Conversation, error) {
	if err := session.NewConfig(p.opts...).Validate(); err != nil {
		return nil, err
	}
	conn, err := quic.Dial(ctx, addr, guardIdentityKey)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Conversation, error) {
		_ = conn.CloseWithError(quic.CodeProtocolError, err.Error())
		return nil, err
	}
	stream, announced, err := quic.OpenSession(ctx, conn)
	if err != nil {
		return fail(err)
	}
	guardKey, err := codec.VerifyGuardKey(guardIdentityKey, guardID, announced)
	if err != nil {
		return fail(err)
	}
	sender, err := session.NewSender(p.Identity, guardID, guardKey[:], p.opts...)
	if err != nil {
		return fail(err)
	}
	p.log.Debug("guard key accepted", zap.String("guard_id", guardID), zap.String("addr", addr))
	return &Conversation{conn: conn, stream: stream, sender: sender}, nil
}

// Conversation is the client side of one connection to a guard.
// It is safe for concurrent use; frames are written in the order they are built.
type Conversation struct {
	mu     sync.Mutex
	conn   q.Connection
	stream q.Stream
	sender *session.Sender
}

func (c *Conversation) Sync(password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(c.sender.SyncFrame(password))
}

func (c *Conversation) Send(contents []byte, o session.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.sender.Send(contents, o)
	if err != nil {
		return err
	}
	return c.write(f)
}

func (c *Conversation) write(f protocol.Frame) error {
	if err := protocol.WriteFrame(c.stream, f); err != nil {
		return fmt.Errorf("write %s: %w", f.Type(), err)
	}
	return nil
}

// SharedSecret returns the DH secret shared with this connection's guard.
func (c *Conversation) SharedSecret() [32]byte { return c.sender.SharedSecret() }

// Close ends the stream, waits for the guard to hang up and retires the sealing context.
func (c *Conversation) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender.Close()
	err := c.stream.Close()
	select {
	case <-c.conn.Context().Done():
	case <-time.After(closeTimeout):
		_ = c.conn.CloseWithError(quic.CodeNoError, "")
	}
	return err
}
