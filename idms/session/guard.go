package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TheusHen/idms/idms/codec"
	"github.com/TheusHen/idms/idms/crypto"
	"github.com/TheusHen/idms/idms/directory"
	"github.com/TheusHen/idms/idms/identity"
	"github.com/TheusHen/idms/idms/protocol"
)

type peerSession struct {
	publicKey [32]byte
	secret    [32]byte
	sym       *crypto.SymContext
}

// Guard is the per-connection state machine. It consumes frames from its Inbox
// in arrival order and publishes decoded messages to its Watch.
//
// Each guard holds a fresh X25519 key, so symmetric keys never repeat across
// connections even when the same identities meet again.
//
// Next, Handle and Run must be driven from one goroutine; State, PublicKey and
// Close may be called from any.
type Guard struct {
	id       string
	self     identity.Identity
	keys     directory.KeyStore[string]
	cfg      Config
	log      *zap.Logger
	inbox    *Inbox
	watch    *Watch
	announce protocol.GuardKey

	mu       sync.Mutex
	guardKey crypto.X25519KeyPair
	peers    map[string]*peerSession
	closed   bool
}

// NewGuard creates a guard for the local identity self. keys may be shared with other guards.
func NewGuard(self identity.Identity, keys directory.KeyStore[string], opts ...Option) (*Guard, error) {
	cfg := NewConfig(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kp, err := crypto.GenerateX25519()
	if err != nil {
		return nil, fmt.Errorf("guard key: %w", err)
	}
	announce, err := codec.SignGuardKey(self, kp.PublicKey[:])
	if err != nil {
		crypto.Wipe(kp.PrivateKey[:])
		return nil, err
	}
	id := uuid.NewString()
	return &Guard{
		id:       id,
		self:     self,
		keys:     keys,
		cfg:      cfg,
		log:      cfg.Logger.With(zap.String("guard_id", id), zap.String("local_id", self.ID)),
		inbox:    NewInbox(cfg.QueueSize),
		watch:    NewWatch(),
		announce: announce,
		guardKey: kp,
		peers:    map[string]*peerSession{},
	}, nil
}

// ID returns the guard's instance id, used to tag its log lines.
func (g *Guard) ID() string { return g.id }

func (g *Guard) Inbox() *Inbox { return g.inbox }

func (g *Guard) Watch() *Watch { return g.watch }

// PublicKey returns the guard's X25519 key that peers agree a secret with.
func (g *Guard) PublicKey() []byte {
	return append([]byte(nil), g.announce.PublicKey...)
}

// Announcement returns the GuardKey frame that tells the connected peer which
// key to use, signed by the local identity.
func (g *Guard) Announcement() protocol.GuardKey {
	a := g.announce
	a.PublicKey = append([]byte(nil), a.PublicKey...)
	a.Signature = append([]byte(nil), a.Signature...)
	return a
}

func (g *Guard) State(peerID string) PeerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.peers[peerID]; ok {
		return Synced
	}
	return Idle
}

// Next waits for the next frame and processes it.
// It returns ErrClosed once the inbox is closed and drained.
func (g *Guard) Next(ctx context.Context) (*DecodedMessage, error) {
	f, err := g.inbox.Recv(ctx)
	if err != nil {
		return nil, err
	}
	return g.Handle(ctx, f)
}

// Handle processes one frame.
//
// Nil and Sync frames yield no message. A Communicate frame always yields a message;
// when it failed authentication the message is returned together with a *FrameError.
func (g *Guard) Handle(ctx context.Context, f protocol.Frame) (*DecodedMessage, error) {
	switch v := f.(type) {
	case protocol.Nil:
		return nil, nil
	case protocol.Sync:
		if err := g.sync(ctx, v); err != nil {
			g.log.Warn("sync rejected", zap.String("peer_id", v.PeerID), zap.Error(err))
			return nil, &FrameError{Type: v.Type(), PeerID: v.PeerID, Err: err}
		}
		return nil, nil
	case protocol.Communicate:
		msg := g.communicate(ctx, v)
		g.watch.Publish(msg)
		if !msg.Passed() {
			g.log.Warn("message failed authentication",
				zap.String("peer_id", v.PeerID),
				zap.Bool("encrypted", msg.Encrypted),
				zap.Error(msg.Err))
			return msg, &FrameError{Type: v.Type(), PeerID: v.PeerID, Err: msg.Err}
		}
		g.log.Debug("message passed",
			zap.String("peer_id", v.PeerID),
			zap.Bool("encrypted", msg.Encrypted),
			zap.Int("size", len(msg.Payload)))
		return msg, nil
	case protocol.RedBox:
		return nil, &FrameError{Type: v.Type(), PeerID: v.PeerID, Err: ErrNotImplemented}
	default:
		fe := &FrameError{Err: protocol.ErrInvalidType}
		if f != nil {
			fe.Type, fe.PeerID = f.Type(), protocol.PeerIDOf(f)
		}
		return nil, fe
	}
}

func (g *Guard) sync(ctx context.Context, s protocol.Sync) error {
	if s.PeerID == "" {
		return ErrEmptyPeerID
	}
	pub, err := crypto.ParsePublicKey(s.PublicKey)
	if err != nil {
		return err
	}
	peerX, err := crypto.EdwardsToMontgomery(pub[:])
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	cur, ok := g.peers[s.PeerID]
	resync := ok && cur.publicKey == pub
	secret, err := crypto.DeriveSharedSecret(g.guardKey.PrivateKey[:], peerX[:])
	g.mu.Unlock()
	if err != nil {
		return err
	}
	defer crypto.Wipe(secret[:])

	// The context is built before the directory is touched so a rejected
	// sync leaves no record behind.
	var next *peerSession
	if !resync {
		sym, err := g.newSymContext(secret)
		if err != nil {
			return err
		}
		next = &peerSession{publicKey: pub, secret: secret, sym: sym}
	}

	prev, replaced, err := g.keys.SetKey(ctx, s.PeerID, directory.NewPeerRecord(s.PeerID, pub, secret))
	if err != nil {
		if next != nil {
			next.close()
		}
		return fmt.Errorf("directory: %w", err)
	}
	rec := directory.PeerRecord{PeerID: s.PeerID, PublicKey: pub}
	keyChanged := replaced && rec.KeyChanged(prev)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		if next != nil {
			next.close()
		}
		return ErrClosed
	}
	if next == nil {
		g.mu.Unlock()
		g.log.Debug("peer re-synced", zap.String("peer_id", s.PeerID))
		return nil
	}
	if old, ok := g.peers[s.PeerID]; ok {
		old.close()
	}
	g.peers[s.PeerID] = next
	g.mu.Unlock()

	g.log.Info("peer synced",
		zap.String("peer_id", s.PeerID),
		zap.String("fingerprint", identity.Fingerprint(pub[:])),
		zap.Bool("key_changed", keyChanged),
		zap.Stringer("algorithm", g.cfg.Algorithm))
	return nil
}

func (g *Guard) newSymContext(secret [32]byte) (*crypto.SymContext, error) {
	symKey, err := crypto.DeriveSymmetricKey(secret)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(symKey[:])
	return crypto.NewSymContext(symKey[:], g.cfg.Algorithm)
}

func (g *Guard) session(peerID string) *peerSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peers[peerID]
}

func (g *Guard) communicate(ctx context.Context, c protocol.Communicate) *DecodedMessage {
	msg := &DecodedMessage{PeerID: c.PeerID, Encrypted: c.Flags.Has(protocol.FlagEncrypted)}
	fail := func(err error) *DecodedMessage {
		msg.Status = AuthFailed
		msg.Err = err
		return msg
	}

	ps := g.session(c.PeerID)
	var sym *crypto.SymContext
	if msg.Encrypted {
		if ps == nil {
			return fail(ErrUnknownPeer)
		}
		sym = ps.sym
	}

	// Open before any lookup: every sealed frame consumes exactly one nonce
	// whatever the outcome, keeping the counter in step with the sender.
	p := codec.FromFrame(c, g.self.ID)
	plaintext, decodeErr := codec.Decode(p, sym, g.cfg.MaxPlaintext)

	rec, ok, err := g.keys.GetKey(ctx, c.PeerID)
	switch {
	case decodeErr != nil:
		return fail(decodeErr)
	case err != nil:
		return fail(fmt.Errorf("directory: %w", err))
	case !ok:
		return fail(ErrUnknownPeer)
	}
	if !codec.VerifySignature(rec.PublicKey[:], p.SenderID, p.RecipientID, plaintext, p.Signature) {
		return fail(crypto.ErrAuthenticationFailed)
	}

	msg.Status = AuthPassed
	msg.Payload = plaintext
	switch {
	case ps != nil:
		msg.SharedKey = ps.secret
	case rec.SharedSecret != nil:
		msg.SharedKey = *rec.SharedSecret
	}
	return msg
}

// Run processes frames until the inbox is closed or ctx ends.
// Per-frame failures are logged and do not stop the loop. The guard is closed
// on return, so its symmetric contexts can never be resumed.
func (g *Guard) Run(ctx context.Context) error {
	defer g.Close()
	g.log.Debug("guard running")
	for {
		_, err := g.Next(ctx)
		if err == nil {
			continue
		}
		var fe *FrameError
		switch {
		case errors.As(err, &fe):
			// Already logged by Handle for Sync and Communicate.
			if errors.Is(err, ErrNotImplemented) || errors.Is(err, protocol.ErrInvalidType) {
				g.log.Warn("frame ignored", zap.Stringer("type", fe.Type), zap.String("peer_id", fe.PeerID), zap.Error(fe.Err))
			}
		case errors.Is(err, ErrClosed):
			return nil
		default:
			return err
		}
	}
}

// Close stops the guard: the inbox refuses new frames, every symmetric context
// is retired and watchers are released.
func (g *Guard) Close() {
	g.inbox.Close()

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	crypto.Wipe(g.guardKey.PrivateKey[:])
	for id, ps := range g.peers {
		ps.close()
		delete(g.peers, id)
	}
	g.mu.Unlock()

	g.watch.Close()
	g.log.Debug("guard closed")
}

func (ps *peerSession) close() {
	ps.sym.Close()
	crypto.Wipe(ps.secret[:])
}
