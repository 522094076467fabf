package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/TheusHen/idms/idms/codec"
	"github.com/TheusHen/idms/idms/crypto"
	"github.com/TheusHen/idms/idms/identity"
	"github.com/TheusHen/idms/idms/protocol"
)

// SendOptions select the transforms applied to an outgoing message.
type SendOptions struct {
	Encrypt  bool
	Compress bool
}

// Sender is the peer side of a guard: it produces the Sync and Communicate
// frames a guard expects. It owns the sealing context for the guard's key.
//
// Frames must be delivered in the order Send returns them, since the guard
// opens sealed frames with a counter that advances in lockstep.
type Sender struct {
	self      identity.Identity
	recipient string
	secret    [32]byte
	log       *zap.Logger

	mu  sync.Mutex
	sym *crypto.SymContext
}

// NewSender prepares messages from self to the guard identified by recipient.
// guardKey is the X25519 key the guard announced for this connection.
func NewSender(self identity.Identity, recipient string, guardKey []byte, opts ...Option) (*Sender, error) {
	cfg := NewConfig(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	priv, err := self.X25519Private()
	if err != nil {
		return nil, err
	}
	secret, err := crypto.DeriveSharedSecret(priv[:], guardKey)
	crypto.Wipe(priv[:])
	if err != nil {
		return nil, err
	}
	symKey, err := crypto.DeriveSymmetricKey(secret)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(symKey[:])
	sym, err := crypto.NewSymContext(symKey[:], cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Sender{
		self:      self,
		recipient: recipient,
		secret:    secret,
		log:       cfg.Logger.With(zap.String("local_id", self.ID), zap.String("recipient", recipient)),
		sym:       sym,
	}, nil
}

// SyncFrame registers the sender's public key with the guard.
func (s *Sender) SyncFrame(password string) protocol.Sync {
	return protocol.Sync{
		PeerID:    s.self.ID,
		Password:  password,
		PublicKey: append([]byte(nil), s.self.PublicKey...),
	}
}

// Send builds a Communicate frame carrying contents.
func (s *Sender) Send(contents []byte, o SendOptions) (protocol.Communicate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var opts []codec.Option
	if o.Compress {
		opts = append(opts, codec.WithCompression())
	}
	if o.Encrypt {
		opts = append(opts, codec.WithSeal(s.sym))
	}
	p, err := codec.Build(s.self, contents, s.recipient, opts...)
	if err != nil {
		return protocol.Communicate{}, err
	}
	s.log.Debug("message built",
		zap.Bool("encrypted", p.Encrypted()),
		zap.Bool("compressed", p.Compressed()),
		zap.Uint64("next_counter", s.sym.PeekCounter()))
	return p.Frame(), nil
}

// SharedSecret returns the DH secret shared with the guard.
func (s *Sender) SharedSecret() [32]byte { return s.secret }

// Close retires the sealing context.
func (s *Sender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sym.Close()
}
