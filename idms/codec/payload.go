package codec

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/sha3"

	"github.com/TheusHen/idms/idms/crypto"
	"github.com/TheusHen/idms/idms/directory"
	"github.com/TheusHen/idms/idms/identity"
	"github.com/TheusHen/idms/idms/protocol"
)

// DefaultMaxPlaintext caps decompressed message size.
const DefaultMaxPlaintext = 4 << 20

const signingDomain = "idms/v1 message"

var (
	ErrFieldTooLong = errors.New("codec: field too long")
	ErrNoContext    = errors.New("codec: encrypted payload without a symmetric context")
)

// Payload is a built message ready to be framed.
// Body is the wire body: plaintext, or the compressed and/or sealed form
// described by Flags. Signature always covers the plaintext.
type Payload struct {
	SenderID    string
	RecipientID string
	Flags       protocol.Flags
	Body        []byte
	Signature   []byte
}

func (p Payload) Encrypted() bool  { return p.Flags.Has(protocol.FlagEncrypted) }
func (p Payload) Compressed() bool { return p.Flags.Has(protocol.FlagCompressed) }

// Frame converts p into its wire frame.
func (p Payload) Frame() protocol.Communicate {
	return protocol.Communicate{
		PeerID:     p.SenderID,
		Flags:      p.Flags,
		Ciphertext: p.Body,
		Signature:  p.Signature,
	}
}

// FromFrame rebuilds the payload of a received frame addressed to recipient.
func FromFrame(f protocol.Communicate, recipient string) Payload {
	return Payload{
		SenderID:    f.PeerID,
		RecipientID: recipient,
		Flags:       f.Flags,
		Body:        f.Ciphertext,
		Signature:   f.Signature,
	}
}

type options struct {
	seal     *crypto.SymContext
	compress bool
}

type Option func(*options)

// WithSeal encrypts the body with sc. Each build consumes one nonce.
func WithSeal(sc *crypto.SymContext) Option { return func(o *options) { o.seal = sc } }

// WithCompression LZ4-compresses the body before sealing.
func WithCompression() Option { return func(o *options) { o.compress = true } }

// SigningBytes returns the canonical bytes signed for a message.
// Format: domain | u16 len | sender | u16 len | recipient | SHA3-256(plaintext)
func SigningBytes(sender, recipient string, plaintext []byte) ([]byte, error) {
	if len(sender) > math.MaxUint16 || len(recipient) > math.MaxUint16 {
		return nil, ErrFieldTooLong
	}
	digest := sha3.Sum256(plaintext)

	b := make([]byte, 0, len(signingDomain)+4+len(sender)+len(recipient)+len(digest))
	b = append(b, signingDomain...)
	b = binary.BigEndian.AppendUint16(b, uint16(len(sender)))
	b = append(b, sender...)
	b = binary.BigEndian.AppendUint16(b, uint16(len(recipient)))
	b = append(b, recipient...)
	return append(b, digest[:]...), nil
}

// Build signs contents as sender for recipient and applies the requested transforms.
func Build(sender identity.Identity, contents []byte, recipient string, opts ...Option) (Payload, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	toSign, err := SigningBytes(sender.ID, recipient, contents)
	if err != nil {
		return Payload{}, err
	}
	p := Payload{
		SenderID:    sender.ID,
		RecipientID: recipient,
		Signature:   sender.Sign(toSign),
		Body:        append([]byte(nil), contents...),
	}

	if o.compress {
		if p.Body, err = Compress(p.Body); err != nil {
			return Payload{}, err
		}
		p.Flags |= protocol.FlagCompressed
	}
	if o.seal != nil {
		if p.Body, err = o.seal.Seal(p.Body, nil); err != nil {
			return Payload{}, fmt.Errorf("seal: %w", err)
		}
		p.Flags |= protocol.FlagEncrypted
	}
	return p, nil
}

// Decode recovers the plaintext of p. sc is required when p is encrypted and
// consumes one nonce. Decompressed output is capped at limit bytes.
func Decode(p Payload, sc *crypto.SymContext, limit int) ([]byte, error) {
	body := p.Body
	if p.Encrypted() {
		if sc == nil {
			return nil, ErrNoContext
		}
		opened, err := sc.Open(body, nil)
		if err != nil {
			return nil, err
		}
		body = opened
	}
	if p.Compressed() {
		inflated, err := Decompress(body, limit)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", crypto.ErrAuthenticationFailed, err)
		}
		body = inflated
	}
	return body, nil
}

// VerifySignature checks sig over plaintext against an Ed25519 public key.
func VerifySignature(publicKey []byte, sender, recipient string, plaintext, sig []byte) bool {
	toVerify, err := SigningBytes(sender, recipient, plaintext)
	if err != nil {
		return false
	}
	return identity.Verify(publicKey, toVerify, sig)
}

// Verify checks p's signature over plaintext using the key the directory holds
// for p.SenderID. Unknown senders and lookup errors verify as false.
func Verify(ctx context.Context, dir directory.KeyStore[string], p Payload, plaintext []byte) bool {
	rec, ok, err := dir.GetKey(ctx, p.SenderID)
	if err != nil || !ok {
		return false
	}
	return VerifySignature(rec.PublicKey[:], p.SenderID, p.RecipientID, plaintext, p.Signature)
}
