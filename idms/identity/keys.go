package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/TheusHen/idms/idms/crypto"
)

var (
	ErrEmptyID         = errors.New("identity: empty id")
	ErrKeyPairMismatch = errors.New("identity: public key does not match private key")
)

// Identity is the local process identity: a peer id plus an Ed25519 keypair.
// The same key signs messages and, through its X25519 form, agrees shared secrets.
type Identity struct {
	ID         string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

func Generate(id string) (Identity, error) {
	if id == "" {
		return Identity{}, ErrEmptyID
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: id, PublicKey: pub, PrivateKey: priv}, nil
}

// FromSeed rebuilds an identity from its 32-byte Ed25519 seed.
func FromSeed(id string, seed []byte) (Identity, error) {
	if id == "" {
		return Identity{}, ErrEmptyID
	}
	if len(seed) != ed25519.SeedSize {
		return Identity{}, fmt.Errorf("%w: seed is %d bytes, want %d", crypto.ErrInvalidKeyEncoding, len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return Identity{ID: id, PublicKey: priv.Public().(ed25519.PublicKey), PrivateKey: priv}, nil
}

func New(id string, publicKey, privateKey []byte) (Identity, error) {
	if id == "" {
		return Identity{}, ErrEmptyID
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return Identity{}, fmt.Errorf("%w: public key is %d bytes", crypto.ErrInvalidKeyEncoding, len(publicKey))
	}
	if len(privateKey) != ed25519.PrivateKeySize {
		return Identity{}, fmt.Errorf("%w: private key is %d bytes", crypto.ErrInvalidKeyEncoding, len(privateKey))
	}
	priv := ed25519.PrivateKey(append([]byte(nil), privateKey...))
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), publicKey) {
		return Identity{}, ErrKeyPairMismatch
	}
	return Identity{ID: id, PublicKey: ed25519.PublicKey(append([]byte(nil), publicKey...)), PrivateKey: priv}, nil
}

func (i Identity) Sign(message []byte) []byte {
	return ed25519.Sign(i.PrivateKey, message)
}

// Verify reports whether sig is a valid signature of message by publicKey.
// Wrong-length keys verify as false instead of panicking.
func Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// X25519Private returns the key-agreement form of the private key.
func (i Identity) X25519Private() ([crypto.KeySize]byte, error) {
	return crypto.X25519FromEd25519(i.PrivateKey)
}

// X25519Public returns the key-agreement form of the public key.
func (i Identity) X25519Public() ([crypto.KeySize]byte, error) {
	return crypto.EdwardsToMontgomery(i.PublicKey)
}

// SharedSecret derives the DH secret between this identity and a peer's Ed25519 public key.
func (i Identity) SharedSecret(peerPublicKey []byte) ([crypto.KeySize]byte, error) {
	peer, err := crypto.EdwardsToMontgomery(peerPublicKey)
	if err != nil {
		return [crypto.KeySize]byte{}, err
	}
	priv, err := i.X25519Private()
	if err != nil {
		return [crypto.KeySize]byte{}, err
	}
	defer crypto.Wipe(priv[:])
	return crypto.DeriveSharedSecret(priv[:], peer[:])
}

func (i Identity) Fingerprint() string {
	return Fingerprint(i.PublicKey)
}
