package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// KeySize is the size of X25519 keys and of the derived shared secret.
const KeySize = 32

var (
	ErrInvalidKeyEncoding = errors.New("crypto: invalid key encoding")
)

// X25519KeyPair represents an X25519 keypair.
type X25519KeyPair struct {
	PublicKey  [KeySize]byte
	PrivateKey [KeySize]byte
}

// GenerateX25519 generates a new X25519 keypair.
func GenerateX25519() (X25519KeyPair, error) {
	var kp X25519KeyPair
	if _, err := io.ReadFull(rand.Reader, kp.PrivateKey[:]); err != nil {
		return X25519KeyPair{}, err
	}
	clamp(&kp.PrivateKey)
	curve25519.ScalarBaseMult(&kp.PublicKey, &kp.PrivateKey)
	return kp, nil
}

// Clamp private key per RFC 7748.
func clamp(k *[KeySize]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

func parseFixed(kind string, b []byte) ([KeySize]byte, error) {
	var k [KeySize]byte
	if len(b) != KeySize {
		return k, fmt.Errorf("%w: %s key is %d bytes, want %d", ErrInvalidKeyEncoding, kind, len(b), KeySize)
	}
	copy(k[:], b)
	return k, nil
}

// ParsePublicKey converts b into a fixed-size public key.
// Any length other than KeySize is rejected.
func ParsePublicKey(b []byte) ([KeySize]byte, error) { return parseFixed("public", b) }

// ParsePrivateKey converts b into a fixed-size private key.
// Any length other than KeySize is rejected.
func ParsePrivateKey(b []byte) ([KeySize]byte, error) { return parseFixed("private", b) }

// DeriveSharedSecret computes the X25519 shared secret between a local private key and a
// peer public key. It is a pure function of its inputs.
//
// Low-order peer points (which yield an all-zero secret) are rejected.
func DeriveSharedSecret(localPrivate, peerPublic []byte) ([KeySize]byte, error) {
	var out [KeySize]byte
	priv, err := ParsePrivateKey(localPrivate)
	if err != nil {
		return out, err
	}
	defer Wipe(priv[:])
	pub, err := ParsePublicKey(peerPublic)
	if err != nil {
		return out, err
	}
	shared, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return out, fmt.Errorf("%w: low-order public key", ErrInvalidKeyEncoding)
	}
	copy(out[:], shared)
	Wipe(shared)
	return out, nil
}

// EdwardsToMontgomery converts an Ed25519 public key to the X25519 public key of the
// same identity.
func EdwardsToMontgomery(publicKey []byte) ([KeySize]byte, error) {
	var out [KeySize]byte
	if len(publicKey) != ed25519.PublicKeySize {
		return out, fmt.Errorf("%w: public key is %d bytes, want %d", ErrInvalidKeyEncoding, len(publicKey), ed25519.PublicKeySize)
	}
	p, err := new(edwards25519.Point).SetBytes(publicKey)
	if err != nil {
		return out, fmt.Errorf("%w: not a curve point", ErrInvalidKeyEncoding)
	}
	copy(out[:], p.BytesMontgomery())
	return out, nil
}

// X25519FromEd25519 derives the X25519 private scalar that matches an Ed25519 private key
// (RFC 8032 section 5.1.5 expansion, clamped).
func X25519FromEd25519(privateKey ed25519.PrivateKey) ([KeySize]byte, error) {
	var out [KeySize]byte
	if len(privateKey) != ed25519.PrivateKeySize {
		return out, fmt.Errorf("%w: private key is %d bytes, want %d", ErrInvalidKeyEncoding, len(privateKey), ed25519.PrivateKeySize)
	}
	h := sha512.Sum512(privateKey.Seed())
	copy(out[:], h[:KeySize])
	Wipe(h[:])
	clamp(&out)
	return out, nil
}
