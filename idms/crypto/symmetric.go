package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// SymmetricKeySize is the key size of every supported AEAD.
	SymmetricKeySize = 32
	// NonceSize is the nonce size of every supported AEAD.
	// The first 4 bytes carry the little-endian counter, the rest stay zero.
	NonceSize = 12
	// MaxCounter is the last counter value a SymContext will use.
	MaxCounter = math.MaxUint32
)

var (
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")
	ErrNonceExhausted       = errors.New("crypto: nonce counter exhausted, re-key required")
	ErrUnknownAlgorithm     = errors.New("crypto: unknown AEAD algorithm")
)

// Algorithm selects the AEAD used by a SymContext.
type Algorithm uint8

const (
	ChaCha20Poly1305 Algorithm = 1
	AES256GCM        Algorithm = 2
)

func (a Algorithm) String() string {
	switch a {
	case ChaCha20Poly1305:
		return "CHACHA20-POLY1305"
	case AES256GCM:
		return "AES-256-GCM"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether a names a supported AEAD.
func (a Algorithm) Valid() bool {
	return a == ChaCha20Poly1305 || a == AES256GCM
}

// ParseAlgorithm maps a name as returned by Algorithm.String back to its value.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case ChaCha20Poly1305.String():
		return ChaCha20Poly1305, nil
	case AES256GCM.String():
		return AES256GCM, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	switch alg {
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("aes.NewCipher: %w", err)
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, alg)
	}
}

// SymContext seals and opens frames under one key with a private nonce counter.
//
// The context is the single owner of its counter. Copies of the *SymContext pointer are
// handles onto the same counter; there is no way to fork it. Every Seal and Open call
// consumes exactly one counter value, including calls that fail after the nonce was
// taken, so no two operations under the key ever share a nonce.
type SymContext struct {
	mu   sync.Mutex
	alg  Algorithm
	aead cipher.AEAD
	next uint64 // > MaxCounter once exhausted
}

// NewSymContext creates a context for a 32-byte key. The counter starts at zero.
func NewSymContext(key []byte, alg Algorithm) (*SymContext, error) {
	if len(key) != SymmetricKeySize {
		return nil, fmt.Errorf("%w: symmetric key is %d bytes, want %d", ErrInvalidKeyEncoding, len(key), SymmetricKeySize)
	}
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	return &SymContext{alg: alg, aead: aead}, nil
}

// take reserves the next nonce. c.mu must be held.
func (c *SymContext) take() ([NonceSize]byte, error) {
	var nonce [NonceSize]byte
	if c.next > MaxCounter {
		return nonce, ErrNonceExhausted
	}
	binary.LittleEndian.PutUint32(nonce[:4], uint32(c.next))
	c.next++
	return nonce, nil
}

// Seal encrypts and authenticates plaintext.
// Returns: ciphertext || tag (16 bytes)
func (c *SymContext) Seal(plaintext, additionalData []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.take()
	if err != nil {
		return nil, err
	}
	return c.aead.Seal(nil, nonce[:], plaintext, additionalData), nil
}

// Open verifies and decrypts ciphertext || tag produced by the peer context's Seal.
// Every failure is reported as ErrAuthenticationFailed.
func (c *SymContext) Open(sealed, additionalData []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.take()
	if err != nil {
		return nil, err
	}
	if len(sealed) < c.aead.Overhead() {
		return nil, ErrAuthenticationFailed
	}
	plaintext, err := c.aead.Open(nil, nonce[:], sealed, additionalData)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// PeekCounter returns the counter value the next Seal or Open will use.
func (c *SymContext) PeekCounter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Exhausted reports whether the context refuses further operations.
func (c *SymContext) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next > MaxCounter
}

// Algorithm returns the AEAD the context was created with.
func (c *SymContext) Algorithm() Algorithm { return c.alg }

// Overhead returns the authentication tag overhead.
func (c *SymContext) Overhead() int { return c.aead.Overhead() }

// Close retires the context. It behaves as exhausted afterwards, so a key that was in use
// can never be picked up again with a reset counter.
func (c *SymContext) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = MaxCounter + 1
}
