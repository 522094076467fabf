package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/TheusHen/idms/idms/crypto"
)

// Fingerprint returns a short hex fingerprint of a public key for logs and display.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return hex.EncodeToString(sum[:10])
}

// ParseKeyHex decodes a hex key that must be exactly size bytes long.
func ParseKeyHex(s string, size int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrInvalidKeyEncoding, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", crypto.ErrInvalidKeyEncoding, len(b), size)
	}
	return b, nil
}
