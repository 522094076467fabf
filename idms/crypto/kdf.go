package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const symmetricKeyInfo = "idms/v1 symmetric key"

// DeriveKey derives a key of the specified length using HKDF-SHA256.
// salt can be nil (uses zero salt), info provides context binding.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	hk := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, length)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveSymmetricKey derives the full-length AEAD key for a SymContext from a DH shared
// secret. Both ends of a conversation derive the same key from the same secret.
func DeriveSymmetricKey(sharedSecret [KeySize]byte) ([SymmetricKeySize]byte, error) {
	var out [SymmetricKeySize]byte
	key, err := DeriveKey(sharedSecret[:], nil, []byte(symmetricKeyInfo), SymmetricKeySize)
	if err != nil {
		return out, err
	}
	copy(out[:], key)
	Wipe(key)
	return out, nil
}
