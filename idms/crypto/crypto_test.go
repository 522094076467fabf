package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"golang.org/x/crypto/curve25519"
)

func TestDeriveSharedSecretSymmetry(t *testing.T) {
	alice, err := GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	bob, err := GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}

	sharedAlice, err := DeriveSharedSecret(alice.PrivateKey[:], bob.PublicKey[:])
	if err != nil {
		t.Fatalf("DeriveSharedSecret alice: %v", err)
	}
	sharedBob, err := DeriveSharedSecret(bob.PrivateKey[:], alice.PublicKey[:])
	if err != nil {
		t.Fatalf("DeriveSharedSecret bob: %v", err)
	}
	if sharedAlice != sharedBob {
		t.Fatalf("shared secrets do not match")
	}

	again, _ := DeriveSharedSecret(alice.PrivateKey[:], bob.PublicKey[:])
	if again != sharedAlice {
		t.Fatalf("derivation is not deterministic")
	}
}

func TestDeriveSharedSecretRejectsMalformedKeys(t *testing.T) {
	kp, _ := GenerateX25519()

	cases := []struct {
		name      string
		priv, pub []byte
	}{
		{"short public", kp.PrivateKey[:], kp.PublicKey[:31]},
		{"long public", kp.PrivateKey[:], append(kp.PublicKey[:], 0)},
		{"empty public", kp.PrivateKey[:], nil},
		{"short private", kp.PrivateKey[:16], kp.PublicKey[:]},
		{"low-order public", kp.PrivateKey[:], make([]byte, KeySize)},
	}
	for _, tc := range cases {
		if _, err := DeriveSharedSecret(tc.priv, tc.pub); !errors.Is(err, ErrInvalidKeyEncoding) {
			t.Fatalf("%s: expected ErrInvalidKeyEncoding, got %v", tc.name, err)
		}
	}
}

func TestParseKeysNeverPad(t *testing.T) {
	short := []byte{1, 2, 3}
	if _, err := ParsePublicKey(short); !errors.Is(err, ErrInvalidKeyEncoding) {
		t.Fatalf("expected ErrInvalidKeyEncoding, got %v", err)
	}
	if _, err := ParsePrivateKey(make([]byte, 33)); !errors.Is(err, ErrInvalidKeyEncoding) {
		t.Fatalf("expected ErrInvalidKeyEncoding, got %v", err)
	}
	in := bytes.Repeat([]byte{7}, KeySize)
	k, err := ParsePublicKey(in)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if !bytes.Equal(k[:], in) {
		t.Fatalf("parsed key differs from input")
	}
}

func TestEd25519ConversionAgreesWithX25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	xpriv, err := X25519FromEd25519(priv)
	if err != nil {
		t.Fatalf("X25519FromEd25519: %v", err)
	}
	xpub, err := EdwardsToMontgomery(pub)
	if err != nil {
		t.Fatalf("EdwardsToMontgomery: %v", err)
	}

	var derived [KeySize]byte
	curve25519.ScalarBaseMult(&derived, &xpriv)
	if derived != xpub {
		t.Fatalf("converted public key does not match converted private key")
	}

	if _, err := EdwardsToMontgomery(pub[:20]); !errors.Is(err, ErrInvalidKeyEncoding) {
		t.Fatalf("expected ErrInvalidKeyEncoding for short key, got %v", err)
	}
}

func TestDeriveSymmetricKey(t *testing.T) {
	var secret [KeySize]byte
	for i := range secret {
		secret[i] = byte(i)
	}
	k1, err := DeriveSymmetricKey(secret)
	if err != nil {
		t.Fatalf("DeriveSymmetricKey: %v", err)
	}
	k2, _ := DeriveSymmetricKey(secret)
	if k1 != k2 {
		t.Fatalf("key derivation is not deterministic")
	}
	if bytes.Equal(k1[:], secret[:]) {
		t.Fatalf("derived key should differ from the raw secret")
	}
	secret[0] ^= 1
	k3, _ := DeriveSymmetricKey(secret)
	if k3 == k1 {
		t.Fatalf("different secrets produced the same key")
	}
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Wipe(b)
	if !bytes.Equal(b, make([]byte, 4)) {
		t.Fatalf("buffer not wiped: %v", b)
	}
	Wipe(nil)
}

func BenchmarkDeriveSharedSecret(b *testing.B) {
	alice, _ := GenerateX25519()
	bob, _ := GenerateX25519()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = DeriveSharedSecret(alice.PrivateKey[:], bob.PublicKey[:])
	}
}
