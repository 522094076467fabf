// Package crypto provides the cryptographic primitives of the IDMS session core.
//
// Contents:
//   - X25519 shared-secret derivation with strict 32-byte key parsing
//   - Ed25519 -> X25519 conversion so one identity key serves signing and key agreement
//   - SymContext: an AEAD engine (ChaCha20-Poly1305 or AES-256-GCM) with a private,
//     monotonically increasing 32-bit nonce counter
//   - Key derivation via HKDF-SHA256
//
// Malformed key material is always rejected with ErrInvalidKeyEncoding; it is never
// padded or truncated to fit.
package crypto
