// Package codec builds and checks the signed message payloads carried by
// Communicate frames.
//
// A payload is signed over the plaintext with the sender's Ed25519 key, then
// optionally LZ4-compressed and sealed with the session's SymContext. Receivers
// reverse the steps with Decode and check the signature with Verify, which only
// trusts keys registered in the local directory.
package codec
