// Package idms is the core of a secure peer-to-peer messaging system.
//
// Every connection's guard announces a fresh X25519 key signed by its identity.
// Peers register their Ed25519 key with a Sync frame, after which both sides
// derive the same shared secret and a symmetric AEAD context from it, unique
// to that connection.
// Messages travel as signed Communicate frames, optionally compressed and
// sealed. A session guard per connection checks every frame against the key
// directory and publishes decoded messages to a watch.
//
// Peer ties the pieces to a QUIC transport; the subpackages can be used on
// their own with any transport that delivers frames in order.
package idms
