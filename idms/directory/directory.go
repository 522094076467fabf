// Package directory maps peer ids to their registered public key and derived shared secret.
package directory

import (
	"context"
	"crypto/subtle"
)

// PeerRecord is what the local process knows about one peer.
// SharedSecret is nil until a secret has been derived for PublicKey.
type PeerRecord struct {
	PeerID       string
	PublicKey    [32]byte
	SharedSecret *[32]byte
}

func NewPeerRecord(peerID string, publicKey, sharedSecret [32]byte) PeerRecord {
	return PeerRecord{PeerID: peerID, PublicKey: publicKey, SharedSecret: &sharedSecret}
}

// Clone returns a copy that shares no memory with r.
func (r PeerRecord) Clone() PeerRecord {
	if r.SharedSecret != nil {
		s := *r.SharedSecret
		r.SharedSecret = &s
	}
	return r
}

func (r PeerRecord) HasSecret() bool { return r.SharedSecret != nil }

// Equal compares two records; key material is compared in constant time.
func (r PeerRecord) Equal(o PeerRecord) bool {
	if r.PeerID != o.PeerID || r.HasSecret() != o.HasSecret() {
		return false
	}
	same := subtle.ConstantTimeCompare(r.PublicKey[:], o.PublicKey[:])
	if r.HasSecret() {
		same &= subtle.ConstantTimeCompare(r.SharedSecret[:], o.SharedSecret[:])
	}
	return same == 1
}

// KeyChanged reports whether r registers a different public key than prev.
func (r PeerRecord) KeyChanged(prev PeerRecord) bool {
	return r.PublicKey != prev.PublicKey
}

// KeyStore is a peer-key directory keyed by ID.
// Implementations can be backed by in-memory maps or external stores.
type KeyStore[ID comparable] interface {
	// SetKey stores rec under id and returns the record it replaced, if any.
	SetKey(ctx context.Context, id ID, rec PeerRecord) (prev PeerRecord, replaced bool, err error)
	// GetKey looks up id. It never creates entries.
	GetKey(ctx context.Context, id ID) (rec PeerRecord, ok bool, err error)
}
