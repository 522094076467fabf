package codec

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/TheusHen/idms/idms/crypto"
	"github.com/TheusHen/idms/idms/identity"
	"github.com/TheusHen/idms/idms/protocol"
)

const guardKeyDomain = "idms/v1 guard key"

var ErrGuardKeyRejected = errors.New("codec: guard key announcement rejected")

// GuardKeyBytes returns the canonical bytes signed when a guard announces its
// per-connection key.
// Format: domain | u16 len | guard id | u16 len | public key
func GuardKeyBytes(guardID string, publicKey []byte) ([]byte, error) {
	if len(guardID) > math.MaxUint16 || len(publicKey) > math.MaxUint16 {
		return nil, ErrFieldTooLong
	}
	b := make([]byte, 0, len(guardKeyDomain)+4+len(guardID)+len(publicKey))
	b = append(b, guardKeyDomain...)
	b = binary.BigEndian.AppendUint16(b, uint16(len(guardID)))
	b = append(b, guardID...)
	b = binary.BigEndian.AppendUint16(b, uint16(len(publicKey)))
	return append(b, publicKey...), nil
}

// SignGuardKey binds publicKey to self with self's Ed25519 key.
func SignGuardKey(self identity.Identity, publicKey []byte) (protocol.GuardKey, error) {
	toSign, err := GuardKeyBytes(self.ID, publicKey)
	if err != nil {
		return protocol.GuardKey{}, err
	}
	return protocol.GuardKey{
		PeerID:    self.ID,
		PublicKey: append([]byte(nil), publicKey...),
		Signature: self.Sign(toSign),
	}, nil
}

// VerifyGuardKey checks that gk was announced by guardID holding identityKey and
// returns the announced X25519 key.
func VerifyGuardKey(identityKey []byte, guardID string, gk protocol.GuardKey) ([crypto.KeySize]byte, error) {
	var pub [crypto.KeySize]byte
	if gk.PeerID != guardID {
		return pub, ErrGuardKeyRejected
	}
	pub, err := crypto.ParsePublicKey(gk.PublicKey)
	if err != nil {
		return pub, err
	}
	toVerify, err := GuardKeyBytes(gk.PeerID, gk.PublicKey)
	if err != nil {
		return pub, err
	}
	if !identity.Verify(identityKey, toVerify, gk.Signature) {
		return [crypto.KeySize]byte{}, ErrGuardKeyRejected
	}
	return pub, nil
}
