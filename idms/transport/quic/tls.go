package quic

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/TheusHen/idms/idms/identity"
)

const (
	ALPN = "idms/1"
)

var ErrPeerKeyMismatch = errors.New("quic: peer certificate does not carry the expected identity key")

// certificateFor self-signs a short-lived certificate with the identity's own
// Ed25519 key, so the TLS handshake already proves possession of that key.
func certificateFor(self identity.Identity) (tls.Certificate, error) {
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return tls.Certificate{}, err
	}
	now := time.Now()
	tpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: self.ID},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, self.PublicKey, self.PrivateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: self.PrivateKey, Leaf: leaf}, nil
}

// NewServerTLSConfig presents a certificate for self.
func NewServerTLSConfig(self identity.Identity) (*tls.Config, error) {
	cert, err := certificateFor(self)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{ALPN},
	}, nil
}

// NewClientTLSConfig accepts only a server whose certificate key is expected.
// There is no PKI: the identity key is pinned instead of a chain being verified.
// Clients present no certificate.
func NewClientTLSConfig(expected ed25519.PublicKey) *tls.Config {
	want := append(ed25519.PublicKey(nil), expected...)
	return &tls.Config{
		MinVersion:         tls.VersionTLS13,
		NextProtos:         []string{ALPN},
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return ErrPeerKeyMismatch
			}
			cert, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return fmt.Errorf("%w: %w", ErrPeerKeyMismatch, err)
			}
			got, ok := cert.PublicKey.(ed25519.PublicKey)
			if !ok || len(want) != ed25519.PublicKeySize || !bytes.Equal(got, want) {
				return ErrPeerKeyMismatch
			}
			return nil
		},
	}
}
