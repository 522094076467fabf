package commands

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/TheusHen/idms/idms/crypto"
	"github.com/TheusHen/idms/idms/identity"
)

func TestLoadIdentity(t *testing.T) {
	orig, _ := identity.Generate("alice")
	got, err := loadIdentity("alice", hex.EncodeToString(orig.PrivateKey.Seed()))
	if err != nil {
		t.Fatalf("loadIdentity: %v", err)
	}
	if !bytes.Equal(got.PublicKey, orig.PublicKey) {
		t.Fatalf("public key mismatch")
	}
	if _, err := loadIdentity("alice", "abcd"); !errors.Is(err, crypto.ErrInvalidKeyEncoding) {
		t.Fatalf("expected ErrInvalidKeyEncoding, got %v", err)
	}
}

func TestKeygenOutput(t *testing.T) {
	cmd := keygenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--id", "bob"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "id:          bob") || !strings.Contains(out.String(), "fingerprint:") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug", true); err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if _, err := newLogger("loud", false); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
