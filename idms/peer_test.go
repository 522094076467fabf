package idms

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/TheusHen/idms/idms/codec"
	"github.com/TheusHen/idms/idms/directory/memory"
	"github.com/TheusHen/idms/idms/identity"
	"github.com/TheusHen/idms/idms/session"
)

func TestPeerConversation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	serverID, _ := identity.Generate("server")
	server := NewPeer(serverID, memory.New[string](), session.WithLogger(zaptest.NewLogger(t)))
	if err := server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	watchers := make(chan *session.Watcher, 1)
	served := make(chan error, 1)
	go func() {
		served <- server.Serve(ctx, func(g *session.Guard) { watchers <- g.Watch().Subscribe() })
	}()

	clientID, _ := identity.Generate("alice")
	client := NewPeer(clientID, memory.New[string]())
	conv, err := client.Dial(ctx, server.ListenAddr(), serverID.ID, serverID.PublicKey)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := conv.Sync(""); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := conv.Send([]byte("Hello World"), session.SendOptions{Encrypt: true}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var w *session.Watcher
	select {
	case w = <-watchers:
	case <-ctx.Done():
		t.Fatalf("no connection accepted")
	}
	msg, err := w.Changed(ctx)
	if err != nil {
		t.Fatalf("Changed: %v", err)
	}
	if !msg.Passed() || msg.PeerID != "alice" || string(msg.Payload) != "Hello World" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.SharedKey != conv.SharedSecret() {
		t.Fatalf("shared keys differ")
	}

	if err := conv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A second connection between the same identities gets a fresh key.
	again, err := client.Dial(ctx, server.ListenAddr(), serverID.ID, serverID.PublicKey)
	if err != nil {
		t.Fatalf("Dial again: %v", err)
	}
	if again.SharedSecret() == conv.SharedSecret() {
		t.Fatalf("reconnect reused the shared secret")
	}
	_ = again.Close()

	_ = server.Close()
	<-served
}

func TestDialRejectsWrongGuard(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	serverID, _ := identity.Generate("server")
	server := NewPeer(serverID, memory.New[string]())
	if err := server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- server.Serve(ctx, nil) }()

	clientID, _ := identity.Generate("alice")
	client := NewPeer(clientID, memory.New[string]())
	if _, err := client.Dial(ctx, server.ListenAddr(), "someone-else", serverID.PublicKey); !errors.Is(err, codec.ErrGuardKeyRejected) {
		t.Fatalf("expected ErrGuardKeyRejected for a mismatched guard id, got %v", err)
	}
	impostor, _ := identity.Generate("server")
	if _, err := client.Dial(ctx, server.ListenAddr(), serverID.ID, impostor.PublicKey); err == nil {
		t.Fatalf("Dial accepted a guard with the wrong identity key")
	}
	conv, err := client.Dial(ctx, server.ListenAddr(), serverID.ID, serverID.PublicKey)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	_ = conv.Close()

	_ = server.Close()
	<-served
}

func TestServeRequiresListen(t *testing.T) {
	id, _ := identity.Generate("x")
	p := NewPeer(id, memory.New[string]())
	if err := p.Serve(context.Background(), nil); err != ErrNotListening {
		t.Fatalf("expected ErrNotListening, got %v", err)
	}
	if p.ListenAddr() != "" || p.Close() != nil {
		t.Fatalf("unlistened peer should have no address")
	}
}
