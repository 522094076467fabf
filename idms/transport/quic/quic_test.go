package quic

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/TheusHen/idms/idms/codec"
	"github.com/TheusHen/idms/idms/directory/memory"
	"github.com/TheusHen/idms/idms/identity"
	"github.com/TheusHen/idms/idms/protocol"
	"github.com/TheusHen/idms/idms/session"
)

func TestPumpPreservesOrder(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	want := []protocol.Frame{
		protocol.Nil{},
		protocol.RedBox{PeerID: "a"},
		protocol.RedBox{PeerID: "b"},
	}
	for _, f := range want {
		if err := protocol.WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	in := session.NewInbox(len(want))
	if err := Pump(ctx, &buf, in); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	in.Close()
	if in.Len() != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), in.Len())
	}

	for i, f := range want {
		got, err := in.Recv(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if got.Type() != f.Type() || protocol.PeerIDOf(got) != protocol.PeerIDOf(f) {
			t.Fatalf("frame %d out of order", i)
		}
	}
}

func TestPumpRejectsBadStreams(t *testing.T) {
	ctx := context.Background()
	in := session.NewInbox(4)

	bad := bytes.NewReader([]byte{byte(protocol.MessageTypeNil), 0, 0, 0, 1, 9})
	if err := Pump(ctx, bad, in); !errors.Is(err, protocol.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
	truncated := bytes.NewReader([]byte{byte(protocol.MessageTypeNil), 0, 0})
	if err := Pump(ctx, truncated, in); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	in.Close()
	if err := Pump(ctx, bytes.NewReader([]byte{byte(protocol.MessageTypeNil), 0, 0, 0, 0}), in); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestLoopbackSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	guardID, _ := identity.Generate("guard")
	ln, err := Listen("127.0.0.1:0", guardID)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	g, err := session.NewGuard(guardID, memory.New[string](), session.WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	watcher := g.Watch().Subscribe()

	served := make(chan error, 1)
	go func() {
		conn, err := ln.Accept(ctx)
		if err != nil {
			served <- err
			return
		}
		served <- Serve(ctx, conn, g)
	}()

	conn, err := Dial(ctx, ln.AddrString(), guardID.PublicKey)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseWithError(CodeNoError, "")
	stream, announced, err := OpenSession(ctx, conn)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	guardKey, err := codec.VerifyGuardKey(guardID.PublicKey, guardID.ID, announced)
	if err != nil {
		t.Fatalf("VerifyGuardKey: %v", err)
	}
	if !bytes.Equal(guardKey[:], g.PublicKey()) {
		t.Fatalf("announced key differs from the guard's key")
	}

	alice, _ := identity.Generate("alice")
	sender, err := session.NewSender(alice, guardID.ID, guardKey[:])
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	if err := protocol.WriteFrame(stream, sender.SyncFrame("")); err != nil {
		t.Fatalf("WriteFrame sync: %v", err)
	}
	frame, err := sender.Send([]byte("Hello World"), session.SendOptions{Encrypt: true, Compress: true})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := protocol.WriteFrame(stream, frame); err != nil {
		t.Fatalf("WriteFrame communicate: %v", err)
	}

	msg, err := watcher.Changed(ctx)
	if err != nil {
		t.Fatalf("Changed: %v", err)
	}
	if !msg.Passed() || msg.PeerID != "alice" || string(msg.Payload) != "Hello World" {
		t.Fatalf("unexpected message %+v", msg)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("stream.Close: %v", err)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-ctx.Done():
		t.Fatalf("Serve did not return")
	}
}

func TestDialRejectsWrongServerKey(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	guardID, _ := identity.Generate("guard")
	ln, err := Listen("127.0.0.1:0", guardID)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept(ctx)
		if err == nil {
			<-conn.Context().Done()
		}
	}()

	impostor, _ := identity.Generate("guard")
	if conn, err := Dial(ctx, ln.AddrString(), impostor.PublicKey); err == nil {
		_ = conn.CloseWithError(CodeNoError, "")
		t.Fatalf("Dial accepted a server with the wrong identity key")
	}
}

func TestServerCertificateCarriesIdentityKey(t *testing.T) {
	id, _ := identity.Generate("guard")
	conf, err := NewServerTLSConfig(id)
	if err != nil {
		t.Fatalf("NewServerTLSConfig: %v", err)
	}
	leaf := conf.Certificates[0].Leaf
	if leaf.Subject.CommonName != "guard" {
		t.Fatalf("CommonName = %q", leaf.Subject.CommonName)
	}
	verify := NewClientTLSConfig(id.PublicKey).VerifyPeerCertificate
	if err := verify(conf.Certificates[0].Certificate, nil); err != nil {
		t.Fatalf("own key rejected: %v", err)
	}
	other, _ := identity.Generate("guard")
	if err := NewClientTLSConfig(other.PublicKey).VerifyPeerCertificate(conf.Certificates[0].Certificate, nil); !errors.Is(err, ErrPeerKeyMismatch) {
		t.Fatalf("expected ErrPeerKeyMismatch, got %v", err)
	}
	if err := verify(nil, nil); !errors.Is(err, ErrPeerKeyMismatch) {
		t.Fatalf("expected ErrPeerKeyMismatch without certificates, got %v", err)
	}
}
