package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/TheusHen/idms/idms/directory"
)

var _ directory.KeyStore[string] = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("IDMS_REDIS_ADDR")
	if addr == "" {
		t.Skip("IDMS_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return New(rdb, WithPrefix("idms-test:"+uuid.NewString()+":"))
}

func TestRecordEncoding(t *testing.T) {
	var pub, secret [32]byte
	pub[0], secret[31] = 1, 2
	rec := directory.NewPeerRecord("alice", pub, secret)

	raw, err := encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decode(string(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(rec) {
		t.Fatalf("decoded record differs")
	}

	noSecret := directory.PeerRecord{PeerID: "bob", PublicKey: pub}
	raw, _ = encode(noSecret)
	got, err = decode(string(raw))
	if err != nil || got.HasSecret() {
		t.Fatalf("record without secret: %v %v", got, err)
	}

	if _, err := decode(`{"peer_id":"x","public_key":"AAE="}`); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord for short key, got %v", err)
	}
	if _, err := decode("not json"); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord for bad json, got %v", err)
	}
}

func TestStoreSetGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetKey(ctx, "alice"); err != nil || ok {
		t.Fatalf("GetKey on empty store: ok=%v err=%v", ok, err)
	}

	var pub, secret [32]byte
	pub[0] = 9
	rec := directory.NewPeerRecord("alice", pub, secret)
	if _, replaced, err := s.SetKey(ctx, "alice", rec); err != nil || replaced {
		t.Fatalf("SetKey: replaced=%v err=%v", replaced, err)
	}
	t.Cleanup(func() { _ = s.Delete(context.Background(), "alice") })

	pub[0] = 10
	rec2 := directory.NewPeerRecord("alice", pub, secret)
	prev, replaced, err := s.SetKey(ctx, "alice", rec2)
	if err != nil || !replaced || !prev.Equal(rec) {
		t.Fatalf("SetKey replace: prev=%v replaced=%v err=%v", prev, replaced, err)
	}

	got, ok, err := s.GetKey(ctx, "alice")
	if err != nil || !ok || !got.Equal(rec2) {
		t.Fatalf("GetKey: ok=%v err=%v", ok, err)
	}
}
