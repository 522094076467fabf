// Package redis stores the key directory in Redis so several processes can share it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/TheusHen/idms/idms/directory"
)

const DefaultPrefix = "idms:peer:"

var ErrCorruptRecord = errors.New("directory/redis: corrupt record")

type Options struct {
	// Prefix is prepended to every peer id to form the Redis key.
	Prefix string
	// TTL expires records; zero keeps them forever.
	TTL time.Duration
}

type Option func(*Options)

func WithPrefix(prefix string) Option { return func(o *Options) { o.Prefix = prefix } }

func WithTTL(ttl time.Duration) Option { return func(o *Options) { o.TTL = ttl } }

// Store is a directory.KeyStore backed by Redis.
// SetKey uses SET ... GET so replace-and-return-previous is a single round trip.
type Store struct {
	rdb  goredis.UniversalClient
	opts Options
}

func New(rdb goredis.UniversalClient, opts ...Option) *Store {
	o := Options{Prefix: DefaultPrefix}
	for _, fn := range opts {
		fn(&o)
	}
	return &Store{rdb: rdb, opts: o}
}

type record struct {
	PeerID       string `json:"peer_id"`
	PublicKey    []byte `json:"public_key"`
	SharedSecret []byte `json:"shared_secret,omitempty"`
}

func (s *Store) key(id string) string { return s.opts.Prefix + id }

func encode(rec directory.PeerRecord) ([]byte, error) {
	r := record{PeerID: rec.PeerID, PublicKey: rec.PublicKey[:]}
	if rec.SharedSecret != nil {
		r.SharedSecret = rec.SharedSecret[:]
	}
	return json.Marshal(r)
}

func decode(raw string) (directory.PeerRecord, error) {
	var r record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return directory.PeerRecord{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if len(r.PublicKey) != 32 {
		return directory.PeerRecord{}, fmt.Errorf("%w: public key is %d bytes", ErrCorruptRecord, len(r.PublicKey))
	}
	var rec directory.PeerRecord
	rec.PeerID = r.PeerID
	copy(rec.PublicKey[:], r.PublicKey)
	if r.SharedSecret != nil {
		if len(r.SharedSecret) != 32 {
			return directory.PeerRecord{}, fmt.Errorf("%w: shared secret is %d bytes", ErrCorruptRecord, len(r.SharedSecret))
		}
		var secret [32]byte
		copy(secret[:], r.SharedSecret)
		rec.SharedSecret = &secret
	}
	return rec, nil
}

func (s *Store) SetKey(ctx context.Context, id string, rec directory.PeerRecord) (directory.PeerRecord, bool, error) {
	value, err := encode(rec)
	if err != nil {
		return directory.PeerRecord{}, false, err
	}
	args := goredis.SetArgs{Get: true}
	if s.opts.TTL > 0 {
		args.TTL = s.opts.TTL
	}
	prev, err := s.rdb.SetArgs(ctx, s.key(id), value, args).Result()
	if errors.Is(err, goredis.Nil) {
		return directory.PeerRecord{}, false, nil
	}
	if err != nil {
		return directory.PeerRecord{}, false, fmt.Errorf("directory/redis: set %s: %w", id, err)
	}
	old, err := decode(prev)
	if err != nil {
		// The new record was written; the old one is unreadable.
		return directory.PeerRecord{}, true, err
	}
	return old, true, nil
}

func (s *Store) GetKey(ctx context.Context, id string) (directory.PeerRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return directory.PeerRecord{}, false, nil
	}
	if err != nil {
		return directory.PeerRecord{}, false, fmt.Errorf("directory/redis: get %s: %w", id, err)
	}
	rec, err := decode(raw)
	if err != nil {
		return directory.PeerRecord{}, false, err
	}
	return rec, true, nil
}

// Delete removes a peer record. Missing records are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}
