package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/TheusHen/idms/idms/codec"
	"github.com/TheusHen/idms/idms/crypto"
)

// Config holds guard and sender settings.
type Config struct {
	// QueueSize bounds the inbound frame queue.
	QueueSize int
	// Algorithm selects the AEAD for symmetric contexts.
	Algorithm crypto.Algorithm
	// MaxPlaintext caps decompressed message bodies.
	MaxPlaintext int
	Logger       *zap.Logger
}

const DefaultQueueSize = 64

func DefaultConfig() Config {
	return Config{
		QueueSize:    DefaultQueueSize,
		Algorithm:    crypto.ChaCha20Poly1305,
		MaxPlaintext: codec.DefaultMaxPlaintext,
		Logger:       zap.NewNop(),
	}
}

type Option func(*Config)

func WithQueueSize(n int) Option { return func(c *Config) { c.QueueSize = n } }

func WithAlgorithm(alg crypto.Algorithm) Option { return func(c *Config) { c.Algorithm = alg } }

func WithMaxPlaintext(n int) Option { return func(c *Config) { c.MaxPlaintext = n } }

func WithLogger(l *zap.Logger) Option { return func(c *Config) { c.Logger = l } }

// NewConfig applies opts over DefaultConfig and fills unset fields.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, fn := range opts {
		fn(&cfg)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.MaxPlaintext <= 0 {
		cfg.MaxPlaintext = codec.DefaultMaxPlaintext
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Algorithm == 0 {
		cfg.Algorithm = crypto.ChaCha20Poly1305
	}
	return cfg
}

// Validate reports settings that no guard or sender can run with.
func (c Config) Validate() error {
	if !c.Algorithm.Valid() {
		return fmt.Errorf("%w: %d", crypto.ErrUnknownAlgorithm, c.Algorithm)
	}
	return nil
}
