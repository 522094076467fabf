package commands

import (
	"crypto/ed25519"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TheusHen/idms/idms/crypto"
	"github.com/TheusHen/idms/idms/identity"
)

var (
	logLevel  string
	dev       bool
	algorithm string

	logger *zap.Logger
	aead   crypto.Algorithm
)

func Execute() error {
	root := &cobra.Command{
		Use:           "idms",
		Short:         "Secure peer-to-peer messaging over QUIC",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(logLevel, dev)
			if err != nil {
				return err
			}
			logger = l
			if aead, err = crypto.ParseAlgorithm(algorithm); err != nil {
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&dev, "dev", false, "human-friendly development logging")
	root.PersistentFlags().StringVar(&algorithm, "aead", crypto.ChaCha20Poly1305.String(), "symmetric cipher (CHACHA20-POLY1305 or AES-256-GCM)")

	root.AddCommand(keygenCmd(), listenCmd(), sendCmd())
	return root.Execute()
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// loadIdentity rebuilds an identity from a hex-encoded Ed25519 seed.
func loadIdentity(id, seedHex string) (identity.Identity, error) {
	seed, err := identity.ParseKeyHex(seedHex, ed25519.SeedSize)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("--key: %w", err)
	}
	defer crypto.Wipe(seed)
	return identity.FromSeed(id, seed)
}
