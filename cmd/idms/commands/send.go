package commands

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TheusHen/idms/idms"
	"github.com/TheusHen/idms/idms/directory/memory"
	"github.com/TheusHen/idms/idms/identity"
	"github.com/TheusHen/idms/idms/session"
)

func sendCmd() *cobra.Command {
	var (
		id, key, addr     string
		guardID, guardKey string
		password, message string
		encrypt, compress bool
		timeout           time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sync with a listener and send one message",
		RunE: func(cmd *cobra.Command, args []string) error {
			self, err := loadIdentity(id, key)
			if err != nil {
				return err
			}
			guardPub, err := identity.ParseKeyHex(guardKey, ed25519.PublicKeySize)
			if err != nil {
				return fmt.Errorf("--guard-key: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			peer := idms.NewPeer(self, memory.New[string](), session.WithLogger(logger), session.WithAlgorithm(aead))
			conv, err := peer.Dial(ctx, addr, guardID, guardPub)
			if err != nil {
				return err
			}
			if err := conv.Sync(password); err != nil {
				_ = conv.Close()
				return err
			}
			if err := conv.Send([]byte(message), session.SendOptions{Encrypt: encrypt, Compress: compress}); err != nil {
				_ = conv.Close()
				return err
			}
			logger.Info("sent",
				zap.String("to", guardID),
				zap.String("guard_fingerprint", identity.Fingerprint(guardPub)),
				zap.Bool("encrypted", encrypt),
				zap.Bool("compressed", compress))
			return conv.Close()
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "local peer id")
	cmd.Flags().StringVar(&key, "key", "", "hex identity key from keygen")
	cmd.Flags().StringVar(&addr, "addr", "[::1]:4433", "listener address")
	cmd.Flags().StringVar(&guardID, "guard-id", "", "listener peer id")
	cmd.Flags().StringVar(&guardKey, "guard-key", "", "listener hex identity key, pinned for TLS and the guard key announcement")
	cmd.Flags().StringVar(&password, "password", "", "sync password")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message to send")
	cmd.Flags().BoolVar(&encrypt, "encrypt", true, "seal the message")
	cmd.Flags().BoolVar(&compress, "compress", false, "compress the message")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall timeout")
	for _, f := range []string{"id", "key", "guard-id", "guard-key", "message"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
