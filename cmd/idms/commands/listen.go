package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TheusHen/idms/idms"
	"github.com/TheusHen/idms/idms/directory"
	"github.com/TheusHen/idms/idms/directory/memory"
	"github.com/TheusHen/idms/idms/directory/redis"
	"github.com/TheusHen/idms/idms/session"
)

func listenCmd() *cobra.Command {
	var (
		id, key, addr string
		redisAddr     string
		redisPrefix   string
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Accept connections and log every decoded message",
		RunE: func(cmd *cobra.Command, args []string) error {
			self, err := loadIdentity(id, key)
			if err != nil {
				return err
			}

			var keys directory.KeyStore[string]
			if redisAddr != "" {
				rdb := goredis.NewClient(&goredis.Options{Addr: redisAddr})
				defer rdb.Close()
				keys = redis.New(rdb, redis.WithPrefix(redisPrefix))
			} else {
				keys = memory.New[string]()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			peer := idms.NewPeer(self, keys, session.WithLogger(logger), session.WithAlgorithm(aead))
			if err := peer.Listen(addr); err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				_ = peer.Close()
			}()

			return peer.Serve(ctx, func(g *session.Guard) {
				go logMessages(ctx, g)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "local peer id")
	cmd.Flags().StringVar(&key, "key", "", "hex identity key from keygen")
	cmd.Flags().StringVar(&addr, "addr", "[::1]:4433", "UDP address to listen on")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for a shared key directory (default in-memory)")
	cmd.Flags().StringVar(&redisPrefix, "redis-prefix", redis.DefaultPrefix, "Redis key prefix")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func logMessages(ctx context.Context, g *session.Guard) {
	w := g.Watch().Subscribe()
	log := logger.With(zap.String("guard_id", g.ID()))
	for {
		msg, err := w.Changed(ctx)
		if err != nil {
			return
		}
		if !msg.Passed() {
			log.Warn("delivery failed", zap.String("peer_id", msg.PeerID), zap.Error(msg.Err))
			continue
		}
		log.Info("message",
			zap.String("peer_id", msg.PeerID),
			zap.Bool("encrypted", msg.Encrypted),
			zap.ByteString("payload", msg.Payload))
	}
}
