// Package auctionwatcher closes auctions whose expiry key ran out. It backs
// up the in-process clock after a restart or on a second instance.
package auctionwatcher

import (
	"context"
	"strings"

	"livebid/internal/redis/auctionstore"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const expiredPattern = "__keyevent@*__:expired"

type Finalizer interface {
	Finalize(ctx context.Context, id string) error
}

// Run listens to key-expiry events until ctx is done. Start it once at boot.
func Run(ctx context.Context, rdb *redis.Client, f Finalizer) {
	if err := rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		zap.L().Warn("auctionwatcher.config_set", zap.Error(err))
	}
	ps := rdb.PSubscribe(ctx, expiredPattern)
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			id, ok := auctionID(m.Payload)
			if !ok {
				continue
			}
			if err := f.Finalize(ctx, id); err != nil {
				zap.L().Error("auctionwatcher.finalize", zap.String("auction_id", id), zap.Error(err))
			}
		}
	}
}

func auctionID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, auctionstore.TimerPrefix)
	return id, ok && id != ""
}
