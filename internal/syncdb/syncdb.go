// Package syncdb periodically mirrors the running auctions into Postgres so
// the archive stays close to the live state between finalizations.
package syncdb

import (
	"context"
	"time"

	"livebid/internal/domain"

	"go.uber.org/zap"
)

const DefaultInterval = 10 * time.Second

type Source interface {
	List(ctx context.Context, status domain.Status) ([]domain.Auction, error)
}

type Mirror interface {
	Mirror(ctx context.Context, list []domain.Auction) error
}

// Run copies the active auctions every interval until ctx is done.
func Run(ctx context.Context, src Source, dst Mirror, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if err := syncOnce(ctx, src, dst); err != nil {
				zap.L().Error("syncdb.sync", zap.Error(err))
			}
		}
	}
}

func syncOnce(ctx context.Context, src Source, dst Mirror) error {
	list, err := src.List(ctx, domain.StatusActive)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	if err := dst.Mirror(ctx, list); err != nil {
		return err
	}
	zap.L().Debug("syncdb.mirrored", zap.Int("count", len(list)))
	return nil
}
