package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunJanitor calls ClearOldEntries every interval until ctx is done.
func RunJanitor(ctx context.Context, l Limiter, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tk.C:
				if err := l.ClearOldEntries(ctx, now); err != nil {
					zap.L().Warn("ratelimit.janitor", zap.Error(err))
				}
			}
		}
	}()
}
