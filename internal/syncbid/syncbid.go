// Package syncbid copies accepted bids from the Redis stream into the
// Postgres archive.
package syncbid

import (
	"context"
	"errors"
	"time"

	"livebid/internal/database/auctionrepo"
	"livebid/internal/redis/auctionstore"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	batchSize = 100
	blockFor  = 2 * time.Second
	backoff   = time.Second
)

type BidSink interface {
	InsertBids(ctx context.Context, bids []auctionrepo.StreamBid) error
}

// Run tails the bid stream until ctx is done. It starts from the head of
// the stream on every boot; the archive ignores bids it already holds.
func Run(ctx context.Context, rdc redis.Cmdable, sink BidSink) {
	lastID := "0-0"
	for ctx.Err() == nil {
		next, err := pull(ctx, rdc, sink, lastID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			zap.L().Warn("syncbid.pull", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
		lastID = next
	}
}

// pull reads one batch after lastID and persists it. It returns the id to
// resume from, which only moves past entries the sink accepted.
func pull(ctx context.Context, rdc redis.Cmdable, sink BidSink, lastID string) (string, error) {
	res, err := rdc.XRead(ctx, &redis.XReadArgs{
		Streams: []string{auctionstore.BidStream, lastID},
		Count:   batchSize,
		Block:   blockFor,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return lastID, nil
	}
	if err != nil {
		return lastID, err
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return lastID, nil
	}

	msgs := res[0].Messages
	bids := make([]auctionrepo.StreamBid, 0, len(msgs))
	for _, m := range msgs {
		aid, b, err := auctionstore.ParseStreamBid(m.Values)
		if err != nil {
			zap.L().Warn("syncbid.skip", zap.String("entry_id", m.ID), zap.Error(err))
			continue
		}
		bids = append(bids, auctionrepo.StreamBid{AuctionID: aid, Bid: b})
	}
	if err := sink.InsertBids(ctx, bids); err != nil {
		return lastID, err
	}
	zap.L().Debug("syncbid.persisted", zap.Int("count", len(bids)))
	return msgs[len(msgs)-1].ID, nil
}
