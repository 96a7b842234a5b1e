package syncbid

import (
	"context"
	"errors"
	"testing"
	"time"

	"livebid/internal/database/auctionrepo"
	"livebid/internal/redis/auctionstore"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSink struct {
	got [][]auctionrepo.StreamBid
	err error
}

func (s *stubSink) InsertBids(_ context.Context, bids []auctionrepo.StreamBid) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, bids)
	return nil
}

func readArgs(lastID string) *redis.XReadArgs {
	return &redis.XReadArgs{
		Streams: []string{auctionstore.BidStream, lastID},
		Count:   batchSize,
		Block:   blockFor,
	}
}

var entries = []redis.XStream{{
	Stream: auctionstore.BidStream,
	Messages: []redis.XMessage{
		{ID: "1-0", Values: map[string]interface{}{"aid": "a1", "uid": "u1", "uname": "ann", "amount": "110", "at": "1748779200000"}},
		{ID: "2-0", Values: map[string]interface{}{"aid": "a1", "amount": "oops", "at": "1"}},
		{ID: "3-0", Values: map[string]interface{}{"aid": "a1", "uid": "u2", "uname": "bob", "amount": "120", "at": "1748779260000"}},
	},
}}

func TestPull(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m redismock.ClientMock)
		sinkErr error
		wantID  string
		wantErr bool
		wantN   int
	}{
		{
			name:   "Batch persisted and cursor advanced",
			setup:  func(m redismock.ClientMock) { m.ExpectXRead(readArgs("0-0")).SetVal(entries) },
			wantID: "3-0",
			wantN:  2,
		},
		{
			name:   "Timeout keeps cursor",
			setup:  func(m redismock.ClientMock) { m.ExpectXRead(readArgs("0-0")).RedisNil() },
			wantID: "0-0",
		},
		{
			name:    "Sink failure keeps cursor",
			setup:   func(m redismock.ClientMock) { m.ExpectXRead(readArgs("0-0")).SetVal(entries) },
			sinkErr: errors.New("db down"),
			wantID:  "0-0",
			wantErr: true,
		},
		{
			name:    "Read failure",
			setup:   func(m redismock.ClientMock) { m.ExpectXRead(readArgs("0-0")).SetErr(errors.New("conn reset")) },
			wantID:  "0-0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			tt.setup(mock)
			sink := &stubSink{err: tt.sinkErr}

			id, err := pull(context.Background(), db, sink, "0-0")
			assert.Equal(t, tt.wantID, id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantN == 0 {
				assert.Empty(t, sink.got)
				return
			}
			require.Len(t, sink.got, 1)
			require.Len(t, sink.got[0], tt.wantN)
			assert.Equal(t, "a1", sink.got[0][0].AuctionID)
			assert.Equal(t, int64(110), sink.got[0][0].Amount)
			assert.Equal(t, time.UnixMilli(1748779260000).UTC(), sink.got[0][1].Timestamp)
		})
	}
}
