package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"livebid/internal/apperr"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hitArgs(now time.Time, window time.Duration, limit int) []interface{} {
	return []interface{}{now.UnixMilli(), window.Milliseconds(), limit, strconv.FormatInt(now.UnixNano(), 10)}
}

func TestRedis_Hit(t *testing.T) {
	tests := []struct {
		name      string
		call      func(l *Redis, now time.Time) error
		key       string
		window    time.Duration
		max       int
		reply     []interface{}
		replyErr  error
		wantRetry time.Duration
		wantStore bool
	}{
		{
			name:   "Bid recorded",
			call:   func(l *Redis, now time.Time) error { return l.CanBid(context.Background(), "u1", now) },
			key:    "rl:bid:u1",
			window: time.Minute,
			max:    10,
			reply:  []interface{}{int64(1), int64(0)},
		},
		{
			name:      "Login denied",
			call:      func(l *Redis, now time.Time) error { return l.CanLogin(context.Background(), "12345678", now) },
			key:       "rl:login:12345678",
			window:    15 * time.Minute,
			max:       5,
			reply:     []interface{}{int64(0), (14 * time.Minute).Milliseconds()},
			wantRetry: 14 * time.Minute,
		},
		{
			name:      "Store down",
			call:      func(l *Redis, now time.Time) error { return l.CanWatch(context.Background(), "u1", now) },
			key:       "rl:watch:u1",
			window:    time.Hour,
			max:       50,
			replyErr:  errors.New("conn refused"),
			wantStore: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			l := NewRedis(db, DefaultConfig())

			exp := mock.ExpectEvalSha(hitScript.Hash(), []string{tt.key}, hitArgs(t0, tt.window, tt.max)...)
			if tt.replyErr != nil {
				exp.SetErr(tt.replyErr)
			} else {
				exp.SetVal(tt.reply)
			}

			err := tt.call(l, t0)
			switch {
			case tt.wantStore:
				var se *apperr.StoreError
				assert.ErrorAs(t, err, &se)
				assert.NotErrorIs(t, err, ErrLimited)
			case tt.wantRetry > 0:
				var denied *DeniedError
				require.ErrorAs(t, err, &denied)
				assert.Equal(t, tt.wantRetry, denied.RetryAfter)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedis_ResetLoginAttempts(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedis(db, DefaultConfig())

	mock.ExpectDel("rl:login:12345678").SetVal(1)

	require.NoError(t, l.ResetLoginAttempts(context.Background(), "12345678"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
