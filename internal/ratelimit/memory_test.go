package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestMemory_CanBidWindow(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultConfig())

	for i := 0; i < 10; i++ {
		require.NoError(t, m.CanBid(ctx, "u1", t0.Add(time.Duration(i)*time.Second)))
	}

	err := m.CanBid(ctx, "u1", t0.Add(10*time.Second))
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, ActionBid, denied.Action)
	assert.Equal(t, 50*time.Second, denied.RetryAfter)
	assert.ErrorIs(t, err, ErrLimited)

	// other users are unaffected
	assert.NoError(t, m.CanBid(ctx, "u2", t0.Add(10*time.Second)))

	// first bid ages out after a minute
	assert.NoError(t, m.CanBid(ctx, "u1", t0.Add(time.Minute)))
	assert.Error(t, m.CanBid(ctx, "u1", t0.Add(time.Minute)))
}

func TestMemory_SlidingWindowNeverExceedsMax(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MaxBidsPerMinute = 3
	m := NewMemory(cfg)

	var accepted []time.Time
	for i := 0; i < 600; i++ {
		now := t0.Add(time.Duration(i) * 700 * time.Millisecond)
		if m.CanBid(ctx, "u1", now) == nil {
			accepted = append(accepted, now)
		}
	}
	require.NotEmpty(t, accepted)
	for i := range accepted {
		n := 0
		for j := i; j < len(accepted) && accepted[j].Sub(accepted[i]) < time.Minute; j++ {
			n++
		}
		assert.LessOrEqual(t, n, 3, "window starting at %s", accepted[i])
	}
}

func TestMemory_CanBidCooldown(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.BidMode = ModeCooldown
	m := NewMemory(cfg)

	require.NoError(t, m.CanBid(ctx, "u1", t0))

	tests := []struct {
		name    string
		at      time.Duration
		wantErr bool
		retry   time.Duration
	}{
		{name: "Immediately", at: time.Second, wantErr: true, retry: 29 * time.Second},
		{name: "Just before cooldown", at: 29 * time.Second, wantErr: true, retry: time.Second},
		{name: "After cooldown", at: 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.CanBid(ctx, "u1", t0.Add(tt.at))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var denied *DeniedError
			require.ErrorAs(t, err, &denied)
			assert.Equal(t, tt.retry, denied.RetryAfter)
		})
	}
}

func TestMemory_LoginLockout(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultConfig())
	phone := "12345678"

	for i := 0; i < 5; i++ {
		require.NoError(t, m.CanLogin(ctx, phone, t0.Add(time.Duration(i)*time.Second)))
	}

	err := m.CanLogin(ctx, phone, t0.Add(5*time.Second))
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, ActionLogin, denied.Action)
	assert.InDelta(t, (15 * time.Minute).Seconds(), denied.RetryAfter.Seconds(), 10)
	assert.Equal(t, 15, denied.RetryAfterMinutes())

	require.NoError(t, m.ResetLoginAttempts(ctx, phone))
	assert.NoError(t, m.CanLogin(ctx, phone, t0.Add(6*time.Second)))
}

func TestMemory_CanWatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultConfig())

	for i := 0; i < 50; i++ {
		require.NoError(t, m.CanWatch(ctx, "u1", t0))
	}
	assert.ErrorIs(t, m.CanWatch(ctx, "u1", t0.Add(time.Minute)), ErrLimited)
	assert.NoError(t, m.CanWatch(ctx, "u1", t0.Add(time.Hour)))
}

func TestMemory_ClearOldEntries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultConfig())

	require.NoError(t, m.CanBid(ctx, "old", t0))
	require.NoError(t, m.CanLogin(ctx, "old", t0))
	require.NoError(t, m.CanBid(ctx, "fresh", t0.Add(110*time.Minute)))

	require.NoError(t, m.ClearOldEntries(ctx, t0.Add(2*time.Hour)))
	assert.Equal(t, 1, m.Len(ActionBid))
	assert.Equal(t, 0, m.Len(ActionLogin))
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{LoginWindow: 3 * time.Hour}.withDefaults()
	assert.Equal(t, ModeWindow, cfg.BidMode)
	assert.Equal(t, 10, cfg.MaxBidsPerMinute)
	assert.Equal(t, 3*time.Hour, cfg.Retention)
}

func TestDeniedError(t *testing.T) {
	err := error(&DeniedError{Action: ActionBid, RetryAfter: 1500 * time.Millisecond})
	assert.Equal(t, "too many bid attempts, retry in 2s", err.Error())
	assert.True(t, errors.Is(err, ErrLimited))
	assert.Equal(t, 1, (&DeniedError{}).RetryAfterSeconds())
}
