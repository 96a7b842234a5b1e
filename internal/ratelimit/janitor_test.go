package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingLimiter struct {
	Limiter
	sweeps atomic.Int32
}

func (c *countingLimiter) ClearOldEntries(context.Context, time.Time) error {
	c.sweeps.Add(1)
	return nil
}

func TestRunJanitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := &countingLimiter{}

	RunJanitor(ctx, l, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return l.sweeps.Load() >= 2 }, time.Second, time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	n := l.sweeps.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, l.sweeps.Load())
}
