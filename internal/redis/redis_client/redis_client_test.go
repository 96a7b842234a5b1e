package redis_client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	opt := Options("redis.internal", 6380, "secret")
	assert.Equal(t, "redis.internal:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Greater(t, opt.PoolSize, 0)
	assert.LessOrEqual(t, opt.PoolSize, 512)
}
