package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// idleConn has no socket behind it; its close is already spent.
func idleConn() *clientConn {
	c := &clientConn{}
	c.once.Do(func() {})
	return c
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestHub_FinishClosesRoom(t *testing.T) {
	h := NewHub()
	a, b := idleConn(), idleConn()

	first := h.Join("a1", a)
	other := h.Join("b2", b)
	assert.False(t, isClosed(first))

	h.Finish("a1")
	h.Finish("zz")
	assert.True(t, isClosed(first))
	assert.False(t, isClosed(other))

	// late joiners of a finished room see it finished
	assert.True(t, isClosed(h.Join("a1", idleConn())))
	assert.Equal(t, 2, h.Size("a1"))
}

func TestHub_LeaveDropsEmptyRoom(t *testing.T) {
	h := NewHub()
	a, b := idleConn(), idleConn()

	h.Join("a1", a)
	h.Join("a1", b)
	h.Leave("a1", a)
	assert.Equal(t, 1, h.roomCount())
	h.Leave("a1", b)
	assert.Equal(t, 0, h.roomCount())
	assert.Equal(t, 0, h.Size("a1"))

	// a new room starts unfinished
	h.Finish("a1")
	assert.False(t, isClosed(h.Join("a1", a)))
}
