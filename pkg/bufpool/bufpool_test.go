package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsExactLength(t *testing.T) {
	for _, size := range []int{0, 1, 100, DefaultSmallSize, DefaultSmallSize + 1, DefaultMediumSize, DefaultLargeSize} {
		buf := Get(size)
		assert.Len(t, buf, size)
		Put(buf)
	}
}

func TestOversizedBuffersAreNotPooled(t *testing.T) {
	size := DefaultLargeSize + 1
	buf := Get(size)
	assert.Len(t, buf, size)
	assert.Equal(t, size, cap(buf))
	Put(buf) // dropped, must not panic
}

func TestPutNilIsNoop(t *testing.T) {
	Put(nil)
}

func TestPooledBufferIsReusable(t *testing.T) {
	p := NewPool(16, 64, 256)

	buf := p.Get(10)
	copy(buf, "aaaaaaaaaa")
	p.Put(buf)

	again := p.Get(16)
	assert.Equal(t, 16, len(again))
	p.Put(again)
}

func TestSizeClassSelection(t *testing.T) {
	p := NewPool(16, 64, 256)

	assert.Equal(t, 16, cap(p.Get(10)))
	assert.Equal(t, 64, cap(p.Get(17)))
	assert.Equal(t, 256, cap(p.Get(65)))
	assert.Equal(t, 300, cap(p.Get(300)))
}
