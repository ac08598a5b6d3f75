package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extio/internal/arena"
)

func TestBlockGetSet(t *testing.T) {
	raw := make([]byte, ByteSize[int64](4))
	b := New[int64](raw, 4)

	assert.Equal(t, 4, b.Cap())
	b.Set(0, 10)
	b.Set(3, 40)
	assert.Equal(t, int64(10), b.Get(0))
	assert.Equal(t, int64(40), b.Get(3))
	assert.Equal(t, int64(0), b.Get(1))
}

func TestBlockAtMutatesInPlace(t *testing.T) {
	raw := make([]byte, ByteSize[int32](2))
	b := New[int32](raw, 2)

	p := b.At(1)
	*p = 99
	assert.Equal(t, int32(99), b.Get(1))
}

func TestBlockNewPanicsOnUndersizedBuffer(t *testing.T) {
	raw := make([]byte, ByteSize[int64](1))
	assert.Panics(t, func() { New[int64](raw, 2) })
}

func TestBlockAtPanicsOutOfRange(t *testing.T) {
	raw := make([]byte, ByteSize[int64](2))
	b := New[int64](raw, 2)
	assert.Panics(t, func() { b.At(-1) })
	assert.Panics(t, func() { b.At(2) })
}

func TestByteSizeAndElemSize(t *testing.T) {
	assert.Equal(t, 8, ElemSize[int64]())
	assert.Equal(t, 80, ByteSize[int64](10))
}

func TestBlockBytesIsBackingStorage(t *testing.T) {
	raw := make([]byte, ByteSize[int64](2))
	b := New[int64](raw, 2)
	b.Set(0, 1)
	assert.NotZero(t, b.Bytes())
	assert.Len(t, b.Bytes(), 16)
}

func TestNewFactoryProducesIndependentBlocks(t *testing.T) {
	a := arena.New(1 << 20)
	defer a.Close()

	factory := NewFactory[int64](a, 8)
	b1 := factory()
	b2 := factory()

	require.NotSame(t, b1, b2)
	b1.Set(0, 1)
	b2.Set(0, 2)
	assert.Equal(t, int64(1), b1.Get(0))
	assert.Equal(t, int64(2), b2.Get(0))
}
