package extvector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extio/internal/allocator"
	"extio/internal/arena"
	"extio/internal/bid"
	"extio/internal/blockio"
)

type memDevice struct {
	blockSize int
	data      map[int64][]byte
}

func newMemDevice(blockSize int) *memDevice {
	return &memDevice{blockSize: blockSize, data: make(map[int64][]byte)}
}

func (d *memDevice) ReadAt(buf []byte, id bid.ID) (*blockio.Request, error) {
	req := blockio.NewRequest(nil)
	if stored, ok := d.data[id.Offset]; ok {
		copy(buf, stored)
	}
	req.Complete(nil)
	return req, nil
}

func (d *memDevice) WriteAt(buf []byte, id bid.ID) (*blockio.Request, error) {
	req := blockio.NewRequest(nil)
	cp := make([]byte, len(buf))
	copy(cp, buf)
	d.data[id.Offset] = cp
	req.Complete(nil)
	return req, nil
}

func (d *memDevice) BlockSize() int { return d.blockSize }
func (d *memDevice) Close() error   { return nil }

const testBlockCap = 4

func newTestVector(t *testing.T) *Vector[int64] {
	t.Helper()
	dev := newMemDevice(8 * testBlockCap)
	a := arena.New(1 << 20)
	t.Cleanup(func() { _ = a.Close() })
	alloc := allocator.NewStriped(1, 8*testBlockCap)

	v, err := New[int64](1, dev, alloc, a, testBlockCap)
	require.NoError(t, err)
	return v
}

func TestVectorPushBackAndAt(t *testing.T) {
	v := newTestVector(t)
	defer v.Close()

	n := testBlockCap*5 + 2
	for i := 0; i < n; i++ {
		v.PushBack(int64(i))
	}
	assert.Equal(t, n, v.Size())

	for i := 0; i < n; i++ {
		assert.Equal(t, int64(i), v.At(i))
	}
}

func TestVectorSetOnPersistedBlockPersistsAcrossCacheEviction(t *testing.T) {
	v := newTestVector(t)
	defer v.Close()

	n := testBlockCap * 4
	for i := 0; i < n; i++ {
		v.PushBack(int64(i))
	}
	require.NoError(t, v.Flush())

	v.Set(2, 999)
	// Touch a different block to force the dirty cache entry to flush.
	_ = v.At(testBlockCap + 1)
	assert.Equal(t, int64(999), v.At(2))
}

func TestVectorLenTracksOnlyFlushedPortion(t *testing.T) {
	v := newTestVector(t)
	defer v.Close()

	for i := 0; i < testBlockCap+1; i++ {
		v.PushBack(int64(i))
	}
	assert.Zero(t, v.Len(), "nothing flushed yet")

	require.NoError(t, v.Flush())
	assert.Equal(t, testBlockCap+1, v.Len())
	assert.Equal(t, 2, v.NumBlocks())
}

func TestVectorFlushIsNoopWithNothingPending(t *testing.T) {
	v := newTestVector(t)
	defer v.Close()
	assert.NoError(t, v.Flush())
	assert.Zero(t, v.NumBlocks())
}

func TestVectorInvalidateForcesRefetch(t *testing.T) {
	v := newTestVector(t)
	defer v.Close()

	for i := 0; i < testBlockCap*2; i++ {
		v.PushBack(int64(i))
	}
	require.NoError(t, v.Flush())

	_ = v.At(0)
	v.Invalidate(0)
	assert.Equal(t, int64(0), v.At(0))
}

func TestVectorAtPanicsOutOfRange(t *testing.T) {
	v := newTestVector(t)
	defer v.Close()
	v.PushBack(1)
	assert.Panics(t, func() { v.At(5) })
	assert.Panics(t, func() { v.At(-1) })
}

func TestLastBlockLenPartialTrailingBlock(t *testing.T) {
	v := newTestVector(t)
	defer v.Close()

	for i := 0; i < testBlockCap+2; i++ {
		v.PushBack(int64(i))
	}
	require.NoError(t, v.Flush())
	assert.Equal(t, 2, LastBlockLen(v))
}

func TestLastBlockLenNoBlocks(t *testing.T) {
	v := newTestVector(t)
	defer v.Close()
	assert.Zero(t, LastBlockLen(v))
}
