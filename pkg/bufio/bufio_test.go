package bufio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extio/internal/allocator"
	"extio/internal/arena"
	"extio/internal/bid"
	"extio/internal/block"
	"extio/internal/blockio"
	"extio/internal/pool"
	"extio/pkg/extvector"
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

// testFixture builds a vector and a *separate* shared read/write pool
// (as an algorithm wrapper would receive from a caller) over the same
// device, so pushes through the vector and reads/writes through the
// pool observe the same underlying blocks.
type testFixture struct {
	vector *extvector.Vector[int64]
	pool   *pool.ReadWritePool[int64]
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	dev := newMemDevice(8 * testBlockCap)
	a := arena.New(1 << 20)
	t.Cleanup(func() { _ = a.Close() })
	alloc := allocator.NewStriped(1, 8*testBlockCap)

	v, err := extvector.New[int64](1, dev, alloc, a, testBlockCap)
	require.NoError(t, err)

	newBlock := block.NewFactory[int64](a, testBlockCap)
	p := pool.NewReadWritePool[int64](dev, 4, 4, newBlock)

	return &testFixture{vector: v, pool: p}
}

func TestForEachVisitsEveryElementInRange(t *testing.T) {
	f := newFixture(t)
	defer f.vector.Close()

	n := testBlockCap*5 + 1
	for i := 0; i < n; i++ {
		f.vector.PushBack(int64(i))
	}

	var seen []int64
	err := ForEach[int64](f.vector, f.pool, 2, n-1, func(v int64) {
		seen = append(seen, v)
	}, 2)
	require.NoError(t, err)

	require.Len(t, seen, n-1-2)
	for i, v := range seen {
		assert.Equal(t, int64(i+2), v)
	}
}

func TestForEachMutatingRewritesRangeLeavesEdgesIntact(t *testing.T) {
	f := newFixture(t)
	defer f.vector.Close()

	n := testBlockCap * 4
	for i := 0; i < n; i++ {
		f.vector.PushBack(int64(i))
	}

	begin, end := testBlockCap, n-testBlockCap
	err := ForEachMutating[int64](f.vector, f.pool, begin, end, func(v int64) int64 {
		return v * 10
	}, 2)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		want := int64(i)
		if i >= begin && i < end {
			want *= 10
		}
		assert.Equal(t, want, f.vector.At(i), "index %d", i)
	}
}

func TestGenerateFillsRangeWithAsymmetricEdges(t *testing.T) {
	f := newFixture(t)
	defer f.vector.Close()

	n := testBlockCap * 4
	for i := 0; i < n; i++ {
		f.vector.PushBack(int64(-1))
	}

	begin, end := 1, n-1
	next := int64(0)
	err := Generate[int64](f.vector, f.pool, begin, end, func() int64 {
		v := next
		next++
		return v
	}, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(-1), f.vector.At(0))
	assert.Equal(t, int64(-1), f.vector.At(n-1))
	for i := begin; i < end; i++ {
		assert.Equal(t, int64(i-begin), f.vector.At(i), "index %d", i)
	}
}

func TestFindReturnsFirstMatchOrEnd(t *testing.T) {
	f := newFixture(t)
	defer f.vector.Close()

	n := testBlockCap * 4
	for i := 0; i < n; i++ {
		f.vector.PushBack(int64(i % 3))
	}

	idx, err := Find[int64](f.vector, f.pool, 0, n, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	idx, err = Find[int64](f.vector, f.pool, 0, n, 99, 2)
	require.NoError(t, err)
	assert.Equal(t, n, idx)
}

func TestForEachEmptyRangeIsNoop(t *testing.T) {
	f := newFixture(t)
	defer f.vector.Close()
	f.vector.PushBack(1)

	called := false
	err := ForEach[int64](f.vector, f.pool, 5, 5, func(int64) { called = true }, 1)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestOutputStreamPushAndFlush(t *testing.T) {
	f := newFixture(t)
	defer f.vector.Close()

	for i := 0; i < testBlockCap; i++ {
		f.vector.PushBack(int64(i))
	}
	require.NoError(t, f.vector.Flush())

	bids := []bid.ID{f.vector.BID(0)}
	out := NewOutputStream[int64](f.pool, bids, testBlockCap, testBlockCap)
	for i := 0; i < testBlockCap; i++ {
		out.Push(int64(i * 100))
	}
	require.NoError(t, out.Flush())
}
