package pool

import (
	"extio/internal/bid"
	"extio/internal/block"
	"extio/internal/blockio"
)

// ReadWritePool is the combined facade a sequence actually holds: it
// owns one WritePool and one PrefetchPool. Steal/Add/Write route to the
// write pool, since those are the operations that manage a container's
// two always-resident ends; Hint/Read route to the prefetch pool, which
// exists purely to overlap I/O ahead of consumption.
type ReadWritePool[V any] struct {
	Write    *WritePool[V]
	Prefetch *PrefetchPool[V]
}

// NewReadWritePool constructs both pools against the same device, using
// newBlock to allocate each pool's backing blocks.
func NewReadWritePool[V any](device blockio.Device, writeSize, prefetchSize int, newBlock func() *block.Block[V]) *ReadWritePool[V] {
	return &ReadWritePool[V]{
		Write:    NewWritePool[V](device, writeSize, newBlock),
		Prefetch: NewPrefetchPool[V](device, prefetchSize, newBlock),
	}
}

func (p *ReadWritePool[V]) Steal() (*block.Block[V], error) { return p.Write.Steal() }
func (p *ReadWritePool[V]) Add(blk *block.Block[V])         { p.Write.Add(blk) }
func (p *ReadWritePool[V]) Drain() error                    { return p.Write.Drain() }

func (p *ReadWritePool[V]) WriteBlock(blk *block.Block[V], id bid.ID) (*blockio.Request, error) {
	return p.Write.Write(blk, id)
}

func (p *ReadWritePool[V]) Hint(id bid.ID) { p.Prefetch.Hint(id) }

func (p *ReadWritePool[V]) Read(target **block.Block[V], id bid.ID) (*blockio.Request, error) {
	return p.Prefetch.Read(target, id)
}

func (p *ReadWritePool[V]) SizeWrite() int       { return p.Write.Size() }
func (p *ReadWritePool[V]) SizePrefetch() int    { return p.Prefetch.SizePrefetch() }
func (p *ReadWritePool[V]) ResizeWrite(n int)    { p.Write.Resize(n) }
func (p *ReadWritePool[V]) ResizePrefetch(n int) { p.Prefetch.Resize(n) }
