package pool

import (
	"sync"

	"github.com/sirupsen/logrus"

	"extio/internal/bid"
	"extio/internal/block"
	"extio/internal/blockio"
)

type pendingRead[V any] struct {
	blk *block.Block[V]
	req *blockio.Request
}

// PrefetchPool owns a multiset of free blocks and in-flight reads keyed
// by BID. Hint starts a read speculatively; Read joins an existing
// hinted read if one is outstanding, or issues a fresh one.
type PrefetchPool[V any] struct {
	mu sync.Mutex

	device   blockio.Device
	newBlock func() *block.Block[V]

	free     []*block.Block[V]
	pending  map[bid.ID]*pendingRead[V]
	order    []bid.ID // FIFO of pending BIDs, oldest first, for eviction
	capacity int
	stolen   int
}

// NewPrefetchPool constructs a prefetch pool of the given capacity.
func NewPrefetchPool[V any](device blockio.Device, capacity int, newBlock func() *block.Block[V]) *PrefetchPool[V] {
	if capacity < MinPrefetchPoolSize {
		logrus.WithField("requested", capacity).
			Warn("pool: prefetch pool has no blocks, prefetching disabled")
	}
	p := &PrefetchPool[V]{
		device:   device,
		newBlock: newBlock,
		pending:  make(map[bid.ID]*pendingRead[V]),
	}
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, newBlock())
	}
	p.capacity = capacity
	return p
}

// Hint issues an async read for id if one isn't already outstanding and a
// free block is available. If no free block is available, it makes a
// best-effort attempt to cancel and repurpose the oldest outstanding
// hint; otherwise the hint is silently ignored. Hint is idempotent.
func (p *PrefetchPool[V]) Hint(id bid.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pending[id]; ok {
		return
	}

	blk, ok := p.takeFreeLocked()
	if !ok {
		blk, ok = p.evictOldestLocked()
		if !ok {
			logrus.WithField("bid", id).Debug("pool: prefetch hint dropped, no free block")
			return
		}
	}

	req, err := p.device.ReadAt(blk.Bytes(), id)
	if err != nil {
		logrus.WithError(err).WithField("bid", id).Warn("pool: prefetch hint failed to submit")
		p.free = append(p.free, blk)
		return
	}
	p.pending[id] = &pendingRead[V]{blk: blk, req: req}
	p.order = append(p.order, id)
}

func (p *PrefetchPool[V]) takeFreeLocked() (*block.Block[V], bool) {
	if n := len(p.free); n > 0 {
		blk := p.free[n-1]
		p.free = p.free[:n-1]
		return blk, true
	}
	return nil, false
}

// evictOldestLocked attempts to cancel the oldest pending hint and
// repurpose its block. Cancellation is best-effort: if the read already
// completed or started servicing, eviction fails and the hint is
// dropped rather than blocking.
func (p *PrefetchPool[V]) evictOldestLocked() (*block.Block[V], bool) {
	for len(p.order) > 0 {
		oldest := p.order[0]
		p.order = p.order[1:]
		pr, ok := p.pending[oldest]
		if !ok {
			continue // already consumed via Read
		}
		delete(p.pending, oldest)
		if pr.req.Cancel() {
			return pr.blk, true
		}
		// Not cancelable (already in flight/done): let it complete and
		// fall back to the free list on its own; try the next oldest.
		go func(pr *pendingRead[V]) {
			_, _ = pr.req.Poll()
			pr.req.Wait()
			p.mu.Lock()
			p.free = append(p.free, pr.blk)
			p.mu.Unlock()
		}(pr)
	}
	return nil, false
}

// Read fills target with the contents of id: if a hint for id is already
// outstanding, its block replaces *target (the old *target is returned to
// the free list) and its request is returned; otherwise a fresh read is
// submitted directly into *target.
func (p *PrefetchPool[V]) Read(target **block.Block[V], id bid.ID) (*blockio.Request, error) {
	p.mu.Lock()
	if pr, ok := p.pending[id]; ok {
		delete(p.pending, id)
		for i, o := range p.order {
			if o == id {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
		old := *target
		*target = pr.blk
		p.mu.Unlock()
		if old != nil {
			p.Add(old)
		}
		return pr.req, nil
	}
	p.mu.Unlock()

	return p.device.ReadAt((*target).Bytes(), id)
}

// Add contributes a block to the free list.
func (p *PrefetchPool[V]) Add(blk *block.Block[V]) {
	p.mu.Lock()
	p.stolen--
	p.free = append(p.free, blk)
	p.mu.Unlock()
}

// Steal returns a currently free block, without regard for pending
// reads (a caller needing to guarantee reaping of completed reads should
// prefer Read/Hint's natural bookkeeping).
func (p *PrefetchPool[V]) Steal() (*block.Block[V], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.capacity == 0 {
		return nil, ErrZeroCapacity
	}
	if blk, ok := p.takeFreeLocked(); ok {
		p.stolen++
		return blk, nil
	}
	return nil, ErrPoolExhausted
}

// Resize grows or shrinks prefetch pool capacity, growing by allocating
// new blocks and shrinking by discarding free blocks (waiting on
// in-flight reads first if that is not enough to reach the target).
func (p *PrefetchPool[V]) Resize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n > p.capacity {
		for i := 0; i < n-p.capacity; i++ {
			p.free = append(p.free, p.newBlock())
		}
		p.capacity = n
		return
	}

	target := p.capacity - n
	for target > 0 && len(p.free) > 0 {
		p.free = p.free[:len(p.free)-1]
		p.capacity--
		target--
	}
	for target > 0 && len(p.order) > 0 {
		oldest := p.order[0]
		p.order = p.order[1:]
		pr := p.pending[oldest]
		delete(p.pending, oldest)
		p.mu.Unlock()
		_ = pr.req.Wait()
		p.mu.Lock()
		p.capacity--
		target--
	}
}

// SizePrefetch returns the pool's current total capacity.
func (p *PrefetchPool[V]) SizePrefetch() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}
