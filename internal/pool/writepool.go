// Package pool implements the write pool, prefetch pool, and their
// combined read-write facade: bounded sets of reusable blocks that
// absorb the latency of the underlying block device by keeping several
// writes and reads outstanding at once.
package pool

import (
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"extio/internal/bid"
	"extio/internal/block"
	"extio/internal/blockio"
)

type pendingWrite[V any] struct {
	blk *block.Block[V]
	req *blockio.Request
	id  bid.ID
}

// WritePool owns a multiset of free blocks and in-flight writes. A
// block handed to Write stays reachable from the pool (as a pending
// write) until the write completes, at which point it becomes free
// again.
type WritePool[V any] struct {
	mu sync.Mutex

	device   blockio.Device
	newBlock func() *block.Block[V]

	free     []*block.Block[V]
	pending  []*pendingWrite[V]
	capacity int
	stolen   int
}

// NewWritePool constructs a write pool of the given capacity, using
// newBlock to allocate each block's backing storage.
func NewWritePool[V any](device blockio.Device, capacity int, newBlock func() *block.Block[V]) *WritePool[V] {
	if capacity < MinWritePoolSize {
		logrus.WithFields(logrus.Fields{"requested": capacity, "corrected": CorrectedWritePoolSize}).
			Warn("pool: write pool capacity too small, resizing")
		capacity = CorrectedWritePoolSize
	}
	p := &WritePool[V]{device: device, newBlock: newBlock}
	p.growLocked(capacity)
	return p
}

func (p *WritePool[V]) growLocked(n int) {
	for i := 0; i < n; i++ {
		p.free = append(p.free, p.newBlock())
	}
	p.capacity += n
}

// reapLocked moves every completed pending write into the free list.
// Called with p.mu held.
func (p *WritePool[V]) reapLocked() {
	kept := p.pending[:0]
	for _, pw := range p.pending {
		if done, _ := pw.req.Poll(); done {
			p.free = append(p.free, pw.blk)
		} else {
			kept = append(kept, pw)
		}
	}
	p.pending = kept
}

// Steal returns a currently free block, reaping completed writes first.
// When no block is free but writes are pending, it waits for the oldest
// pending write to complete and takes its block. It fails only when the
// pool has zero capacity or every block is stolen by callers (none free,
// none pending).
func (p *WritePool[V]) Steal() (*block.Block[V], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.capacity == 0 {
		return nil, ErrZeroCapacity
	}

	for {
		p.reapLocked()
		if n := len(p.free); n > 0 {
			blk := p.free[n-1]
			p.free = p.free[:n-1]
			p.stolen++
			return blk, nil
		}
		if len(p.pending) == 0 {
			return nil, ErrPoolExhausted
		}
		// Wait for the oldest outstanding write (submission order) so
		// that steal() remains fair under sustained pressure.
		oldest := p.pending[0]
		p.mu.Unlock()
		_ = oldest.req.Wait()
		p.mu.Lock()
	}
}

// Write transfers ownership of blk (previously obtained via Steal) into
// the pool, submits an async write to id, and returns the resulting
// request. The pool retains blk, reachable via Steal's reap path, until
// the write completes.
func (p *WritePool[V]) Write(blk *block.Block[V], id bid.ID) (*blockio.Request, error) {
	req, err := p.device.WriteAt(blk.Bytes(), id)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.stolen--
	p.pending = append(p.pending, &pendingWrite[V]{blk: blk, req: req, id: id})
	p.mu.Unlock()

	return req, nil
}

// Add contributes a block back to the free list, e.g. a resident block a
// sequence no longer needs but that was never enqueued for writing.
func (p *WritePool[V]) Add(blk *block.Block[V]) {
	p.mu.Lock()
	p.stolen--
	p.free = append(p.free, blk)
	p.mu.Unlock()
}

// Resize grows or shrinks the pool's capacity. Shrinking waits for
// in-flight writes it cannot otherwise honor before discarding blocks,
// and will not reclaim blocks currently stolen by callers: if the free
// and pending blocks are not enough to reach n, capacity stays above n,
// and blocks returned later via Add or Write are kept.
func (p *WritePool[V]) Resize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n > p.capacity {
		p.growLocked(n - p.capacity)
		return
	}

	target := p.capacity - n
	for target > 0 && len(p.free) > 0 {
		p.free = p.free[:len(p.free)-1]
		p.capacity--
		target--
	}
	for target > 0 && len(p.pending) > 0 {
		oldest := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()
		_ = oldest.req.Wait()
		p.mu.Lock()
		p.capacity--
		target--
	}
}

// Size returns the pool's current total capacity.
func (p *WritePool[V]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// Drain waits for every currently pending write to complete, collecting
// their blocks back onto the free list and aggregating any I/O errors.
// Callers use this before tearing down the underlying device, e.g. a
// sequence returning its last resident blocks on Close, so that writes
// submitted earlier in the container's lifetime aren't abandoned
// in flight.
func (p *WritePool[V]) Drain() error {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	var mu sync.Mutex
	var result *multierror.Error
	var g errgroup.Group
	for _, pw := range pending {
		pw := pw
		g.Go(func() error {
			if err := pw.req.Wait(); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	for _, pw := range pending {
		p.free = append(p.free, pw.blk)
	}
	p.mu.Unlock()

	return result.ErrorOrNil()
}
