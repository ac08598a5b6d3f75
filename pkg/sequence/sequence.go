// Package sequence implements the block-pool-backed double-ended
// sequence and its forward/reverse streams: an external
// container addressed only at its two ends, with at most two blocks
// resident in memory at any time.
package sequence

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"extio/internal/allocator"
	"extio/internal/arena"
	"extio/internal/assert"
	"extio/internal/bid"
	"extio/internal/block"
	"extio/internal/blockio"
	"extio/internal/pool"
)

// emptyBackElement is the "one before start" sentinel back_element takes
// when the sequence holds no elements.
const emptyBackElement = -1

// Sequence is a double-ended, block-pool-backed external sequence: it
// supports push/pop at either end but, unlike a vector, offers no random
// access — iteration is only through Stream/ReverseStream.
type Sequence[V any] struct {
	size int

	ownsPool bool
	pool     *pool.ReadWritePool[V]

	frontBlock *block.Block[V]
	backBlock  *block.Block[V]
	// frontElement and backElement are indices within their respective
	// blocks. backElement == emptyBackElement iff the sequence is empty.
	frontElement int
	backElement  int

	allocStrategy allocator.Strategy
	allocCount    int
	bids          []bid.ID

	alloc    allocator.Allocator
	blockCap int // B, elements per block
	newBlock func() *block.Block[V]

	blocks2Prefetch int

	log *logrus.Entry
}

// New constructs an empty sequence with its own write and prefetch
// pools, sized for disks parallel disks: write pool capacity disks,
// prefetch pool capacity disks+2, a 2*D+2 block memory budget that keeps
// every disk's write and prefetch pipeline independently fed.
func New[V any](disks int, dev blockio.Device, alloc allocator.Allocator, a *arena.Arena, blockCap int) (*Sequence[V], error) {
	if disks < 1 {
		return nil, ErrNoDisks
	}
	newBlock := block.NewFactory[V](a, blockCap)
	p := pool.NewReadWritePool[V](dev, disks, disks+2, newBlock)
	return newFromPool[V](p, true, alloc, newBlock, blockCap, -1), nil
}

// NewSized constructs an empty sequence with explicit write/prefetch
// pool capacities and an explicit prefetch aggressiveness.
func NewSized[V any](writePoolSize, prefetchPoolSize int, blocks2Prefetch int, dev blockio.Device, alloc allocator.Allocator, a *arena.Arena, blockCap int) *Sequence[V] {
	newBlock := block.NewFactory[V](a, blockCap)
	p := pool.NewReadWritePool[V](dev, writePoolSize, prefetchPoolSize, newBlock)
	return newFromPool[V](p, true, alloc, newBlock, blockCap, blocks2Prefetch)
}

// NewShared constructs an empty sequence over an externally owned pool.
// The caller remains responsible for the pool's lifetime and, if it is
// shared with other sequences/streams, for serializing access to it —
// this module's containers assume single-threaded callers.
func NewShared[V any](p *pool.ReadWritePool[V], alloc allocator.Allocator, newBlock func() *block.Block[V], blockCap int, blocks2Prefetch int) *Sequence[V] {
	return newFromPool[V](p, false, alloc, newBlock, blockCap, blocks2Prefetch)
}

func newFromPool[V any](p *pool.ReadWritePool[V], owns bool, alloc allocator.Allocator, newBlock func() *block.Block[V], blockCap int, blocks2Prefetch int) *Sequence[V] {
	if p.SizeWrite() < pool.MinWritePoolSize {
		logrus.WithField("size", p.SizeWrite()).
			Warn("sequence: invalid configuration, write pool too small, resizing to 3")
		p.ResizeWrite(pool.CorrectedWritePoolSize)
	}
	if p.SizePrefetch() < pool.MinPrefetchPoolSize {
		logrus.Warn("sequence: inefficient configuration, no blocks for prefetching available")
	}

	s := &Sequence[V]{
		ownsPool: owns,
		pool:     p,
		alloc:    alloc,
		blockCap: blockCap,
		newBlock: newBlock,
		log:      logrus.WithField("component", "sequence"),
	}

	blk, err := p.Steal()
	if err != nil {
		panic(fmt.Sprintf("sequence: could not steal initial block: %v", err))
	}
	s.frontBlock = blk
	s.backBlock = blk
	s.backElement = emptyBackElement
	s.frontElement = 0

	if blocks2Prefetch < 0 {
		s.blocks2Prefetch = p.SizePrefetch()
	} else {
		s.blocks2Prefetch = blocks2Prefetch
	}

	return s
}

// Size returns the number of elements in the sequence.
func (s *Sequence[V]) Size() int { return s.size }

// Empty reports whether the sequence holds no elements.
func (s *Sequence[V]) Empty() bool { return s.size == 0 }

// BlockCap returns B, the number of elements per block.
func (s *Sequence[V]) BlockCap() int { return s.blockCap }

// PrefetchAggressiveness returns the number of BIDs hinted ahead of the
// active end.
func (s *Sequence[V]) PrefetchAggressiveness() int { return s.blocks2Prefetch }

// SetPrefetchAggressiveness overrides how many BIDs are hinted ahead of
// the active end; call after resizing the prefetch pool.
func (s *Sequence[V]) SetPrefetchAggressiveness(n int) {
	if n < 0 {
		n = s.pool.SizePrefetch()
	}
	s.blocks2Prefetch = n
}

// Front returns the element at the front of the sequence. It is a
// precondition violation to call this on an empty sequence.
func (s *Sequence[V]) Front() V {
	mustNotBeEmpty(s.size)
	return s.frontBlock.Get(s.frontElement)
}

// Back returns the element at the back of the sequence. It is a
// precondition violation to call this on an empty sequence.
func (s *Sequence[V]) Back() V {
	mustNotBeEmpty(s.size)
	return s.backBlock.Get(s.backElement)
}

// PushFront adds val to the front of the sequence.
func (s *Sequence[V]) PushFront(val V) {
	if s.frontElement != 0 {
		s.frontElement--
		s.frontBlock.Set(s.frontElement, val)
		s.size++
		return
	}

	B := s.blockCap
	switch {
	case s.size == 0:
		s.log.Debug("push_front Case 0")
		s.frontElement = B - 1
		s.backElement = B - 1
		s.frontBlock.Set(s.frontElement, val)
		s.size++
		return

	case s.frontBlock == s.backBlock:
		// Front block has no free slot before its first element and is
		// shared with the back block: it can't be written out because it's still needed as the back
		// block, so a new block is allocated for the front and the old
		// shared block stays resident until it is next touched from the
		// back end.
		s.log.Debug("push_front Case 1")

	case s.size < 2*B:
		s.log.Debug("push_front Case 1.5")
		s.compactForPushFront(val)
		return

	default:
		s.log.Debug("push_front Case 2")
		newbid, err := s.alloc.NewBlock(s.allocStrategy, s.allocCount)
		if err != nil {
			panic(fmt.Sprintf("sequence: allocator failed: %v", err))
		}
		s.allocCount++
		s.bids = append([]bid.ID{newbid}, s.bids...)
		if _, err := s.pool.WriteBlock(s.frontBlock, newbid); err != nil {
			panic(fmt.Sprintf("sequence: write pool failed: %v", err))
		}
		if len(s.bids) <= s.blocks2Prefetch {
			s.pool.Hint(newbid)
		}
	}

	blk, err := s.pool.Steal()
	if err != nil {
		panic(fmt.Sprintf("sequence: could not steal block: %v", err))
	}
	s.frontBlock = blk
	s.frontElement = B - 1
	s.frontBlock.Set(s.frontElement, val)
	s.size++
}

// compactForPushFront handles the "two resident blocks, total < 2B, no
// BIDs yet" case: it rearranges the front and back blocks in memory to
// open a slot at the front, with no I/O.
func (s *Sequence[V]) compactForPushFront(val V) {
	B := s.blockCap
	backUsed := s.backElement + 1
	gap := B - backUsed
	if gap <= 0 {
		panic("sequence: compaction invariant violated, no gap at back block end")
	}

	for i := backUsed - 1; i >= 0; i-- {
		s.backBlock.Set(i+gap, s.backBlock.Get(i))
	}
	for i := 0; i < gap; i++ {
		s.backBlock.Set(i, s.frontBlock.Get(B-gap+i))
	}
	for i := B - gap - 1; i >= s.frontElement; i-- {
		s.frontBlock.Set(i+gap, s.frontBlock.Get(i))
	}

	s.frontElement += gap
	s.backElement += gap

	s.frontElement--
	s.frontBlock.Set(s.frontElement, val)
	s.size++
}

// PushBack adds val to the back of the sequence; the mirror of PushFront.
func (s *Sequence[V]) PushBack(val V) {
	B := s.blockCap
	if s.backElement != B-1 {
		s.backElement++
		s.backBlock.Set(s.backElement, val)
		s.size++
		return
	}

	switch {
	case s.frontBlock == s.backBlock:
		s.log.Debug("push_back Case 1")

	case s.size < 2*B:
		s.log.Debug("push_back Case 1.5")
		s.compactForPushBack(val)
		return

	default:
		s.log.Debug("push_back Case 2")
		newbid, err := s.alloc.NewBlock(s.allocStrategy, s.allocCount)
		if err != nil {
			panic(fmt.Sprintf("sequence: allocator failed: %v", err))
		}
		s.allocCount++
		s.bids = append(s.bids, newbid)
		if _, err := s.pool.WriteBlock(s.backBlock, newbid); err != nil {
			panic(fmt.Sprintf("sequence: write pool failed: %v", err))
		}
		if len(s.bids) <= s.blocks2Prefetch {
			s.pool.Hint(newbid)
		}
	}

	blk, err := s.pool.Steal()
	if err != nil {
		panic(fmt.Sprintf("sequence: could not steal block: %v", err))
	}
	s.backBlock = blk
	s.backElement = 0
	s.backBlock.Set(0, val)
	s.size++
}

func (s *Sequence[V]) compactForPushBack(val V) {
	gap := s.frontElement
	if gap <= 0 {
		panic("sequence: compaction invariant violated, no gap at front block start")
	}
	B := s.blockCap

	for i := s.frontElement; i < B; i++ {
		s.frontBlock.Set(i-gap, s.frontBlock.Get(i))
	}
	for i := 0; i < gap; i++ {
		s.frontBlock.Set(B-gap+i, s.backBlock.Get(i))
	}
	for i := gap; i <= s.backElement; i++ {
		s.backBlock.Set(i-gap, s.backBlock.Get(i))
	}

	s.frontElement -= gap
	s.backElement -= gap

	s.backElement++
	s.backBlock.Set(s.backElement, val)
	s.size++
}

// PopFront removes and discards the element at the front of the
// sequence. It is a precondition violation to call this on an empty
// sequence.
func (s *Sequence[V]) PopFront() {
	mustNotBeEmpty(s.size)

	B := s.blockCap
	if s.frontElement != B-1 {
		s.frontElement++
		s.size--
		if s.size == 0 {
			s.resetEmpty()
		}
		return
	}

	if s.frontBlock == s.backBlock {
		s.log.Debug("pop_front Case 1")
		s.resetEmpty()
		return
	}

	s.size--
	if s.size <= B {
		s.log.Debug("pop_front Case 2")
		s.pool.Add(s.frontBlock)
		s.frontBlock = s.backBlock
		s.frontElement = 0
		return
	}

	s.log.Debug("pop_front Case 3")
	req, err := s.pool.Read(&s.frontBlock, s.bids[0])
	if err != nil {
		panic(fmt.Sprintf("sequence: prefetch pool read failed: %v", err))
	}
	for i := 0; i < s.blocks2Prefetch && i < len(s.bids)-1; i++ {
		s.pool.Hint(s.bids[i+1])
	}
	s.frontElement = 0
	if err := req.Wait(); err != nil {
		panic(fmt.Sprintf("%v: %v", blockio.ErrIoFailure, err))
	}

	if err := s.alloc.DeleteBlock(s.bids[0]); err != nil {
		s.log.WithError(err).Warn("pop_front: failed to release BID")
	}
	s.bids = s.bids[1:]
}

// PopBack removes and discards the element at the back of the sequence;
// the mirror of PopFront.
func (s *Sequence[V]) PopBack() {
	mustNotBeEmpty(s.size)

	B := s.blockCap
	if s.backElement != 0 {
		s.backElement--
		s.size--
		if s.size == 0 {
			s.resetEmpty()
		}
		return
	}

	if s.frontBlock == s.backBlock {
		s.log.Debug("pop_back Case 1")
		s.resetEmpty()
		return
	}

	s.size--
	if s.size <= B {
		s.log.Debug("pop_back Case 2")
		s.pool.Add(s.backBlock)
		s.backBlock = s.frontBlock
		s.backElement = B - 1
		return
	}

	s.log.Debug("pop_back Case 3")
	last := len(s.bids) - 1
	req, err := s.pool.Read(&s.backBlock, s.bids[last])
	if err != nil {
		panic(fmt.Sprintf("sequence: prefetch pool read failed: %v", err))
	}
	for i := 1; i <= s.blocks2Prefetch && i <= last; i++ {
		s.pool.Hint(s.bids[last-i])
	}
	s.backElement = B - 1
	if err := req.Wait(); err != nil {
		panic(fmt.Sprintf("%v: %v", blockio.ErrIoFailure, err))
	}

	if err := s.alloc.DeleteBlock(s.bids[last]); err != nil {
		s.log.WithError(err).Warn("pop_back: failed to release BID")
	}
	s.bids = s.bids[:last]
}

func (s *Sequence[V]) resetEmpty() {
	s.backElement = emptyBackElement
	s.frontElement = 0
	s.size = 0
}

// Swap exchanges the entire state of s and other in constant time.
func (s *Sequence[V]) Swap(other *Sequence[V]) {
	*s, *other = *other, *s
}

// Close releases the sequence's resident blocks back to its pool and
// its persisted BIDs back to the allocator. If the sequence owns its
// pool, closing does not close the underlying device — device lifetime
// belongs to whoever constructed it (typically a Workspace).
func (s *Sequence[V]) Close() error {
	var result *multierror.Error

	if s.frontBlock != s.backBlock {
		s.pool.Add(s.backBlock)
	}
	s.pool.Add(s.frontBlock)

	if err := s.pool.Drain(); err != nil {
		result = multierror.Append(result, err)
	}

	if len(s.bids) > 0 {
		if err := s.alloc.DeleteBlocks(s.bids); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func mustNotBeEmpty(size int) {
	assert.That(size != 0, "sequence: precondition violated, operation not valid on an empty sequence")
}
