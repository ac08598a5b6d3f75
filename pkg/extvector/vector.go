package extvector

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

// ErrNoDisks is returned by New when it cannot infer a positive disk
// count.
var ErrNoDisks = fmt.Errorf("extvector: disk count must be positive")

// Vector is an append-only, block-pool-backed external vector supporting
// indexed random access in addition to the BlockSource/BlockSink view
// pkg/bufio consumes. It grows only at the back, keeping one resident
// tail block plus a one-block read/write cache for random access into
// already-persisted blocks.
//
// The BlockSource/BlockSink surface (Len, NumBlocks, BID, Invalidate)
// describes only the persisted, flushed portion of the vector: pushes
// since the last Flush are not yet visible to a buffered stream reading
// through those methods, matching the source system's requirement that
// algorithm wrappers flush the vector before scanning it.
type Vector[V any] struct {
	size      int // total elements ever pushed, including the unflushed tail
	persisted int // elements covered by bids, including blocks rolled out since the last Flush

	flushed       int // elements visible through BlockSource as of the last Flush
	flushedBlocks int // blocks visible through BlockSource as of the last Flush

	bids       []bid.ID
	allocCount int

	tail     *block.Block[V]
	tailUsed int // elements used in tail, 0 <= tailUsed <= blockCap

	cache    *block.Block[V]
	cacheIdx int // block index cache holds, -1 if empty
	dirty    bool

	alloc    allocator.Allocator
	blockCap int
	newBlock func() *block.Block[V]
	pool     *pool.ReadWritePool[V]

	log *logrus.Entry
}

// New constructs an empty vector backed by its own read/write pool sized
// for disks parallel disks.
func New[V any](disks int, dev blockio.Device, alloc allocator.Allocator, a *arena.Arena, blockCap int) (*Vector[V], error) {
	if disks < 1 {
		return nil, ErrNoDisks
	}
	newBlock := block.NewFactory[V](a, blockCap)
	p := pool.NewReadWritePool[V](dev, disks, disks+2, newBlock)
	return newFromPool[V](p, alloc, newBlock, blockCap), nil
}

func newFromPool[V any](p *pool.ReadWritePool[V], alloc allocator.Allocator, newBlock func() *block.Block[V], blockCap int) *Vector[V] {
	v := &Vector[V]{
		alloc:    alloc,
		blockCap: blockCap,
		newBlock: newBlock,
		pool:     p,
		cacheIdx: -1,
		log:      logrus.WithField("component", "extvector"),
	}
	blk, err := p.Steal()
	if err != nil {
		panic(fmt.Sprintf("extvector: could not steal initial block: %v", err))
	}
	v.tail = blk
	return v
}

// Size returns the total number of elements pushed so far, including any
// not yet flushed to a persisted block.
func (v *Vector[V]) Size() int { return v.size }

// Len implements BlockSource: the number of elements covered by
// persisted blocks as of the last Flush.
func (v *Vector[V]) Len() int { return v.flushed }

// BlockCap returns B, the number of elements per full block.
func (v *Vector[V]) BlockCap() int { return v.blockCap }

// NumBlocks implements BlockSource: the number of blocks persisted as of
// the last Flush, possibly with a partial trailing one (see BID).
func (v *Vector[V]) NumBlocks() int { return v.flushedBlocks }

// BID returns the identifier of the i-th persisted block.
func (v *Vector[V]) BID(i int) bid.ID { return v.bids[i] }

// PushBack appends val, rolling the current tail block out to a fresh
// BID once it fills.
func (v *Vector[V]) PushBack(val V) {
	if v.tailUsed == v.blockCap {
		v.rollTail()
	}
	v.tail.Set(v.tailUsed, val)
	v.tailUsed++
	v.size++
}

// rollTail persists the current tail block (full or partial) as a fresh
// BID and steals a new, empty tail block.
func (v *Vector[V]) rollTail() {
	newbid, err := v.alloc.NewBlock(allocator.RoundRobin, v.allocCount)
	if err != nil {
		panic(fmt.Sprintf("extvector: allocator failed: %v", err))
	}
	v.allocCount++
	if _, err := v.pool.WriteBlock(v.tail, newbid); err != nil {
		panic(fmt.Sprintf("extvector: write pool failed: %v", err))
	}
	v.bids = append(v.bids, newbid)
	v.persisted += v.tailUsed
	v.log.WithField("blocks", len(v.bids)).Debug("extvector rolled tail block")

	blk, err := v.pool.Steal()
	if err != nil {
		panic(fmt.Sprintf("extvector: could not steal block: %v", err))
	}
	v.tail = blk
	v.tailUsed = 0
}

// Flush persists any buffered tail elements as a (possibly partial)
// block, making them visible through the BlockSource/BlockSink surface.
// It is a no-op if nothing has been pushed since the last Flush.
func (v *Vector[V]) Flush() error {
	if v.tailUsed == 0 {
		return nil
	}
	v.rollTail()
	err := v.pool.Drain()
	v.flushed, v.flushedBlocks = v.persisted, len(v.bids)
	return err
}

// At returns the element at logical index i. It is a precondition
// violation to call this with i out of range.
func (v *Vector[V]) At(i int) V {
	assert.That(i >= 0 && i < v.size, "extvector: precondition violated, index %d out of range for size %d", i, v.size)

	if i >= v.persisted {
		return v.tail.Get(i - v.persisted)
	}

	blockIdx, offset := i/v.blockCap, i%v.blockCap
	v.fetchIntoCache(blockIdx)
	return v.cache.Get(offset)
}

// Set overwrites the element at logical index i, writing the containing
// block back through the pool if it had already been persisted.
func (v *Vector[V]) Set(i int, val V) {
	assert.That(i >= 0 && i < v.size, "extvector: precondition violated, index %d out of range for size %d", i, v.size)

	if i >= v.persisted {
		v.tail.Set(i-v.persisted, val)
		return
	}

	blockIdx, offset := i/v.blockCap, i%v.blockCap
	v.fetchIntoCache(blockIdx)
	v.cache.Set(offset, val)
	v.dirty = true
}

// fetchIntoCache ensures v.cache holds blockIdx's contents, flushing a
// dirty cache entry first if it names a different block.
func (v *Vector[V]) fetchIntoCache(blockIdx int) {
	if v.cacheIdx == blockIdx {
		return
	}
	v.flushCache()

	if v.cache == nil {
		blk, err := v.pool.Steal()
		if err != nil {
			panic(fmt.Sprintf("extvector: could not steal cache block: %v", err))
		}
		v.cache = blk
	}
	req, err := v.pool.Read(&v.cache, v.bids[blockIdx])
	if err != nil {
		panic(fmt.Sprintf("extvector: cache read failed: %v", err))
	}
	if err := req.Wait(); err != nil {
		panic(fmt.Sprintf("%v: %v", blockio.ErrIoFailure, err))
	}
	v.cacheIdx = blockIdx
}

func (v *Vector[V]) flushCache() {
	if v.cache == nil || v.cacheIdx < 0 || !v.dirty {
		return
	}
	if _, err := v.pool.WriteBlock(v.cache, v.bids[v.cacheIdx]); err != nil {
		panic(fmt.Sprintf("extvector: cache flush failed: %v", err))
	}
	v.dirty = false
	// The block just handed to the write pool is no longer ours to read
	// from; the next fetch steals a fresh one.
	v.cache = nil
	v.cacheIdx = -1
}

// Invalidate drops any cached copy of the i-th block, forcing the next
// At/Set on that block to re-read it. Callers use this after rewriting a
// block out from under the vector, e.g. via a mutating algorithm
// wrapper's own buffered output stream.
func (v *Vector[V]) Invalidate(i int) {
	if v.cacheIdx == i {
		v.cacheIdx = -1
		v.dirty = false
	}
}

// Close flushes the resident tail and cache blocks and releases all
// persisted BIDs back to the allocator.
func (v *Vector[V]) Close() error {
	var result *multierror.Error

	if err := v.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	v.flushCache()
	if v.cache != nil {
		v.pool.Add(v.cache)
	}
	v.pool.Add(v.tail)

	if err := v.pool.Drain(); err != nil {
		result = multierror.Append(result, err)
	}
	if len(v.bids) > 0 {
		if err := v.alloc.DeleteBlocks(v.bids); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
