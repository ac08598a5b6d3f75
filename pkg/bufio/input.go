// Package bufio implements the buffered input/output streams over an
// ordered block-identifier range, and the scan-style algorithm wrappers
// built on top of them.
package bufio

import (
	"fmt"

	"extio/internal/assert"
	"extio/internal/bid"
	"extio/internal/block"
	"extio/internal/blockio"
	"extio/internal/pool"
)

// blockLenAt returns how many of the i-th block's slots (0-indexed
// within a range of n blocks) hold valid elements: blockCap for every
// block but the last, lastLen for the last.
func blockLenAt(i, blockCap, lastLen, n int) int {
	if i == n-1 {
		return lastLen
	}
	return blockCap
}

// InputStream is a read-ahead buffered stream over an ordered range of
// BIDs, keeping up to nbuffers reads outstanding through a shared
// read/write pool.
type InputStream[V any] struct {
	p        *pool.ReadWritePool[V]
	bids     []bid.ID
	blockCap int
	lastLen  int
	nbuffers int

	remaining  int
	nextBidIdx int
	cur        *block.Block[V]
	curOff     int
	curLen     int
}

// NewInputStream constructs a stream over bids, whose blocks are all
// full except possibly the last, which holds lastLen valid elements.
// nbuffers bounds how many reads are kept outstanding at once.
func NewInputStream[V any](p *pool.ReadWritePool[V], bids []bid.ID, blockCap, lastLen, nbuffers int) *InputStream[V] {
	total := 0
	if n := len(bids); n > 0 {
		total = (n-1)*blockCap + lastLen
	}
	s := &InputStream[V]{p: p, bids: bids, blockCap: blockCap, lastLen: lastLen, nbuffers: nbuffers, remaining: total}
	if len(bids) == 0 {
		return s
	}

	blk, err := p.Steal()
	if err != nil {
		panic(fmt.Sprintf("bufio: could not steal input block: %v", err))
	}
	req, err := p.Read(&blk, bids[0])
	if err != nil {
		panic(fmt.Sprintf("bufio: prefetch read failed: %v", err))
	}
	for i := 1; i < nbuffers && i < len(bids); i++ {
		p.Hint(bids[i])
	}
	if err := req.Wait(); err != nil {
		panic(fmt.Sprintf("%v: %v", blockio.ErrIoFailure, err))
	}

	s.cur = blk
	s.curLen = blockLenAt(0, blockCap, lastLen, len(bids))
	s.nextBidIdx = 1
	return s
}

// Empty reports whether every element in the covered range has been
// consumed.
func (s *InputStream[V]) Empty() bool { return s.remaining == 0 }

// Value returns the current element without consuming it.
func (s *InputStream[V]) Value() V {
	assert.That(!s.Empty(), "bufio: precondition violated, no value on an exhausted input stream")
	return s.cur.Get(s.curOff)
}

// Advance consumes the current element and loads the next.
func (s *InputStream[V]) Advance() {
	assert.That(!s.Empty(), "bufio: precondition violated, advance on an exhausted input stream")

	s.remaining--
	s.curOff++
	if s.remaining == 0 || s.curOff < s.curLen {
		return
	}

	blk := s.cur
	req, err := s.p.Read(&blk, s.bids[s.nextBidIdx])
	if err != nil {
		panic(fmt.Sprintf("bufio: prefetch read failed: %v", err))
	}
	if hintIdx := s.nextBidIdx + s.nbuffers - 1; hintIdx < len(s.bids) {
		s.p.Hint(s.bids[hintIdx])
	}
	if err := req.Wait(); err != nil {
		panic(fmt.Sprintf("%v: %v", blockio.ErrIoFailure, err))
	}

	s.cur = blk
	s.curOff = 0
	s.curLen = blockLenAt(s.nextBidIdx, s.blockCap, s.lastLen, len(s.bids))
	s.nextBidIdx++
}

// Close returns the stream's resident block to the pool. Any BIDs hinted
// but never read are left for the prefetch pool to reclaim on its own
// eviction schedule.
func (s *InputStream[V]) Close() error {
	if s.cur != nil {
		s.p.Add(s.cur)
		s.cur = nil
	}
	return nil
}
