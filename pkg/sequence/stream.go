package sequence

import (
	"fmt"

	"extio/internal/assert"
	"extio/internal/block"
	"extio/internal/blockio"
)

// exhausted marks a stream's current element index once it has no more
// values to return, the Go analogue of a null current-element pointer.
const exhausted = -1

// Stream is a lazy forward iterator over a sequence's contents, with
// read-ahead prefetching through the same pool the sequence itself uses.
// It holds a read-only borrow over the sequence: the sequence must not
// be mutated while a stream over it is live.
type Stream[V any] struct {
	seq *Sequence[V]

	size       int
	curBlock   *block.Block[V]
	curElement int
	nextBidIdx int
}

// GetStream constructs a forward stream over the whole of s.
func GetStream[V any](s *Sequence[V]) *Stream[V] {
	return &Stream[V]{
		seq:        s,
		size:       s.size,
		curBlock:   s.frontBlock,
		curElement: s.frontElement,
		nextBidIdx: 0,
	}
}

// GetStreamAt constructs a forward stream over the last (size - offset)
// elements of s, skipping whole blocks where possible and issuing at
// most one synchronous read to position in the middle.
func GetStreamAt[V any](s *Sequence[V], offset int) *Stream[V] {
	st := &Stream[V]{seq: s, size: s.size - offset}

	B := s.blockCap
	frontDiff := s.frontElement
	backDiff := s.backElement

	switch {
	case offset+frontDiff < B:
		st.curBlock = s.frontBlock
		st.curElement = s.frontElement + offset
		st.nextBidIdx = 0

	case s.size-offset <= backDiff+1:
		midOffset := offset - (B - frontDiff)
		blockOffset := midOffset % B
		st.curBlock = s.backBlock
		st.curElement = blockOffset
		st.nextBidIdx = len(s.bids)

	default:
		blk, err := s.pool.Steal()
		if err != nil {
			panic(fmt.Sprintf("stream: could not steal block: %v", err))
		}
		midOffset := offset - (B - frontDiff)
		blockShift := midOffset / B
		blockOffset := midOffset % B
		st.nextBidIdx = blockShift

		req, err := s.pool.Read(&blk, s.bids[st.nextBidIdx])
		if err != nil {
			panic(fmt.Sprintf("stream: prefetch read failed: %v", err))
		}
		for i, idx := 0, st.nextBidIdx+1; i < s.blocks2Prefetch && idx < len(s.bids); i, idx = i+1, idx+1 {
			s.pool.Hint(s.bids[idx])
		}
		st.curElement = blockOffset
		if err := req.Wait(); err != nil {
			panic(fmt.Sprintf("%v: %v", blockio.ErrIoFailure, err))
		}
		st.curBlock = blk
		st.nextBidIdx++
	}

	return st
}

// Size returns the number of elements left until end-of-stream.
func (st *Stream[V]) Size() int { return st.size }

// Empty reports whether the stream is exhausted.
func (st *Stream[V]) Empty() bool { return st.size == 0 }

// Value returns the current element without advancing the stream. It is
// a precondition violation to call this once the stream is exhausted.
func (st *Stream[V]) Value() V {
	assert.That(!st.Empty(), "stream: precondition violated, no value on an exhausted stream")
	return st.curBlock.Get(st.curElement)
}

// Advance moves the stream to its next element.
func (st *Stream[V]) Advance() {
	assert.That(!st.Empty(), "stream: precondition violated, advance on an exhausted stream")

	B := st.seq.blockCap
	if st.curElement != B-1 {
		st.size--
		st.curElement++
		return
	}

	st.size--
	if st.size == 0 {
		st.curElement = exhausted
		return
	}
	if st.size <= B {
		if st.curBlock != st.seq.frontBlock {
			st.seq.pool.Add(st.curBlock)
		}
		st.curBlock = st.seq.backBlock
		st.curElement = 0
		return
	}
	if st.curBlock == st.seq.frontBlock {
		blk, err := st.seq.pool.Steal()
		if err != nil {
			panic(fmt.Sprintf("stream: could not steal block: %v", err))
		}
		st.curBlock = blk
	}

	req, err := st.seq.pool.Read(&st.curBlock, st.seq.bids[st.nextBidIdx])
	if err != nil {
		panic(fmt.Sprintf("stream: prefetch read failed: %v", err))
	}
	for i, idx := 0, st.nextBidIdx+1; i < st.seq.blocks2Prefetch && idx < len(st.seq.bids); i, idx = i+1, idx+1 {
		st.seq.pool.Hint(st.seq.bids[idx])
	}
	st.curElement = 0
	if err := req.Wait(); err != nil {
		panic(fmt.Sprintf("%v: %v", blockio.ErrIoFailure, err))
	}
	st.nextBidIdx++
}

// Close returns any block the stream itself stole from the pool. It is a
// no-op if the stream's current block still belongs to the sequence.
func (st *Stream[V]) Close() error {
	if st.curBlock != st.seq.frontBlock && st.curBlock != st.seq.backBlock {
		st.seq.pool.Add(st.curBlock)
	}
	return nil
}
