package sequence

import (
	"fmt"

	"extio/internal/assert"
	"extio/internal/block"
	"extio/internal/blockio"
)

// ReverseStream is the mirror of Stream: it iterates a sequence from back
// to front, hinting the BIDs preceding its current position.
type ReverseStream[V any] struct {
	seq *Sequence[V]

	size       int
	curBlock   *block.Block[V]
	curElement int
	// nextBidIdx counts down from len(bids); nextBidIdx-1 is the index
	// of the next BID to consume, mirroring a reverse_iterator.
	nextBidIdx int
}

// GetReverseStream constructs a reverse stream over the whole of s.
func GetReverseStream[V any](s *Sequence[V]) *ReverseStream[V] {
	return &ReverseStream[V]{
		seq:        s,
		size:       s.size,
		curBlock:   s.backBlock,
		curElement: s.backElement,
		nextBidIdx: len(s.bids),
	}
}

func (st *ReverseStream[V]) Size() int   { return st.size }
func (st *ReverseStream[V]) Empty() bool { return st.size == 0 }

// Value returns the current element without advancing the stream.
func (st *ReverseStream[V]) Value() V {
	assert.That(!st.Empty(), "reverse_stream: precondition violated, no value on an exhausted stream")
	return st.curBlock.Get(st.curElement)
}

// Advance moves the stream to its preceding element.
func (st *ReverseStream[V]) Advance() {
	assert.That(!st.Empty(), "reverse_stream: precondition violated, advance on an exhausted stream")

	if st.curElement != 0 {
		st.size--
		st.curElement--
		return
	}

	st.size--
	if st.size == 0 {
		st.curElement = exhausted
		return
	}

	B := st.seq.blockCap
	if st.size <= B {
		if st.curBlock != st.seq.backBlock {
			st.seq.pool.Add(st.curBlock)
		}
		st.curBlock = st.seq.frontBlock
		st.curElement = B - 1
		return
	}
	if st.curBlock == st.seq.backBlock {
		blk, err := st.seq.pool.Steal()
		if err != nil {
			panic(fmt.Sprintf("reverse_stream: could not steal block: %v", err))
		}
		st.curBlock = blk
	}

	nextIdx := st.nextBidIdx - 1
	req, err := st.seq.pool.Read(&st.curBlock, st.seq.bids[nextIdx])
	if err != nil {
		panic(fmt.Sprintf("reverse_stream: prefetch read failed: %v", err))
	}
	for i, idx := 0, nextIdx-1; i < st.seq.blocks2Prefetch && idx >= 0; i, idx = i+1, idx-1 {
		st.seq.pool.Hint(st.seq.bids[idx])
	}
	st.curElement = B - 1
	if err := req.Wait(); err != nil {
		panic(fmt.Sprintf("%v: %v", blockio.ErrIoFailure, err))
	}
	st.nextBidIdx = nextIdx
}

// Close returns any block the stream itself stole from the pool.
func (st *ReverseStream[V]) Close() error {
	if st.curBlock != st.seq.frontBlock && st.curBlock != st.seq.backBlock {
		st.seq.pool.Add(st.curBlock)
	}
	return nil
}
