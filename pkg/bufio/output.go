package bufio

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"extio/internal/bid"
	"extio/internal/block"
	"extio/internal/blockio"
	"extio/internal/pool"
)

// OutputStream is a write-behind buffered stream over an ordered range
// of BIDs, whose blocks are all full except possibly the last (holding
// lastLen valid elements). Every slot in the range must be pushed before
// the caller flushes.
type OutputStream[V any] struct {
	p        *pool.ReadWritePool[V]
	bids     []bid.ID
	blockCap int
	lastLen  int

	curBidIdx int
	curOff    int
	cur       *block.Block[V]
	pending   []*blockio.Request
}

// NewOutputStream constructs a stream that will write into bids in
// order. It steals its first resident block eagerly, matching the
// source's practice of not reading old block contents when the whole
// range is about to be overwritten.
func NewOutputStream[V any](p *pool.ReadWritePool[V], bids []bid.ID, blockCap, lastLen int) *OutputStream[V] {
	o := &OutputStream[V]{p: p, bids: bids, blockCap: blockCap, lastLen: lastLen}
	if len(bids) == 0 {
		return o
	}
	blk, err := p.Steal()
	if err != nil {
		panic(fmt.Sprintf("bufio: could not steal output block: %v", err))
	}
	o.cur = blk
	return o
}

// Push writes val to the next slot in the range, rolling the current
// block out to its BID via the write pool once it fills.
func (o *OutputStream[V]) Push(val V) {
	o.cur.Set(o.curOff, val)
	o.curOff++

	curLen := blockLenAt(o.curBidIdx, o.blockCap, o.lastLen, len(o.bids))
	if o.curOff < curLen {
		return
	}

	req, err := o.p.WriteBlock(o.cur, o.bids[o.curBidIdx])
	if err != nil {
		panic(fmt.Sprintf("bufio: write pool failed: %v", err))
	}
	o.pending = append(o.pending, req)
	o.curBidIdx++
	o.curOff = 0

	if o.curBidIdx < len(o.bids) {
		blk, err := o.p.Steal()
		if err != nil {
			panic(fmt.Sprintf("bufio: could not steal output block: %v", err))
		}
		o.cur = blk
	} else {
		o.cur = nil
	}
}

// Flush waits for every write this stream has submitted, concurrently,
// and aggregates any I/O errors.
func (o *OutputStream[V]) Flush() error {
	pending := o.pending
	o.pending = nil

	var mu sync.Mutex
	var result *multierror.Error
	var g errgroup.Group
	for _, req := range pending {
		req := req
		g.Go(func() error {
			if err := req.Wait(); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return result.ErrorOrNil()
}
