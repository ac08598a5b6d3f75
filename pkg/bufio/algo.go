package bufio

import (
	"extio/internal/bid"
	"extio/internal/pool"
	"extio/pkg/extvector"
)

// bidRange collects the BIDs covering blocks [from, to) of src, along
// with the valid element count of the last of those blocks (blockCap
// unless it is also src's true last block, in which case it may be
// partial).
func bidRange(src extvector.BlockSource, from, to int) ([]bid.ID, int) {
	ids := make([]bid.ID, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, src.BID(i))
	}
	lastLen := src.BlockCap()
	if to == src.NumBlocks() {
		lastLen = extvector.LastBlockLen(src)
	}
	return ids, lastLen
}

// resolveNBuffers returns nbuffers when it is positive and otherwise
// falls back to the pool's own prefetch capacity. That fallback is
// whatever the pool was built with; it is not computed from the number
// of parallel disks.
func resolveNBuffers[V any](p *pool.ReadWritePool[V], nbuffers int) int {
	if nbuffers > 0 {
		return nbuffers
	}
	return p.SizePrefetch()
}

// ForEach applies fn to every element of v in [begin, end), in order,
// using a read-ahead buffered stream so I/O overlaps computation. It
// flushes v first so the range is visible on the block device.
func ForEach[V any](v *extvector.Vector[V], p *pool.ReadWritePool[V], begin, end int, fn func(V), nbuffers int) error {
	if begin >= end {
		return nil
	}
	if err := v.Flush(); err != nil {
		return err
	}
	nbuffers = resolveNBuffers(p, nbuffers)

	blockCap := v.BlockCap()
	firstBlock := begin / blockCap
	lastBlockExclusive := (end + blockCap - 1) / blockCap
	bids, lastLen := bidRange(v, firstBlock, lastBlockExclusive)

	in := NewInputStream[V](p, bids, blockCap, lastLen, nbuffers)
	defer in.Close()

	gi := firstBlock * blockCap
	for !in.Empty() {
		if gi >= begin && gi < end {
			fn(in.Value())
		}
		in.Advance()
		gi++
	}
	return nil
}

// ForEachMutating applies fn to every element of v in [begin, end),
// writing fn's result back to the same position. Elements the range's
// leading/trailing partial blocks share with neighbouring, untouched
// data are copied through unchanged so they aren't corrupted.
func ForEachMutating[V any](v *extvector.Vector[V], p *pool.ReadWritePool[V], begin, end int, fn func(V) V, nbuffers int) error {
	if begin >= end {
		return nil
	}
	if err := v.Flush(); err != nil {
		return err
	}
	nbuffers = resolveNBuffers(p, nbuffers)

	blockCap := v.BlockCap()
	firstBlock := begin / blockCap
	lastBlockExclusive := (end + blockCap - 1) / blockCap
	bids, lastLen := bidRange(v, firstBlock, lastBlockExclusive)

	in := NewInputStream[V](p, bids, blockCap, lastLen, nbuffers/2+1)
	defer in.Close()
	out := NewOutputStream[V](p, bids, blockCap, lastLen)

	gi := firstBlock * blockCap
	for !in.Empty() {
		val := in.Value()
		if gi >= begin && gi < end {
			val = fn(val)
		}
		out.Push(val)
		in.Advance()
		gi++
	}
	if err := out.Flush(); err != nil {
		return err
	}
	for i := firstBlock; i < lastBlockExclusive; i++ {
		v.Invalidate(i)
	}
	return nil
}

// Generate assigns generator() to every element of v in [begin, end).
// Whole blocks in the aligned interior of the range go through a
// write-behind buffered stream; a leading and trailing partial block, if
// any, are written through v's own indexed access so as not to disturb
// neighbouring elements sharing those blocks.
func Generate[V any](v *extvector.Vector[V], p *pool.ReadWritePool[V], begin, end int, generator func() V, nbuffers int) error {
	if begin >= end {
		return nil
	}
	blockCap := v.BlockCap()

	i := begin
	for i%blockCap != 0 && i < end {
		v.Set(i, generator())
		i++
	}
	if i >= end {
		return nil
	}

	if err := v.Flush(); err != nil {
		return err
	}
	nbuffers = resolveNBuffers(p, nbuffers)

	alignedEnd := (end / blockCap) * blockCap
	firstBlock := i / blockCap
	lastBlockExclusive := alignedEnd / blockCap

	if lastBlockExclusive > firstBlock {
		bids, _ := bidRange(v, firstBlock, lastBlockExclusive)
		out := NewOutputStream[V](p, bids, blockCap, blockCap)
		for j := i; j < alignedEnd; j++ {
			out.Push(generator())
		}
		if err := out.Flush(); err != nil {
			return err
		}
		for b := firstBlock; b < lastBlockExclusive; b++ {
			v.Invalidate(b)
		}
	}

	for j := alignedEnd; j < end; j++ {
		v.Set(j, generator())
	}
	return nil
}

// Find returns the smallest index in [begin, end) whose element equals
// value, or end if none does.
func Find[V comparable](v *extvector.Vector[V], p *pool.ReadWritePool[V], begin, end int, value V, nbuffers int) (int, error) {
	if begin >= end {
		return end, nil
	}
	if err := v.Flush(); err != nil {
		return end, err
	}
	nbuffers = resolveNBuffers(p, nbuffers)

	blockCap := v.BlockCap()
	firstBlock := begin / blockCap
	lastBlockExclusive := (end + blockCap - 1) / blockCap
	bids, lastLen := bidRange(v, firstBlock, lastBlockExclusive)

	in := NewInputStream[V](p, bids, blockCap, lastLen, nbuffers)
	defer in.Close()

	gi := firstBlock * blockCap
	for gi < begin {
		in.Advance()
		gi++
	}
	for gi < end {
		if in.Value() == value {
			return gi, nil
		}
		in.Advance()
		gi++
	}
	return end, nil
}
