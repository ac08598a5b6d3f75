// Package extvector supplies a minimal stand-in for the external vector
// collaborator: an ordered range of block identifiers, addressable by
// index, that the buffered input/output streams and algorithm wrappers
// in pkg/bufio walk over. Vector is a reference implementation of that
// collaborator sufficient to exercise those streams end-to-end; a real
// caller may supply any type satisfying BlockSource/BlockSink instead.
package extvector

import "extio/internal/bid"

// BlockSource is the read side of an external vector: enough to walk its
// blocks in order without knowing how it stores or grows them.
type BlockSource interface {
	// Len returns the number of logical elements covered.
	Len() int
	// BlockCap returns B, the number of elements per full block. Only
	// the last block covered by Len may hold fewer than BlockCap.
	BlockCap() int
	// NumBlocks returns the number of blocks covered, including a
	// partial trailing block if Len is not a multiple of BlockCap.
	NumBlocks() int
	// BID returns the block identifier of the i-th block, 0 <= i <
	// NumBlocks().
	BID(i int) bid.ID
}

// BlockSink extends BlockSource with the write-back and cache-coherency
// hook a mutating algorithm needs.
type BlockSink interface {
	BlockSource
	// Invalidate notifies the vector that the i-th block was rewritten
	// out from under it (e.g. by a mutating algorithm wrapper) and any
	// copy the vector itself caches must be dropped.
	Invalidate(i int)
}

// LastBlockLen returns how many of src's last block's slots hold valid
// elements — src.BlockCap() unless Len() isn't a multiple of BlockCap(),
// in which case it's the remainder. Callers use this to avoid reading or
// overwriting the unused tail of a partial trailing block.
func LastBlockLen(src BlockSource) int {
	n := src.NumBlocks()
	if n == 0 {
		return 0
	}
	if rem := src.Len() % src.BlockCap(); rem != 0 {
		return rem
	}
	return src.BlockCap()
}
