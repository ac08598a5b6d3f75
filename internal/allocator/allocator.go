// Package allocator is the block allocator facade: it hands out and
// releases block identifiers from a striped, parallel-disk pool.
package allocator

import "extio/internal/bid"

// Strategy selects how a new block's disk is chosen relative to the
// caller-supplied stripe index.
type Strategy int

const (
	// RoundRobin assigns disk = stripeIndex % numDisks, spreading
	// consecutive allocations evenly across disks for bandwidth.
	RoundRobin Strategy = iota
	// SingleDisk always assigns disk 0, useful for single-disk
	// configurations or tests that don't care about striping.
	SingleDisk
)

// Allocator hands out and releases block identifiers.
type Allocator interface {
	// NewBlock assigns a block identifier that is not currently allocated
	// (a slot released by DeleteBlock may be handed out again) according
	// to strategy, using stripeIndex to place it (the caller
	// is expected to pass a monotonically increasing counter, as the
	// sequence's alloc_count does).
	NewBlock(strategy Strategy, stripeIndex int) (bid.ID, error)
	// DeleteBlock releases a single block identifier, making its slot
	// eligible for reuse.
	DeleteBlock(id bid.ID) error
	// DeleteBlocks releases every identifier in ids.
	DeleteBlocks(ids []bid.ID) error
}
