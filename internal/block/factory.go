package block

import (
	"fmt"

	"github.com/ncw/directio"

	"extio/internal/arena"
)

// NewFactory returns a function that carves a fresh Block[V] of the given
// element capacity out of a, aligned to directio.BlockSize so the
// resulting buffer can be handed straight to an O_DIRECT read or write.
// a must have enough remaining capacity for every block the caller
// intends to allocate over its lifetime: pools call the factory once per
// block at construction time and again on every capacity increase, but
// never release memory back to the arena (freed blocks are recycled by
// the pool's own free list instead).
func NewFactory[V any](a *arena.Arena, cap int) func() *Block[V] {
	size := ByteSize[V](cap)
	return func() *Block[V] {
		off, err := a.Allocate(uint(size), uint(directio.BlockSize))
		if err != nil {
			panic(fmt.Sprintf("block: arena allocation failed: %v", err))
		}
		raw := a.GetBytes(off, uint(size))
		return New[V](raw, cap)
	}
}
