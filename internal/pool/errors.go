package pool

import (
	"errors"
	"fmt"
)

// ErrPoolExhausted is returned by Steal when no free block is available
// even after reaping completed writes/reads. In a correctly sized
// configuration this is a programming error.
var ErrPoolExhausted = errors.New("pool: exhausted, no free block available")

// ErrZeroCapacity is a specialization of ErrPoolExhausted returned when the
// pool was constructed (or resized) with zero capacity.
var ErrZeroCapacity = fmt.Errorf("%w: zero capacity", ErrPoolExhausted)

// MinWritePoolSize is the write pool capacity below which an invalid
// configuration is silently corrected by resizing up to
// CorrectedWritePoolSize.
const MinWritePoolSize = 2

// CorrectedWritePoolSize is what an under-sized write pool is resized to.
const CorrectedWritePoolSize = 3

// MinPrefetchPoolSize is the prefetch pool capacity below which
// performance (not correctness) degrades.
const MinPrefetchPoolSize = 1
