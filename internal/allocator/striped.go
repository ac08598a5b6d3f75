package allocator

import (
	"fmt"
	"sync"

	"extio/internal/bid"
)

// perDisk tracks free/allocated offsets on one striped disk file. Freed
// offsets are pushed onto freeList and reused before the file is grown,
// keeping a long-lived sequence's backing file from growing unboundedly
// under a push/pop workload.
type perDisk struct {
	blockSize int64
	nextOff   int64
	freeList  []int64
}

// Striped is a concrete Allocator that stripes block identifiers across a
// fixed number of disks, giving consecutive allocations a round-robin
// parallel-disk layout.
type Striped struct {
	mu        sync.Mutex
	disks     []*perDisk
	blockSize int
}

// NewStriped constructs a Striped allocator over numDisks disks, each
// handing out block-aligned offsets of blockSize bytes.
func NewStriped(numDisks, blockSize int) *Striped {
	disks := make([]*perDisk, numDisks)
	for i := range disks {
		disks[i] = &perDisk{blockSize: int64(blockSize)}
	}
	return &Striped{disks: disks, blockSize: blockSize}
}

func (s *Striped) NewBlock(strategy Strategy, stripeIndex int) (bid.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.disks) == 0 {
		return bid.Nil, fmt.Errorf("allocator: no disks configured")
	}

	var diskIdx int
	switch strategy {
	case SingleDisk:
		diskIdx = 0
	default: // RoundRobin
		if stripeIndex < 0 {
			stripeIndex = -stripeIndex
		}
		diskIdx = stripeIndex % len(s.disks)
	}

	d := s.disks[diskIdx]
	var off int64
	if n := len(d.freeList); n > 0 {
		off = d.freeList[n-1]
		d.freeList = d.freeList[:n-1]
	} else {
		off = d.nextOff
		d.nextOff += d.blockSize
	}

	return bid.ID{Disk: diskIdx, Offset: off}, nil
}

func (s *Striped) DeleteBlock(id bid.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.Disk < 0 || id.Disk >= len(s.disks) {
		return fmt.Errorf("allocator: invalid disk index %d in %s", id.Disk, id)
	}
	d := s.disks[id.Disk]
	d.freeList = append(d.freeList, id.Offset)
	return nil
}

func (s *Striped) DeleteBlocks(ids []bid.ID) error {
	for _, id := range ids {
		if err := s.DeleteBlock(id); err != nil {
			return err
		}
	}
	return nil
}
