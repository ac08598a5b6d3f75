package arena

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"

	"extio/internal/arch"
	"extio/internal/mmap"
)

// ErrArenaFull is returned by Allocate once the arena has no room left
// for the requested (and alignment-padded) size.
var ErrArenaFull = errors.New("allocation failed because arena is full")

// Arena is a lock-free bump allocator over a single mmap'd buffer. Every
// block a pool or container carves out over the arena's lifetime lives
// here; nothing is ever freed back to the OS until Close, since freed
// blocks are recycled by the pool that owns them instead.
type Arena struct {
	position arch.AtomicUint
	buffer   []byte
	overflow uint
	mmapped  bool
	closed   sync.Once
}

// New allocates a new arena of size bytes, backed by an anonymous mmap
// region when the OS supports it and falling back to a plain heap slice
// otherwise. The caller must not hold on to any pointer into the arena
// past Close.
func New(size uint) *Arena {
	a := &Arena{
		mmapped: true,
	}

	// Position/offset 0 is reserved as the arena's nil pointer
	a.position.Store(1)

	buf, err := mmap.New(int(size))
	if err != nil {
		logrus.WithError(err).WithField("size", size).
			Warn("arena: mmap unavailable, falling back to heap-backed buffer")
		buf = make([]byte, size)
		a.mmapped = false
	}
	a.buffer = buf

	return a
}

// WithOverflow provides extra space at the end of buffer where if an arena is
// "full", then any pointer that is cast to a type that goes a bit beyond the
// allocation will not cause an out of bounds of the backing slice.
func WithOverflow(size, overflow uint) *Arena {
	a := New(size + overflow)
	a.overflow = overflow
	return a
}

// Allocate reserves size bytes aligned to alignment (which must be a
// power of two, e.g. directio.BlockSize for a buffer headed to an
// O_DIRECT read/write) and returns its offset into GetBytes/GetPointer.
func (a *Arena) Allocate(size, alignment uint) (offset uint, err error) {
	// Verify that the arena isn't already full
	position := uint(a.position.Load())
	if position > uint(len(a.buffer))-a.overflow {
		return 0, ErrArenaFull
	}

	// Pad the allocation with enough bytes to ensure the requested alignment
	padded := size + alignment - 1

	// Check if arena is full after allocating
	position = uint(a.position.Add(arch.UintToArchSize(padded)))
	if position > uint(len(a.buffer))-a.overflow {
		logrus.WithFields(logrus.Fields{"size": size, "alignment": alignment, "capacity": a.Cap()}).
			Debug("arena: allocation exceeds remaining capacity")
		return 0, ErrArenaFull
	}

	// Return the aligned offset
	offset = (position - padded + alignment - 1) & ^(alignment - 1)
	return offset, nil
}

func (a *Arena) GetBytes(offset uint, size uint) []byte {
	if offset == 0 {
		return nil
	}

	// Return arena slice with capacity equal to the size of the allocation so
	// that the caller can't overwrite past the end of the allocation.
	return a.buffer[offset : offset+size : offset+size]
}

func (a *Arena) GetPointer(offset uint) unsafe.Pointer {
	if offset == 0 {
		return nil
	}

	return unsafe.Pointer(&a.buffer[offset])
}

func (a *Arena) GetPointerOffset(ptr unsafe.Pointer) uint {
	if ptr == nil {
		return 0
	}

	return uint(uintptr(ptr) - uintptr(unsafe.Pointer(&a.buffer[0])))
}

func (a *Arena) Len() uint {
	s := a.position.Load()
	return uint(s) - 1
}

func (a *Arena) Cap() uint {
	return uint(len(a.buffer)) - a.overflow - 1
}

func (a *Arena) Reset() {
	a.position.Store(1)
}

func (a *Arena) Close() error {
	var err error
	a.closed.Do(func() {
		if a.mmapped {
			err = mmap.Free(a.buffer)
		}
	})
	return err
}
