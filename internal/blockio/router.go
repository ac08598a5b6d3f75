package blockio

import (
	"fmt"

	"extio/internal/bid"
)

// Router fans out reads and writes across several per-disk devices by
// bid.Disk, so pools and sequences can treat a striped, multi-disk layout
// as a single Device.
type Router struct {
	disks []Device
}

// NewRouter builds a Router over disks, indexed by bid.ID.Disk.
func NewRouter(disks []Device) *Router {
	return &Router{disks: disks}
}

func (r *Router) deviceFor(id bid.ID) (Device, error) {
	if id.Disk < 0 || id.Disk >= len(r.disks) {
		return nil, fmt.Errorf("blockio: disk index %d out of range [0,%d)", id.Disk, len(r.disks))
	}
	return r.disks[id.Disk], nil
}

func (r *Router) ReadAt(buf []byte, id bid.ID) (*Request, error) {
	dev, err := r.deviceFor(id)
	if err != nil {
		return nil, err
	}
	return dev.ReadAt(buf, id)
}

func (r *Router) WriteAt(buf []byte, id bid.ID) (*Request, error) {
	dev, err := r.deviceFor(id)
	if err != nil {
		return nil, err
	}
	return dev.WriteAt(buf, id)
}

// BlockSize returns the block size shared by every routed disk. Devices
// with mismatched block sizes are a construction-time error the caller
// of NewRouter is responsible for avoiding.
func (r *Router) BlockSize() int {
	if len(r.disks) == 0 {
		return 0
	}
	return r.disks[0].BlockSize()
}

func (r *Router) Close() error {
	var firstErr error
	for _, d := range r.disks {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NumDisks returns the number of striped disks behind the router.
func (r *Router) NumDisks() int {
	return len(r.disks)
}
