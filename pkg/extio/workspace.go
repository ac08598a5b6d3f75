// Package extio is the directory-backed workspace facade: it opens a
// directory of striped disk files, wires up the block devices, the
// allocator, and a backing arena, and hands out sequences and vectors
// built on top of them. It plays the same role for this module that
// db.Open plays for a storage engine: the one entry point that turns a
// bare directory into a set of ready-to-use containers.
package extio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"extio/internal/allocator"
	"extio/internal/arena"
	"extio/internal/block"
	"extio/internal/blockio"
	"extio/internal/pool"
	"extio/pkg/extvector"
	"extio/pkg/sequence"
)

const lockFileName = "workspace.lock"

// Workspace owns one striped disk file per configured disk, plus the
// allocator and arena every sequence/vector it hands out is built from.
type Workspace struct {
	mu sync.Mutex

	dir        string
	lockFile   *os.File
	devices    []*blockio.DirectFileDevice
	router     *blockio.Router
	alloc      *allocator.Striped
	arena      *arena.Arena
	disks      int
	blockBytes int
	closed     bool

	log *logrus.Entry
}

// Open creates dir if necessary, exclusively locks it against other
// processes, and opens/creates `disks` disk files under it, each backing
// blockBytes-sized blocks (a container's blockCap*sizeof(V) must equal
// blockBytes exactly; see NewSequence/NewVector).
func Open(dir string, disks, blockBytes int, opts ...Option) (ws *Workspace, err error) {
	if disks < 1 {
		return nil, ErrNoDisks
	}
	cfg := &Config{workers: DefaultWorkers, arenaSize: DefaultArenaSize}
	for _, o := range opts {
		o.apply(cfg)
	}

	if err = os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("extio: create workspace directory: %w", err)
	}

	lockFile, err := os.OpenFile(filepath.Join(dir, lockFileName), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("extio: open lock file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = lockFile.Close()
		}
	}()
	if ferr := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); ferr != nil {
		err = fmt.Errorf("extio: workspace %s is locked by another process: %w", dir, ferr)
		return nil, err
	}

	devices := make([]*blockio.DirectFileDevice, disks)
	routed := make([]blockio.Device, disks)
	defer func() {
		if err != nil {
			for _, d := range devices {
				if d != nil {
					_ = d.Close()
				}
			}
		}
	}()
	for i := 0; i < disks; i++ {
		path := filepath.Join(dir, fmt.Sprintf("disk-%d", i))
		dev, derr := blockio.NewDirectFileDevice(i, path, blockBytes, cfg.workers)
		if derr != nil {
			err = fmt.Errorf("extio: open disk %d: %w", i, derr)
			return nil, err
		}
		devices[i] = dev
		routed[i] = dev
	}

	ws = &Workspace{
		dir:        dir,
		lockFile:   lockFile,
		devices:    devices,
		router:     blockio.NewRouter(routed),
		alloc:      allocator.NewStriped(disks, blockBytes),
		arena:      arena.New(cfg.arenaSize),
		disks:      disks,
		blockBytes: blockBytes,
		log:        logrus.WithField("component", "extio").WithField("dir", dir),
	}
	ws.log.WithField("disks", disks).Info("extio: workspace opened")
	return ws, nil
}

// Disks returns the number of parallel disks this workspace stripes
// across.
func (w *Workspace) Disks() int { return w.disks }

// NewSequence constructs a sequence over the workspace's shared devices
// and allocator, with its own write/prefetch pools sized from the disk
// count. blockCap*sizeof(V) must equal the workspace's configured block
// size.
func NewSequence[V any](w *Workspace, blockCap int) (*sequence.Sequence[V], error) {
	if err := w.checkBlockSize(block.ByteSize[V](blockCap)); err != nil {
		return nil, err
	}
	return sequence.New[V](w.disks, w.router, w.alloc, w.arena, blockCap)
}

// NewVector constructs an append-only external vector over the
// workspace's shared devices and allocator. blockCap*sizeof(V) must
// equal the workspace's configured block size.
func NewVector[V any](w *Workspace, blockCap int) (*extvector.Vector[V], error) {
	if err := w.checkBlockSize(block.ByteSize[V](blockCap)); err != nil {
		return nil, err
	}
	return extvector.New[V](w.disks, w.router, w.alloc, w.arena, blockCap)
}

// SharedPool constructs a read/write pool of the given capacities over
// the workspace's shared devices, for callers that want several
// sequences/vectors to draw from the same pool rather than each owning
// its own.
func SharedPool[V any](w *Workspace, writeSize, prefetchSize int) *pool.ReadWritePool[V] {
	newBlock := block.NewFactory[V](w.arena, w.blockBytes/block.ElemSize[V]())
	return pool.NewReadWritePool[V](w.router, writeSize, prefetchSize, newBlock)
}

func (w *Workspace) checkBlockSize(bytes int) error {
	if bytes != w.blockBytes {
		return fmt.Errorf("extio: container block size %d bytes does not match workspace block size %d bytes", bytes, w.blockBytes)
	}
	return nil
}

// Device exposes the workspace's routed block device, for callers
// building their own pools or containers directly against
// internal/pool rather than through NewSequence/NewVector/SharedPool.
func (w *Workspace) Device() blockio.Device { return w.router }

// Allocator returns the workspace's shared block allocator.
func (w *Workspace) Allocator() *allocator.Striped { return w.alloc }

// Close flushes and closes every disk device concurrently, releases the
// workspace's arena, and unlocks the directory. It aggregates every
// close error rather than stopping at the first.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var mu sync.Mutex
	var result *multierror.Error
	var g errgroup.Group
	for _, d := range w.devices {
		d := d
		g.Go(func() error {
			if err := d.Close(); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := w.arena.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := syscall.Flock(int(w.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		result = multierror.Append(result, err)
	}
	if err := w.lockFile.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	w.log.Info("extio: workspace closed")
	return result.ErrorOrNil()
}
