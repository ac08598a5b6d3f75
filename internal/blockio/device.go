// Package blockio is the block I/O facade: the boundary between the
// pools/sequence in this module and whatever actually schedules async
// reads and writes against a block device. It is deliberately the
// thinnest layer in the module: DirectFileDevice supplies a concrete,
// direct-I/O-backed implementation so the rest of the module is
// exercisable without a caller bringing their own.
package blockio

import (
	"errors"

	"extio/internal/bid"
)

// ErrIoFailure wraps any error surfaced by a completed request.
var ErrIoFailure = errors.New("blockio: io failure")

// ErrCanceled is the error a canceled request completes with.
var ErrCanceled = errors.New("blockio: request canceled")

// Device issues asynchronous reads and writes against block-identified
// slots and reports its block size. Pools and containers consume this
// interface; DirectFileDevice is the concrete, direct-I/O
// implementation used by pkg/extio's workspace.
type Device interface {
	// ReadAt submits an async read of the block named by id into buf.
	// len(buf) must equal BlockSize().
	ReadAt(buf []byte, id bid.ID) (*Request, error)
	// WriteAt submits an async write of buf to the block named by id.
	// len(buf) must equal BlockSize().
	WriteAt(buf []byte, id bid.ID) (*Request, error)
	// BlockSize returns the device's fixed block size in bytes.
	BlockSize() int
	// Close waits for outstanding requests and releases the device.
	Close() error
}
