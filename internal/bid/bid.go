// Package bid defines the opaque block identifier used throughout the
// external-memory containers to name an on-disk block slot.
package bid

import "fmt"

// ID names a single block-sized slot on one of the striped disk files. It
// carries no information about the block's contents; it is handed out by an
// allocator and is single-owner for the lifetime of the block it names.
type ID struct {
	// Disk selects which striped device the block lives on.
	Disk int
	// Offset is the block-aligned byte offset of the slot within that
	// device's backing file.
	Offset int64
}

// Nil is the sentinel ID {Disk: -1, Offset: -1}, never handed out by an
// allocator, usable for "no block". It is not the zero value: ID{} names
// offset 0 on disk 0, a valid block.
var Nil = ID{Disk: -1, Offset: -1}

func (id ID) IsNil() bool {
	return id == Nil
}

func (id ID) String() string {
	return fmt.Sprintf("bid(disk=%d,off=%d)", id.Disk, id.Offset)
}
