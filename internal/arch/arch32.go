//go:build 386 || arm

package arch

import "sync/atomic"

type (
	AtomicInt  = atomic.Int32
	AtomicUint = atomic.Uint32
)

// IntToArchSize narrows n to the platform's native atomic width.
func IntToArchSize(n int) int32 {
	return int32(n)
}

// UintToArchSize narrows n to the platform's native atomic width.
func UintToArchSize(n uint) uint32 {
	return uint32(n)
}
