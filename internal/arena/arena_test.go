package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocateAligned(t *testing.T) {
	a := New(4096)
	defer a.Close()

	off, err := a.Allocate(64, 16)
	require.NoError(t, err)
	assert.Zero(t, off%16)

	buf := a.GetBytes(off, 64)
	assert.Len(t, buf, 64)
}

func TestArenaAllocateExhausts(t *testing.T) {
	a := New(128)
	defer a.Close()

	_, err := a.Allocate(64, 8)
	require.NoError(t, err)

	_, err = a.Allocate(128, 8)
	assert.ErrorIs(t, err, ErrArenaFull)
}

func TestArenaWithOverflowLeavesGuardRegion(t *testing.T) {
	a := WithOverflow(64, 32)
	defer a.Close()

	// Position 1 plus 56 bytes plus 7 bytes of alignment padding fills the
	// 64 bytes before the overflow region exactly.
	_, err := a.Allocate(56, 8)
	require.NoError(t, err)

	_, err = a.Allocate(1, 8)
	assert.ErrorIs(t, err, ErrArenaFull)
}

func TestArenaResetReclaimsSpace(t *testing.T) {
	a := New(128)
	defer a.Close()

	_, err := a.Allocate(64, 8)
	require.NoError(t, err)
	a.Reset()

	off, err := a.Allocate(64, 8)
	require.NoError(t, err)
	assert.NotZero(t, off)
}

func TestArenaGetBytesZeroOffset(t *testing.T) {
	a := New(64)
	defer a.Close()
	assert.Nil(t, a.GetBytes(0, 10))
}

func TestArenaLenCap(t *testing.T) {
	a := New(128)
	defer a.Close()

	_, err := a.Allocate(32, 8)
	require.NoError(t, err)
	assert.Positive(t, a.Len())
	assert.Equal(t, uint(127), a.Cap())
}
