package blockio

import (
	"path/filepath"
	"testing"

	"github.com/ncw/directio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extio/internal/bid"
)

func TestDirectFileDeviceWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk-0")
	dev, err := NewDirectFileDevice(0, path, directio.BlockSize, 2)
	require.NoError(t, err)
	defer dev.Close()

	out := directio.AlignedBlock(directio.BlockSize)
	for i := range out {
		out[i] = byte(i)
	}
	wreq, err := dev.WriteAt(out, bid.ID{Disk: 0, Offset: 0})
	require.NoError(t, err)
	require.NoError(t, wreq.Wait())

	in := directio.AlignedBlock(directio.BlockSize)
	rreq, err := dev.ReadAt(in, bid.ID{Disk: 0, Offset: 0})
	require.NoError(t, err)
	require.NoError(t, rreq.Wait())

	assert.Equal(t, out, in)
}

func TestDirectFileDeviceRejectsWrongDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk-0")
	dev, err := NewDirectFileDevice(0, path, directio.BlockSize, 1)
	require.NoError(t, err)
	defer dev.Close()

	buf := directio.AlignedBlock(directio.BlockSize)
	_, err = dev.WriteAt(buf, bid.ID{Disk: 1, Offset: 0})
	assert.Error(t, err)
}

func TestDirectFileDeviceRejectsWrongBufferSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk-0")
	dev, err := NewDirectFileDevice(0, path, directio.BlockSize, 1)
	require.NoError(t, err)
	defer dev.Close()

	_, err = dev.WriteAt(make([]byte, 16), bid.ID{Disk: 0, Offset: 0})
	assert.Error(t, err)
}

func TestDirectFileDeviceRejectsInvalidBlockSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk-0")
	_, err := NewDirectFileDevice(0, path, 0, 1)
	assert.Error(t, err)
}

func TestDirectFileDeviceCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk-0")
	dev, err := NewDirectFileDevice(0, path, directio.BlockSize, 1)
	require.NoError(t, err)

	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())
}
