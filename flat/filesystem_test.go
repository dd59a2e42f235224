package flat

import (
	"testing"

	"github.com/rstms/lfs"
	"github.com/rstms/lfs/flash"
	"github.com/stretchr/testify/require"
)

const testBlockSize = 128

func newTestConfig(blocks uint32) *lfs.Config {
	dev := flash.NewMemDevice(0, blocks*testBlockSize)
	return &lfs.Config{
		Device:        flash.NewBlockDevice(dev, 0, testBlockSize),
		ReadSize:      testBlockSize,
		ProgSize:      testBlockSize,
		BlockSize:     testBlockSize,
		BlockCount:    blocks,
		LookaheadSize: testBlockSize,
	}
}

func newTestFS(t *testing.T) *FS {
	cfg := newTestConfig(64)
	require.Nil(t, Format(cfg))
	f, err := Mount(cfg)
	require.Nil(t, err)
	return f
}

func TestMountBlankRegionFails(t *testing.T) {
	cfg := newTestConfig(64)
	_, err := Mount(cfg)
	require.Equal(t, lfs.ErrCorrupt, err)
}

func TestFormatThenMount(t *testing.T) {
	cfg := newTestConfig(64)
	require.Nil(t, Format(cfg))
	f, err := Mount(cfg)
	require.Nil(t, err)

	info, err := f.Info()
	require.Nil(t, err)
	require.Equal(t, "FLAT", info["format"])
	require.Equal(t, uint32(testBlockSize), info["block_size"])
	require.Equal(t, uint32(64), info["block_count"])
	require.Equal(t, uint32(8), info["entry_blocks"])
	require.Equal(t, uint32(16), info["entry_count"])
	require.NotEmpty(t, info["volume_id"])
	require.Nil(t, f.Unmount())
}

func TestVolumeIDChangesOnReformat(t *testing.T) {
	cfg := newTestConfig(64)
	require.Nil(t, Format(cfg))
	f, err := Mount(cfg)
	require.Nil(t, err)
	first := f.VolumeID()
	require.Nil(t, f.Unmount())

	require.Nil(t, Format(cfg))
	f, err = Mount(cfg)
	require.Nil(t, err)
	require.NotEqual(t, first, f.VolumeID())
}

func TestMountGeometryMismatch(t *testing.T) {
	cfg := newTestConfig(64)
	require.Nil(t, Format(cfg))

	shrunk := *cfg
	shrunk.BlockCount = 32
	_, err := Mount(&shrunk)
	require.Equal(t, lfs.ErrCorrupt, err)
}

func TestBadGeometryRejected(t *testing.T) {
	cfg := newTestConfig(64)
	cfg.BlockSize = 96 // not a multiple of the entry size
	cfg.ReadSize = 96
	cfg.ProgSize = 96
	require.Equal(t, lfs.ErrInval, Format(cfg))

	tiny := newTestConfig(2) // no room for entry table plus data
	require.Equal(t, lfs.ErrInval, Format(tiny))
}

func TestBlockCountBeyondChainWidth(t *testing.T) {
	// chain fields are 16-bit and 0xFFFF is the nil sentinel, so a
	// region with more blocks than that must be refused outright
	cfg := newTestConfig(16)
	cfg.BlockCount = 0x10010
	require.Equal(t, lfs.ErrInval, Format(cfg))
	_, err := Mount(cfg)
	require.Equal(t, lfs.ErrInval, err)

	limit := newTestConfig(16)
	limit.BlockCount = nilBlock
	require.Nil(t, check(limit))
}

func TestStaticBuffersUsed(t *testing.T) {
	cfg := newTestConfig(64)
	cfg.ReadBuffer = make([]byte, testBlockSize)
	cfg.ProgBuffer = make([]byte, testBlockSize)
	require.Nil(t, Format(cfg))
	f, err := Mount(cfg)
	require.Nil(t, err)
	require.Nil(t, f.Mkdir("/buffers"))
	_, err = f.Stat("/buffers")
	require.Nil(t, err)
}
