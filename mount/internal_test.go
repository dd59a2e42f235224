package mount

import (
	"testing"

	"github.com/rstms/lfs/flash"
	"github.com/stretchr/testify/require"
)

func TestInternalConfigGeometry(t *testing.T) {
	dev := flash.NewMemDevice(InternalFlashBase, InternalFlashSize)
	cfg := InternalConfig(dev)

	require.Nil(t, cfg.Check())
	require.Equal(t, uint32(128), cfg.BlockSize)
	require.Equal(t, uint32(224), cfg.BlockCount)
	require.Equal(t, uint32(128), cfg.ReadSize)
	require.Equal(t, uint32(128), cfg.ProgSize)

	// the block span fits the reserved region exactly
	require.Equal(t, uint32(InternalFlashSize), cfg.BlockCount*cfg.BlockSize)
	require.Len(t, cfg.ReadBuffer, int(cfg.BlockSize))
	require.Len(t, cfg.ProgBuffer, int(cfg.BlockSize))
}

func TestInternalSessionLifecycle(t *testing.T) {
	dev := flash.NewMemDevice(InternalFlashBase, InternalFlashSize)
	s := NewInternal(dev)

	require.False(t, s.Begin()) // fresh part, nothing to mount
	require.True(t, s.Format())
	require.True(t, s.Begin())
	require.True(t, s.Mkdir("/settings"))
	require.True(t, s.Exists("/settings"))
	s.End()
}

func TestInternalImageFile(t *testing.T) {
	filename := t.TempDir() + "/internal.img"
	dev, err := flash.NewFileDevice(filename, InternalFlashBase, InternalFlashSize)
	require.Nil(t, err)
	defer dev.Close()

	s := NewInternal(dev)
	require.True(t, s.Format())
	require.True(t, s.Begin())
	require.True(t, s.Mkdir("/image"))
	s.End()

	// the image file round-trips through a fresh device
	require.Nil(t, dev.Flush())
	reopened, err := flash.NewFileDevice(filename, InternalFlashBase, InternalFlashSize)
	require.Nil(t, err)
	defer reopened.Close()

	other := NewInternal(reopened)
	require.True(t, other.Begin())
	require.True(t, other.Exists("/image"))
}
