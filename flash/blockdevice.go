package flash

import (
	"github.com/rstms/lfs"
)

// BlockDevice adapts a byte-addressed FlashDevice to the block
// read/program/erase/sync contract consumed by the filesystem engine.
// It holds no state beyond the region base and block geometry.
type BlockDevice struct {
	dev       lfs.FlashDevice
	base      uint32
	blockSize uint32
}

// ensure BlockDevice implements lfs.BlockDevice
var _ lfs.BlockDevice = (*BlockDevice)(nil)

// NewBlockDevice returns an adapter mapping logical blocks of
// blockSize bytes onto the flash region starting at base.
func NewBlockDevice(dev lfs.FlashDevice, base, blockSize uint32) *BlockDevice {
	return &BlockDevice{dev: dev, base: base, blockSize: blockSize}
}

// addr translates a logical block index and byte offset within the
// block to a physical flash address. The engine guarantees block is
// within the configured block count, so no bounds check is made here.
func (bd *BlockDevice) addr(block, off uint32) uint32 {
	return bd.base + block*bd.blockSize + off
}

func (bd *BlockDevice) ReadBlock(block, off uint32, buf []byte) error {
	return bd.dev.Read(buf, bd.addr(block, off))
}

// ProgramBlock writes buf into a region the engine has erased since
// its last program. Programming an unerased region yields undefined
// data, not a detected error.
func (bd *BlockDevice) ProgramBlock(block, off uint32, buf []byte) error {
	return bd.dev.Write(bd.addr(block, off), buf)
}

// EraseBlock sets every byte of the block to the erased value. The
// flash driver exposes no block-erase primitive, so the erase is
// emulated by programming 0xFF across the whole block.
func (bd *BlockDevice) EraseBlock(block uint32) error {
	addr := bd.addr(block, 0)
	for i := uint32(0); i < bd.blockSize; i++ {
		if err := bd.dev.WriteByte(addr+i, lfs.Erased); err != nil {
			return err
		}
	}
	return nil
}

// Sync blocks until every previously programmed byte is durable on
// the flash part.
func (bd *BlockDevice) Sync() error {
	return bd.dev.Flush()
}
