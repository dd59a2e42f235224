// Package flat implements a small filesystem engine over the
// lfs.BlockDevice contract. The on-flash format is a superblock, a
// flat table of fixed-size directory entries linked by parent
// indices, and singly linked chains of data blocks. Every metadata
// update is read-modify-erase-program of the containing block
// followed by a sync.
package flat

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/rstms/lfs"
)

const (
	magic   = "FLAT"
	version = uint16(0x0001)

	superBlock = 0 // block index of the superblock
	entryStart = 1 // first entry-table block
	superSize  = 34

	entrySize = 64
	nameMax   = 48

	headerSize = 4      // data block header: marker + next
	dataMarker = 0xDA7A // programmed marker of an in-use data block
	nilBlock   = 0xFFFF // no next block / empty chain
	rootIndex  = 0xFFFF // parent index of top-level entries

	freeState = 0xFF // erased entry slot
	fileState = 0x0F
	dirState  = 0x0D
)

// FS is a mounted flat filesystem bound to a block-device
// configuration. It is not safe for concurrent use; the session
// layer serializes access.
type FS struct {
	cfg         *lfs.Config
	dev         lfs.BlockDevice
	entryBlocks uint32
	volume      uuid.UUID
	blockBuf    []byte // scratch for block rewrites, one block
}

// Format erases the region and writes a fresh superblock. Any
// previous contents are lost. A new volume id is stamped on every
// format.
func Format(cfg *lfs.Config) error {
	if err := check(cfg); err != nil {
		return err
	}
	dev := cfg.Device
	for b := uint32(0); b < cfg.BlockCount; b++ {
		if dev.EraseBlock(b) != nil {
			return lfs.ErrIO
		}
	}
	buf := make([]byte, cfg.BlockSize)
	for i := range buf {
		buf[i] = lfs.Erased
	}
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint16(buf[4:6], version)
	binary.LittleEndian.PutUint32(buf[6:10], cfg.BlockSize)
	binary.LittleEndian.PutUint32(buf[10:14], cfg.BlockCount)
	binary.LittleEndian.PutUint32(buf[14:18], entryBlockCount(cfg))
	volume := uuid.New()
	copy(buf[18:superSize], volume[:])
	if dev.ProgramBlock(superBlock, 0, buf) != nil {
		return lfs.ErrIO
	}
	if dev.Sync() != nil {
		return lfs.ErrIO
	}
	return nil
}

// Mount validates the superblock against the configuration and
// returns a mounted FS. A blank or foreign region fails with
// ErrCorrupt; the caller should format and retry.
func Mount(cfg *lfs.Config) (*FS, error) {
	if err := check(cfg); err != nil {
		return nil, err
	}
	buf := cfg.ReadBuffer
	if uint32(len(buf)) != cfg.BlockSize {
		buf = make([]byte, cfg.BlockSize)
	}
	if cfg.Device.ReadBlock(superBlock, 0, buf) != nil {
		return nil, lfs.ErrIO
	}
	if string(buf[0:4]) != magic {
		return nil, lfs.ErrCorrupt
	}
	if binary.LittleEndian.Uint16(buf[4:6]) != version {
		return nil, lfs.ErrCorrupt
	}
	if binary.LittleEndian.Uint32(buf[6:10]) != cfg.BlockSize {
		return nil, lfs.ErrCorrupt
	}
	if binary.LittleEndian.Uint32(buf[10:14]) != cfg.BlockCount {
		return nil, lfs.ErrCorrupt
	}
	entryBlocks := binary.LittleEndian.Uint32(buf[14:18])
	if entryBlocks == 0 || entryBlocks+entryStart >= cfg.BlockCount {
		return nil, lfs.ErrCorrupt
	}
	f := &FS{cfg: cfg, dev: cfg.Device, entryBlocks: entryBlocks}
	copy(f.volume[:], buf[18:superSize])
	f.blockBuf = cfg.ProgBuffer
	if uint32(len(f.blockBuf)) != cfg.BlockSize {
		f.blockBuf = make([]byte, cfg.BlockSize)
	}
	return f, nil
}

// Unmount flushes the device. The FS must not be used afterward.
func (f *FS) Unmount() error {
	if f.dev.Sync() != nil {
		return lfs.ErrIO
	}
	return nil
}

// VolumeID returns the volume id stamped at format time.
func (f *FS) VolumeID() uuid.UUID {
	return f.volume
}

func (f *FS) Info() (map[string]any, error) {
	return map[string]any{
		"format":       magic,
		"version":      version,
		"block_size":   f.cfg.BlockSize,
		"block_count":  f.cfg.BlockCount,
		"entry_blocks": f.entryBlocks,
		"entry_count":  f.entryCount(),
		"volume_id":    f.volume.String(),
	}, nil
}

// entryBlockCount sizes the entry table at one eighth of the region,
// with a floor of one block.
func entryBlockCount(cfg *lfs.Config) uint32 {
	n := cfg.BlockCount / 8
	if n == 0 {
		n = 1
	}
	return n
}

func check(cfg *lfs.Config) error {
	if err := cfg.Check(); err != nil {
		return err
	}
	if cfg.BlockSize%entrySize != 0 || cfg.BlockSize < superSize {
		return lfs.ErrInval
	}
	// block indices travel in 16-bit chain fields, with nilBlock
	// reserved as the sentinel
	if cfg.BlockCount > nilBlock {
		return lfs.ErrInval
	}
	if entryStart+entryBlockCount(cfg) >= cfg.BlockCount {
		return lfs.ErrInval
	}
	// entry indices must stay below the root sentinel
	if entryBlockCount(cfg)*(cfg.BlockSize/entrySize) >= rootIndex {
		return lfs.ErrInval
	}
	return nil
}

func (f *FS) entriesPerBlock() uint32 {
	return f.cfg.BlockSize / entrySize
}

func (f *FS) entryCount() uint32 {
	return f.entryBlocks * f.entriesPerBlock()
}

// dataStart returns the index of the first data block.
func (f *FS) dataStart() uint32 {
	return entryStart + f.entryBlocks
}

func (f *FS) readBlock(block uint32, buf []byte) error {
	if f.dev.ReadBlock(block, 0, buf) != nil {
		return lfs.ErrIO
	}
	return nil
}

// rewriteBlock replaces the full contents of a block, honoring the
// erase-before-program discipline.
func (f *FS) rewriteBlock(block uint32, buf []byte) error {
	if f.dev.EraseBlock(block) != nil {
		return lfs.ErrIO
	}
	if f.dev.ProgramBlock(block, 0, buf) != nil {
		return lfs.ErrIO
	}
	return nil
}

func (f *FS) sync() error {
	if f.dev.Sync() != nil {
		return lfs.ErrIO
	}
	return nil
}
