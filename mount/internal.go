package mount

import (
	"github.com/rstms/lfs"
	"github.com/rstms/lfs/flash"
)

// Reserved internal flash region. One session owns this region for
// the process lifetime: construct it once at startup with NewInternal
// and share the handle with whatever needs storage.
const (
	InternalFlashBase = 0xED000
	InternalFlashSize = 28 * 1024
	InternalBlockSize = 128
	InternalLookahead = 128
)

// InternalConfig builds the block-device configuration for the
// internal region over the given flash driver, with static scratch
// buffers sized once for the region geometry.
func InternalConfig(dev lfs.FlashDevice) *lfs.Config {
	return &lfs.Config{
		Device:        flash.NewBlockDevice(dev, InternalFlashBase, InternalBlockSize),
		ReadSize:      InternalBlockSize,
		ProgSize:      InternalBlockSize,
		BlockSize:     InternalBlockSize,
		BlockCount:    InternalFlashSize / InternalBlockSize,
		LookaheadSize: InternalLookahead,
		ReadBuffer:    make([]byte, InternalBlockSize),
		ProgBuffer:    make([]byte, InternalBlockSize),
	}
}

// NewInternal returns the session for the device's internal storage
// region, unmounted. Begin mounts it; on a fresh part Begin fails
// until the region is formatted.
func NewInternal(dev lfs.FlashDevice) *Session {
	return New(InternalConfig(dev))
}
