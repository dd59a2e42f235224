package flat

import (
	"encoding/binary"
	"io"
	"log"

	"github.com/rstms/lfs"
)

// payload returns the content bytes carried per data block.
func (f *FS) payload() uint32 {
	return f.cfg.BlockSize - headerSize
}

// allocBlock returns the lowest free data block. Free data blocks
// are kept erased, so a block is free iff its marker reads erased.
func (f *FS) allocBlock() (uint16, error) {
	var hdr [headerSize]byte
	for b := f.dataStart(); b < f.cfg.BlockCount; b++ {
		if f.dev.ReadBlock(b, 0, hdr[:]) != nil {
			return 0, lfs.ErrIO
		}
		if binary.LittleEndian.Uint16(hdr[0:2]) == nilBlock {
			return uint16(b), nil
		}
	}
	return 0, lfs.ErrNoSpace
}

// writeChain stores data as a linked chain and returns its first
// block, or nilBlock for empty data. Blocks are written tail first so
// every header links to an already written successor. On failure any
// blocks claimed so far are erased back to free.
func (f *FS) writeChain(data []byte) (uint16, error) {
	if len(data) == 0 {
		return nilBlock, nil
	}
	payload := int(f.payload())
	nblocks := (len(data) + payload - 1) / payload
	next := uint16(nilBlock)
	claimed := make([]uint16, 0, nblocks)
	buf := f.blockBuf
	for i := nblocks - 1; i >= 0; i-- {
		chunk := data[i*payload:]
		if len(chunk) > payload {
			chunk = chunk[:payload]
		}
		block, err := f.allocBlock()
		if err != nil {
			f.releaseBlocks(claimed)
			return 0, err
		}
		for j := range buf {
			buf[j] = lfs.Erased
		}
		binary.LittleEndian.PutUint16(buf[0:2], dataMarker)
		binary.LittleEndian.PutUint16(buf[2:4], next)
		copy(buf[headerSize:], chunk)
		if f.dev.ProgramBlock(uint32(block), 0, buf) != nil {
			f.releaseBlocks(claimed)
			return 0, lfs.ErrIO
		}
		claimed = append(claimed, block)
		next = block
	}
	return next, nil
}

// releaseBlocks erases claimed blocks back to free. A block whose
// erase fails stays half-programmed and reads as in use, so the
// failure is logged rather than dropped.
func (f *FS) releaseBlocks(blocks []uint16) {
	for _, b := range blocks {
		if f.dev.EraseBlock(uint32(b)) != nil {
			log.Printf("lfs: release block %d: erase failed\n", b)
		}
	}
}

// readChain reads size content bytes beginning at first.
func (f *FS) readChain(first uint16, size uint32) ([]byte, error) {
	data := make([]byte, 0, size)
	buf := make([]byte, f.cfg.BlockSize)
	block := first
	for n := uint32(0); block != nilBlock && uint32(len(data)) < size; n++ {
		if n > f.cfg.BlockCount {
			return nil, lfs.ErrCorrupt
		}
		if err := f.readBlock(uint32(block), buf); err != nil {
			return nil, err
		}
		if binary.LittleEndian.Uint16(buf[0:2]) != dataMarker {
			return nil, lfs.ErrCorrupt
		}
		data = append(data, buf[headerSize:]...)
		block = binary.LittleEndian.Uint16(buf[2:4])
	}
	if uint32(len(data)) < size {
		return nil, lfs.ErrCorrupt
	}
	return data[:size], nil
}

// freeChain erases every block of a chain, restoring the free
// (erased) state.
func (f *FS) freeChain(first uint16) error {
	var hdr [headerSize]byte
	block := first
	for n := uint32(0); block != nilBlock; n++ {
		if n > f.cfg.BlockCount {
			return lfs.ErrCorrupt
		}
		if f.dev.ReadBlock(uint32(block), 0, hdr[:]) != nil {
			return lfs.ErrIO
		}
		if binary.LittleEndian.Uint16(hdr[0:2]) != dataMarker {
			return lfs.ErrCorrupt
		}
		next := binary.LittleEndian.Uint16(hdr[2:4])
		if f.dev.EraseBlock(uint32(block)) != nil {
			return lfs.ErrIO
		}
		block = next
	}
	return nil
}

// File is an open file on a mounted FS. A handle is read-only or
// append-only; appended data buffers in memory until Sync or Close
// commits it as a rewritten chain. Handles are only valid while the
// owning FS stays mounted.
type File struct {
	fs       *FS
	index    uint16
	ent      entry
	pos      uint32
	writable bool
	pending  []byte
	closed   bool
}

// OpenFile opens path for reading, or for appending when write is
// true, creating the file if needed. Opening a directory fails with
// ErrIsDir.
func (f *FS) OpenFile(path string, write bool) (*File, error) {
	idx, e, err := f.lookup(path)
	if err == lfs.ErrNoEnt && write {
		parent, name, perr := f.lookupParent(path)
		if perr != nil {
			return nil, perr
		}
		idx, e, err = f.createEntry(parent, name, fileState)
		if err != nil {
			return nil, err
		}
		if err := f.sync(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if e.isDir() {
		return nil, lfs.ErrIsDir
	}
	return &File{fs: f, index: idx, ent: e, writable: write}, nil
}

// Name returns the entry name of the file.
func (h *File) Name() string {
	return h.ent.name
}

// Size returns the file size including uncommitted appends.
func (h *File) Size() uint32 {
	return h.ent.size + uint32(len(h.pending))
}

func (h *File) Read(p []byte) (int, error) {
	if h.closed {
		return 0, lfs.ErrBadFile
	}
	if h.writable {
		return 0, lfs.ErrBadFile
	}
	if h.pos >= h.ent.size {
		return 0, io.EOF
	}
	content, err := h.fs.readChain(h.ent.first, h.ent.size)
	if err != nil {
		return 0, err
	}
	n := copy(p, content[h.pos:])
	h.pos += uint32(n)
	return n, nil
}

func (h *File) Seek(offset int64, whence int) (int64, error) {
	if h.closed {
		return 0, lfs.ErrBadFile
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(h.pos) + offset
	case io.SeekEnd:
		pos = int64(h.Size()) + offset
	default:
		return 0, lfs.ErrInval
	}
	if pos < 0 || pos > int64(h.Size()) {
		return 0, lfs.ErrInval
	}
	h.pos = uint32(pos)
	return pos, nil
}

func (h *File) Write(p []byte) (int, error) {
	if h.closed {
		return 0, lfs.ErrBadFile
	}
	if !h.writable {
		return 0, lfs.ErrBadFile
	}
	h.pending = append(h.pending, p...)
	return len(p), nil
}

// Sync commits buffered appends: the existing content plus the
// buffered tail is written as a fresh chain, the old chain is freed,
// and the entry is updated. The new chain is in place before the old
// one is released.
func (h *File) Sync() error {
	if h.closed {
		return lfs.ErrBadFile
	}
	if !h.writable || len(h.pending) == 0 {
		return nil
	}
	var content []byte
	if h.ent.size > 0 {
		old, err := h.fs.readChain(h.ent.first, h.ent.size)
		if err != nil {
			return err
		}
		content = append(old, h.pending...)
	} else {
		content = h.pending
	}
	first, err := h.fs.writeChain(content)
	if err != nil {
		return err
	}
	oldFirst, oldSize := h.ent.first, h.ent.size
	h.ent.first = first
	h.ent.size = uint32(len(content))
	if err := h.fs.storeEntry(h.index, h.ent); err != nil {
		// the entry still names the old chain; release the new one
		h.ent.first, h.ent.size = oldFirst, oldSize
		if ferr := h.fs.freeChain(first); ferr != nil {
			log.Printf("lfs: release chain %d: %v\n", first, ferr)
		}
		return err
	}
	if oldFirst != nilBlock {
		if err := h.fs.freeChain(oldFirst); err != nil {
			return err
		}
	}
	if err := h.fs.sync(); err != nil {
		return err
	}
	h.pending = nil
	return nil
}

// Close commits any buffered appends and invalidates the handle.
func (h *File) Close() error {
	if h.closed {
		return nil
	}
	err := h.Sync()
	h.closed = true
	return err
}
