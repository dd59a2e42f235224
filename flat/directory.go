package flat

import (
	"encoding/binary"
	"strings"

	"github.com/rstms/lfs"
)

// entry is one 64-byte record in the flat entry table. The slot
// index is the entry's identity; parent links the directory tree.
type entry struct {
	state  byte
	parent uint16
	size   uint32
	first  uint16
	name   string
}

func (e *entry) used() bool {
	return e.state == fileState || e.state == dirState
}

func (e *entry) isDir() bool {
	return e.state == dirState
}

func rootEntry() entry {
	return entry{state: dirState, parent: rootIndex, first: nilBlock, name: "/"}
}

func decodeEntry(buf []byte) entry {
	e := entry{state: buf[0]}
	if !e.used() {
		return e
	}
	nameLen := int(buf[1])
	if nameLen > nameMax {
		nameLen = nameMax
	}
	e.parent = binary.LittleEndian.Uint16(buf[2:4])
	e.size = binary.LittleEndian.Uint32(buf[4:8])
	e.first = binary.LittleEndian.Uint16(buf[8:10])
	e.name = string(buf[10 : 10+nameLen])
	return e
}

func encodeEntry(buf []byte, e entry) {
	for i := 0; i < entrySize; i++ {
		buf[i] = lfs.Erased
	}
	if !e.used() {
		return
	}
	buf[0] = e.state
	buf[1] = byte(len(e.name))
	binary.LittleEndian.PutUint16(buf[2:4], e.parent)
	binary.LittleEndian.PutUint32(buf[4:8], e.size)
	binary.LittleEndian.PutUint16(buf[8:10], e.first)
	copy(buf[10:10+nameMax], e.name)
}

func splitPath(path string) []string {
	segs := make([]string, 0, 8)
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// storeEntry rewrites the entry's slot within its table block.
func (f *FS) storeEntry(idx uint16, e entry) error {
	epb := f.entriesPerBlock()
	block := entryStart + uint32(idx)/epb
	off := (uint32(idx) % epb) * entrySize
	if err := f.readBlock(block, f.blockBuf); err != nil {
		return err
	}
	encodeEntry(f.blockBuf[off:off+entrySize], e)
	return f.rewriteBlock(block, f.blockBuf)
}

func (f *FS) clearEntry(idx uint16) error {
	return f.storeEntry(idx, entry{state: freeState})
}

// forEachEntry calls fn for every used entry slot, stopping early
// when fn returns false. fn must not issue device writes.
func (f *FS) forEachEntry(fn func(idx uint16, e entry) bool) error {
	epb := f.entriesPerBlock()
	buf := make([]byte, f.cfg.BlockSize)
	for b := uint32(0); b < f.entryBlocks; b++ {
		if err := f.readBlock(entryStart+b, buf); err != nil {
			return err
		}
		for s := uint32(0); s < epb; s++ {
			e := decodeEntry(buf[s*entrySize : (s+1)*entrySize])
			if !e.used() {
				continue
			}
			if !fn(uint16(b*epb+s), e) {
				return nil
			}
		}
	}
	return nil
}

func (f *FS) findChild(parent uint16, name string) (uint16, entry, error) {
	var foundIdx uint16
	var foundEnt entry
	found := false
	err := f.forEachEntry(func(idx uint16, e entry) bool {
		if e.parent == parent && e.name == name {
			foundIdx, foundEnt, found = idx, e, true
			return false
		}
		return true
	})
	if err != nil {
		return 0, entry{}, err
	}
	if !found {
		return 0, entry{}, lfs.ErrNoEnt
	}
	return foundIdx, foundEnt, nil
}

// lookup resolves a path to its entry. The root resolves to the
// rootIndex sentinel and a synthetic entry.
func (f *FS) lookup(path string) (uint16, entry, error) {
	cur := uint16(rootIndex)
	e := rootEntry()
	for _, seg := range splitPath(path) {
		if !e.isDir() {
			return 0, entry{}, lfs.ErrNotDir
		}
		idx, child, err := f.findChild(cur, seg)
		if err != nil {
			return 0, entry{}, err
		}
		cur, e = idx, child
	}
	return cur, e, nil
}

// lookupParent resolves all but the final path segment to a
// directory and returns its index and the final segment name.
func (f *FS) lookupParent(path string) (uint16, string, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return 0, "", lfs.ErrInval
	}
	cur := uint16(rootIndex)
	e := rootEntry()
	for _, seg := range segs[:len(segs)-1] {
		if !e.isDir() {
			return 0, "", lfs.ErrNotDir
		}
		idx, child, err := f.findChild(cur, seg)
		if err != nil {
			return 0, "", err
		}
		cur, e = idx, child
	}
	if !e.isDir() {
		return 0, "", lfs.ErrNotDir
	}
	return cur, segs[len(segs)-1], nil
}

func (f *FS) allocEntry() (uint16, error) {
	epb := f.entriesPerBlock()
	buf := make([]byte, f.cfg.BlockSize)
	for b := uint32(0); b < f.entryBlocks; b++ {
		if err := f.readBlock(entryStart+b, buf); err != nil {
			return 0, err
		}
		for s := uint32(0); s < epb; s++ {
			if buf[s*entrySize] == freeState {
				return uint16(b*epb + s), nil
			}
		}
	}
	return 0, lfs.ErrNoSpace
}

// createEntry claims a free slot under parent. The caller syncs.
func (f *FS) createEntry(parent uint16, name string, state byte) (uint16, entry, error) {
	if name == "" || len(name) > nameMax {
		return 0, entry{}, lfs.ErrInval
	}
	if _, _, err := f.findChild(parent, name); err == nil {
		return 0, entry{}, lfs.ErrExist
	} else if err != lfs.ErrNoEnt {
		return 0, entry{}, err
	}
	idx, err := f.allocEntry()
	if err != nil {
		return 0, entry{}, err
	}
	e := entry{state: state, parent: parent, size: 0, first: nilBlock, name: name}
	if err := f.storeEntry(idx, e); err != nil {
		return 0, entry{}, err
	}
	return idx, e, nil
}

func (f *FS) dirEmpty(idx uint16) (bool, error) {
	empty := true
	err := f.forEachEntry(func(_ uint16, e entry) bool {
		if e.parent == idx {
			empty = false
			return false
		}
		return true
	})
	return empty, err
}

// Stat resolves path to a file or directory description.
func (f *FS) Stat(path string) (lfs.Info, error) {
	_, e, err := f.lookup(path)
	if err != nil {
		return lfs.Info{}, err
	}
	return lfs.Info{Name: e.name, Size: e.size, IsDir: e.isDir()}, nil
}

// Mkdir creates a single directory. The parent must already exist.
func (f *FS) Mkdir(path string) error {
	if len(splitPath(path)) == 0 {
		return lfs.ErrExist
	}
	parent, name, err := f.lookupParent(path)
	if err != nil {
		return err
	}
	if _, _, err := f.createEntry(parent, name, dirState); err != nil {
		return err
	}
	return f.sync()
}

// Remove deletes a file or an empty directory. Removing a non-empty
// directory fails with ErrNotEmpty; removing the root with ErrInval.
func (f *FS) Remove(path string) error {
	idx, e, err := f.lookup(path)
	if err != nil {
		return err
	}
	if idx == rootIndex {
		return lfs.ErrInval
	}
	if e.isDir() {
		empty, err := f.dirEmpty(idx)
		if err != nil {
			return err
		}
		if !empty {
			return lfs.ErrNotEmpty
		}
	} else if e.first != nilBlock {
		if err := f.freeChain(e.first); err != nil {
			return err
		}
	}
	if err := f.clearEntry(idx); err != nil {
		return err
	}
	return f.sync()
}

// ReadDir lists the immediate children of a directory.
func (f *FS) ReadDir(path string) ([]lfs.Info, error) {
	idx, e, err := f.lookup(path)
	if err != nil {
		return nil, err
	}
	if !e.isDir() {
		return nil, lfs.ErrNotDir
	}
	infos := []lfs.Info{}
	err = f.forEachEntry(func(_ uint16, e entry) bool {
		if e.parent == idx {
			infos = append(infos, lfs.Info{Name: e.name, Size: e.size, IsDir: e.isDir()})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}
