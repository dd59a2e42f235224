package mount

import (
	"github.com/rstms/lfs"
	"github.com/rstms/lfs/flat"
)

// Mode selects how a file is opened.
type Mode uint8

const (
	// ModeRead opens an existing file for reading.
	ModeRead Mode = iota
	// ModeWrite opens a file for appending, creating it if needed.
	ModeWrite
)

// File is an open file handle bound to a session. The session is the
// sole factory for handles; a handle is only valid while its owning
// session stays mounted. Open never fails outright: an unusable
// handle reports false from OK and fails every operation with the
// engine code that invalidated it.
type File struct {
	session *Session
	path    string
	mode    Mode
	f       *flat.File
	err     error
}

// Open opens a file for reading or writing and returns its handle.
func (s *Session) Open(path string, mode Mode) *File {
	h := &File{session: s, path: path, mode: mode}
	if !s.mounted {
		h.err = lfs.ErrBadFile
		return h
	}
	f, err := s.fs.OpenFile(path, mode == ModeWrite)
	if err != nil {
		h.err = err
		return h
	}
	h.f = f
	return h
}

// OK reports whether the handle is usable.
func (h *File) OK() bool {
	return h.err == nil
}

func (h *File) Path() string {
	return h.path
}

func (h *File) Size() uint32 {
	if h.err != nil {
		return 0
	}
	return h.f.Size()
}

func (h *File) Read(p []byte) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	return h.f.Read(p)
}

func (h *File) Write(p []byte) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	return h.f.Write(p)
}

func (h *File) Seek(offset int64, whence int) (int64, error) {
	if h.err != nil {
		return 0, h.err
	}
	return h.f.Seek(offset, whence)
}

// Sync commits buffered writes through the engine's durability
// barrier.
func (h *File) Sync() error {
	if h.err != nil {
		return h.err
	}
	return h.f.Sync()
}

// Close commits buffered writes and invalidates the handle.
func (h *File) Close() error {
	if h.err != nil {
		return h.err
	}
	err := h.f.Close()
	h.f = nil
	h.err = lfs.ErrBadFile
	return err
}
