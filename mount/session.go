// Package mount provides the mount lifecycle and path-based
// operations over the flat filesystem engine: begin/end/format,
// recursive directory creation and removal, file handles, and the
// internal-storage configuration.
package mount

import (
	"io"
	"log"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/rstms/lfs"
	"github.com/rstms/lfs/flat"
)

// Session owns one mounted or unmounted filesystem instance bound to
// a block-device configuration. The physical region the configuration
// points at is exclusively owned by the session; access is
// single-threaded and synchronous.
type Session struct {
	cfg     *lfs.Config
	fs      *flat.FS
	mounted bool
}

// New returns an unmounted session. The configuration may be nil and
// supplied later through Begin.
func New(cfg *lfs.Config) *Session {
	return &Session{cfg: cfg}
}

// Mounted reports whether the session is currently mounted.
func (s *Session) Mounted() bool {
	return s.mounted
}

// Begin mounts the filesystem and returns true on success. Calling
// Begin on a mounted session is a no-op returning true. Returns
// false when no configuration is bound, or when the region does not
// mount (typically unformatted or corrupt; format and retry).
func (s *Session) Begin(cfg ...*lfs.Config) bool {
	if s.mounted {
		return true
	}
	if len(cfg) > 0 && cfg[0] != nil {
		s.cfg = cfg[0]
	}
	if s.cfg == nil {
		return false
	}
	fs, err := flat.Mount(s.cfg)
	if err != nil {
		logErr("mount", err)
		return false
	}
	s.fs = fs
	s.mounted = true
	return true
}

// End unmounts the filesystem. No-op if already unmounted.
func (s *Session) End() {
	if !s.mounted {
		return
	}
	s.mounted = false
	if err := s.fs.Unmount(); err != nil {
		logErr("unmount", err)
	}
	s.fs = nil
}

// Format rewrites the filesystem structures. A mounted session is
// unmounted, formatted, and remounted; an unmounted one is formatted
// only. The first failing step aborts and returns false; on success
// the session ends in the state it started in.
func (s *Session) Format() bool {
	if s.cfg == nil {
		return false
	}
	wasMounted := s.mounted
	if wasMounted {
		if err := s.fs.Unmount(); err != nil {
			logErr("unmount", err)
			return false
		}
		s.fs = nil
		s.mounted = false
	}
	if err := flat.Format(s.cfg); err != nil {
		logErr("format", err)
		return false
	}
	if wasMounted {
		fs, err := flat.Mount(s.cfg)
		if err != nil {
			logErr("mount", err)
			return false
		}
		s.fs = fs
		s.mounted = true
	}
	return true
}

// Exists returns true iff path refers to an existing file or
// directory.
func (s *Session) Exists(path string) bool {
	if !s.mounted {
		return false
	}
	_, err := s.fs.Stat(path)
	return err == nil
}

// Stat resolves path to its description.
func (s *Session) Stat(path string) (lfs.Info, error) {
	if !s.mounted {
		return lfs.Info{}, lfs.ErrBadFile
	}
	return s.fs.Stat(path)
}

// ReadDir lists the immediate children of a directory.
func (s *Session) ReadDir(path string) ([]lfs.Info, error) {
	if !s.mounted {
		return nil, lfs.ErrBadFile
	}
	return s.fs.ReadDir(path)
}

// Info returns the engine's volume description.
func (s *Session) Info() (map[string]any, error) {
	if !s.mounted {
		return nil, lfs.ErrBadFile
	}
	return s.fs.Info()
}

// Mkdir creates a directory, creating intermediate parents as
// needed. Segments that already exist are treated as success; any
// other failure aborts without attempting deeper segments.
func (s *Session) Mkdir(path string) bool {
	if !s.mounted {
		return false
	}
	start := 0
	if strings.HasPrefix(path, "/") {
		start = 1 // skip root '/'
	}
	for i := start; i < len(path); i++ {
		if path[i] != '/' {
			continue
		}
		// make intermediate parent
		if !s.mkdirOne(path[:i]) {
			return false
		}
	}
	return s.mkdirOne(path)
}

func (s *Session) mkdirOne(path string) bool {
	err := s.fs.Mkdir(path)
	if err != nil && err != lfs.ErrExist {
		logErr("mkdir "+path, err)
		return false
	}
	return true
}

// Remove deletes a file.
func (s *Session) Remove(path string) bool {
	if !s.mounted {
		return false
	}
	if err := s.fs.Remove(path); err != nil {
		logErr("remove "+path, err)
		return false
	}
	return true
}

// Rmdir deletes an empty directory. Same underlying primitive as
// Remove.
func (s *Session) Rmdir(path string) bool {
	return s.Remove(path)
}

// RmdirR deletes a directory and everything under it. The engine's
// remove only handles files and empty directories, so the traversal
// happens here, leaves first.
func (s *Session) RmdirR(path string) bool {
	if !s.mounted {
		return false
	}
	if err := s.removeAll(path); err != nil {
		logErr("rmdir_r "+path, err)
		return false
	}
	return true
}

func (s *Session) removeAll(path string) error {
	info, err := s.fs.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir {
		children, err := s.fs.ReadDir(path)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := s.removeAll(joinPath(path, child.Name)); err != nil {
				return err
			}
		}
	}
	return s.fs.Remove(path)
}

func joinPath(dir, name string) string {
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// Checksum returns the sha256 digest of a stored file's content, for
// verifying firmware and configuration assets on flash.
func (s *Session) Checksum(path string) (digest.Digest, error) {
	if !s.mounted {
		return "", Fatal(lfs.ErrBadFile)
	}
	f, err := s.fs.OpenFile(path, false)
	if err != nil {
		return "", Fatal(err)
	}
	defer f.Close()
	buf := make([]byte, f.Size())
	if _, err := io.ReadFull(f, buf); err != nil && err != io.EOF {
		return "", Fatal(err)
	}
	return digest.FromBytes(buf), nil
}

// logErr reports the engine status code behind a false return.
func logErr(op string, err error) {
	log.Printf("lfs: %s: %v\n", op, err)
}
