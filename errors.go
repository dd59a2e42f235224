package lfs

import "strconv"

// Errno is the closed set of status codes reported by the filesystem
// engine at the block-device boundary and at every session-level
// call. Failures are negative; code values follow littlefs.
type Errno int

const (
	ErrIO       Errno = -5  // error during device operation
	ErrCorrupt  Errno = -84 // corrupted metadata
	ErrNoEnt    Errno = -2  // no directory entry
	ErrExist    Errno = -17 // entry already exists
	ErrNotDir   Errno = -20 // entry is not a directory
	ErrIsDir    Errno = -21 // entry is a directory
	ErrNotEmpty Errno = -39 // directory is not empty
	ErrBadFile  Errno = -9  // bad file number
	ErrInval    Errno = -22 // invalid parameter
	ErrNoSpace  Errno = -28 // no space left on device
	ErrNoMem    Errno = -12 // no more memory available
)

func (e Errno) Error() string {
	switch e {
	case ErrIO:
		return "io error"
	case ErrCorrupt:
		return "corrupted"
	case ErrNoEnt:
		return "no directory entry"
	case ErrExist:
		return "entry already exists"
	case ErrNotDir:
		return "entry is not a directory"
	case ErrIsDir:
		return "entry is a directory"
	case ErrNotEmpty:
		return "directory is not empty"
	case ErrBadFile:
		return "bad file number"
	case ErrInval:
		return "invalid parameter"
	case ErrNoSpace:
		return "no space left on device"
	case ErrNoMem:
		return "no more memory available"
	}
	return "error " + strconv.Itoa(int(e))
}
