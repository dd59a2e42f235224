package lfs

// Erased is the value every byte of a block reads after an erase,
// before any program operation.
const Erased byte = 0xFF

// A FlashDevice provides byte-addressed access to a physical flash
// part. Addresses are absolute physical byte addresses.
type FlashDevice interface {
	// Read copies len(buf) bytes starting at addr into buf.
	Read(buf []byte, addr uint32) error
	// Write programs len(buf) bytes starting at addr. The target
	// range must be in the erased state.
	Write(addr uint32, buf []byte) error
	// WriteByte programs a single byte at addr.
	WriteByte(addr uint32, value byte) error
	// Flush blocks until all programmed data is durable.
	Flush() error
}

// A BlockDevice provides the read/program/erase/sync contract the
// filesystem engine issues its block operations against. The engine
// never issues these concurrently and guarantees block indices are
// within the configured block count.
type BlockDevice interface {
	// ReadBlock copies len(buf) bytes from the block starting at
	// byte offset off.
	ReadBlock(block, off uint32, buf []byte) error
	// ProgramBlock writes len(buf) bytes to the block starting at
	// byte offset off. The target region must have been erased
	// since its last program; violating that yields undefined data,
	// not a detected error.
	ProgramBlock(block, off uint32, buf []byte) error
	// EraseBlock sets every byte of the block to Erased.
	EraseBlock(block uint32) error
	// Sync is the durability barrier: when it returns, no
	// previously programmed data remains buffered.
	Sync() error
}

// Info describes a filesystem entry, as returned by Stat and ReadDir.
type Info struct {
	Name  string
	Size  uint32
	IsDir bool
}

// Config binds a BlockDevice and its geometry to a filesystem
// session. Exactly one Config is bound to a session at a time, and
// the physical region it describes is exclusively owned by that
// session while mounted.
type Config struct {
	Device BlockDevice

	// Geometry. BlockSize must equal the erase granularity of the
	// underlying flash, and the block span must fit the physical
	// region reserved for the session.
	ReadSize      uint32
	ProgSize      uint32
	BlockSize     uint32
	BlockCount    uint32
	LookaheadSize uint32

	// Optional preallocated scratch space, sized BlockSize. When
	// nil the engine allocates its own at mount time.
	ReadBuffer      []byte
	ProgBuffer      []byte
	LookaheadBuffer []byte
	FileBuffer      []byte
}

// Check validates the internal consistency of the geometry.
func (c *Config) Check() error {
	if c == nil || c.Device == nil {
		return ErrInval
	}
	if c.ReadSize == 0 || c.ProgSize == 0 || c.BlockSize == 0 || c.BlockCount == 0 {
		return ErrInval
	}
	if c.BlockSize%c.ReadSize != 0 || c.BlockSize%c.ProgSize != 0 {
		return ErrInval
	}
	return nil
}
