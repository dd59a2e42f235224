package flash

import (
	"github.com/rstms/lfs"
)

// MemDevice emulates a flash region [base, base+size) in RAM. A new
// device reads fully erased. Out-of-range access is an error.
type MemDevice struct {
	base uint32
	mem  []byte
}

// ensure MemDevice implements lfs.FlashDevice
var _ lfs.FlashDevice = (*MemDevice)(nil)

func NewMemDevice(base, size uint32) *MemDevice {
	m := &MemDevice{base: base, mem: make([]byte, size)}
	for i := range m.mem {
		m.mem[i] = lfs.Erased
	}
	return m
}

// Base returns the first physical address of the region.
func (m *MemDevice) Base() uint32 {
	return m.base
}

// Size returns the region size in bytes.
func (m *MemDevice) Size() uint32 {
	return uint32(len(m.mem))
}

func (m *MemDevice) slice(addr, size uint32) ([]byte, error) {
	if addr < m.base {
		return nil, Fatalf("flash address below region: 0x%x", addr)
	}
	off := addr - m.base
	if off+size > uint32(len(m.mem)) || off+size < off {
		return nil, Fatalf("flash address beyond region: 0x%x+%d", addr, size)
	}
	return m.mem[off : off+size], nil
}

func (m *MemDevice) Read(buf []byte, addr uint32) error {
	src, err := m.slice(addr, uint32(len(buf)))
	if err != nil {
		return err
	}
	copy(buf, src)
	return nil
}

func (m *MemDevice) Write(addr uint32, buf []byte) error {
	dst, err := m.slice(addr, uint32(len(buf)))
	if err != nil {
		return err
	}
	copy(dst, buf)
	return nil
}

func (m *MemDevice) WriteByte(addr uint32, value byte) error {
	dst, err := m.slice(addr, 1)
	if err != nil {
		return err
	}
	dst[0] = value
	return nil
}

func (m *MemDevice) Flush() error {
	return nil
}
