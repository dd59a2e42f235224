package flash

import (
	"os"

	"github.com/rstms/lfs"
)

// FileDevice backs a flash region [base, base+size) with a file on
// the host filesystem, for building and inspecting flash images.
// Flush is the durability barrier and maps to fsync.
type FileDevice struct {
	base uint32
	size uint32
	file *os.File
}

// ensure FileDevice implements lfs.FlashDevice
var _ lfs.FlashDevice = (*FileDevice)(nil)

// NewFileDevice opens or creates the image file, extending it with
// erased bytes to the full region size if needed.
func NewFileDevice(filename string, base, size uint32) (*FileDevice, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, Fatal(err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, Fatal(err)
	}
	if info.Size() < int64(size) {
		blank := make([]byte, int64(size)-info.Size())
		for i := range blank {
			blank[i] = lfs.Erased
		}
		if _, err := file.WriteAt(blank, info.Size()); err != nil {
			file.Close()
			return nil, Fatal(err)
		}
	}
	return &FileDevice{base: base, size: size, file: file}, nil
}

func (d *FileDevice) Base() uint32 {
	return d.base
}

func (d *FileDevice) Size() uint32 {
	return d.size
}

func (d *FileDevice) offset(addr, size uint32) (int64, error) {
	if addr < d.base || addr-d.base+size > d.size {
		return 0, Fatalf("flash address out of region: 0x%x+%d", addr, size)
	}
	return int64(addr - d.base), nil
}

func (d *FileDevice) Read(buf []byte, addr uint32) error {
	off, err := d.offset(addr, uint32(len(buf)))
	if err != nil {
		return err
	}
	if _, err := d.file.ReadAt(buf, off); err != nil {
		return Fatal(err)
	}
	return nil
}

func (d *FileDevice) Write(addr uint32, buf []byte) error {
	off, err := d.offset(addr, uint32(len(buf)))
	if err != nil {
		return err
	}
	if _, err := d.file.WriteAt(buf, off); err != nil {
		return Fatal(err)
	}
	return nil
}

func (d *FileDevice) WriteByte(addr uint32, value byte) error {
	return d.Write(addr, []byte{value})
}

func (d *FileDevice) Flush() error {
	err := d.file.Sync()
	if err != nil {
		return Fatal(err)
	}
	return nil
}

func (d *FileDevice) Close() error {
	err := d.file.Close()
	if err != nil {
		return Fatal(err)
	}
	return nil
}
