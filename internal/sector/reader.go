// Package sector implements the abstract block-device source (C2):
// random access by byte offset over a file, device, or a windowed
// sub-region of another SectorReader used for nested probing. Reads are
// not cached; every ReadBytes call reads from the underlying source.
package sector

import (
	"fmt"
	"io"
	"os"

	"github.com/blkcore/blkmount/internal/errkind"
)

// DefaultLogicalSectorSize is used when a caller doesn't know better.
const DefaultLogicalSectorSize = 512

// Reader is the abstract block-device source every prober reads through.
// Bytes returned from ReadBytes remain valid (the slice is not reused or
// mutated by the Reader) until the Reader itself is dropped — probers
// routinely keep slices aliased over the same region while walking a
// table, so implementations must not recycle buffers across calls.
type Reader interface {
	// ReadBytes returns exactly length bytes starting at byte offset off,
	// or an *errkind.Error of Kind IO.
	ReadBytes(off int64, length int) ([]byte, error)
	// TotalBytes returns the device's total size in bytes.
	TotalBytes() int64
	// LogicalSectorSize returns the logical sector size in bytes.
	LogicalSectorSize() uint32
}

// FileReader serves a Reader backed by an *os.File (or any ReaderAt),
// matching fs_raw.go's io.ReaderAt-based access pattern generalized behind
// an explicit interface.
type FileReader struct {
	r        io.ReaderAt
	total    int64
	sectSize uint32
	closer   io.Closer
}

// NewFileReader wraps an already-open file. sectSize defaults to
// DefaultLogicalSectorSize when zero.
func NewFileReader(r io.ReaderAt, total int64, sectSize uint32) *FileReader {
	if sectSize == 0 {
		sectSize = DefaultLogicalSectorSize
	}
	return &FileReader{r: r, total: total, sectSize: sectSize}
}

// OpenFile opens path and sizes it with os.Stat, returning a FileReader
// whose Close releases the underlying *os.File.
func OpenFile(path string, sectSize uint32) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errkind.New(errkind.IO, "sector.OpenFile", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errkind.New(errkind.IO, "sector.OpenFile", err)
	}
	fr := NewFileReader(f, fi.Size(), sectSize)
	fr.closer = f
	return fr, nil
}

func (f *FileReader) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

func (f *FileReader) ReadBytes(off int64, length int) ([]byte, error) {
	if off < 0 || length < 0 || off+int64(length) > f.total {
		return nil, errkind.New(errkind.IO, "sector.ReadBytes",
			fmt.Errorf("read [%d,%d) out of bounds for %d-byte device", off, off+int64(length), f.total))
	}
	buf := make([]byte, length)
	if _, err := f.r.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, errkind.New(errkind.IO, "sector.ReadBytes", err)
	}
	return buf, nil
}

func (f *FileReader) TotalBytes() int64        { return f.total }
func (f *FileReader) LogicalSectorSize() uint32 { return f.sectSize }

// Window is a sub-reader used for nested probes: it translates offsets
// into [base, base+size) of the parent Reader and enforces that a child
// read never crosses that window.
type Window struct {
	parent Reader
	base   int64
	size   int64
}

// NewWindow creates a child Reader windowed onto [base, base+size) of
// parent, in bytes. It returns an error if the window would extend past
// the parent's own extent.
func NewWindow(parent Reader, base, size int64) (*Window, error) {
	if base < 0 || size < 0 || base+size > parent.TotalBytes() {
		return nil, errkind.New(errkind.IO, "sector.NewWindow",
			fmt.Errorf("window [%d,%d) overflows parent of %d bytes", base, base+size, parent.TotalBytes()))
	}
	return &Window{parent: parent, base: base, size: size}, nil
}

func (w *Window) ReadBytes(off int64, length int) ([]byte, error) {
	if off < 0 || length < 0 || off+int64(length) > w.size {
		return nil, errkind.New(errkind.IO, "sector.Window.ReadBytes",
			fmt.Errorf("child read [%d,%d) overflows window of %d bytes", off, off+int64(length), w.size))
	}
	return w.parent.ReadBytes(w.base+off, length)
}

func (w *Window) TotalBytes() int64        { return w.size }
func (w *Window) LogicalSectorSize() uint32 { return w.parent.LogicalSectorSize() }

// Base returns the window's byte offset within its parent, used by
// probers that need to report PART_ENTRY_OFFSET relative to the whole
// device rather than the window.
func (w *Window) Base() int64 { return w.base }
