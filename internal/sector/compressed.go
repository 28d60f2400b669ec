package sector

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/blkcore/blkmount/internal/errkind"
)

// OpenImage opens path as a sector Reader, transparently decompressing
// known compressed disk-image formats (.xz, .zst) into tmpDir first: the
// probers never see compression, matching the plain file/device reader
// they're written against. Uncompressed images (and anything with an
// unrecognized extension) are opened directly with OpenFile.
func OpenImage(path, tmpDir string, sectSize uint32) (*FileReader, func() error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz":
		return decompressTo(path, tmpDir, sectSize, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case ".zst":
		return decompressTo(path, tmpDir, sectSize, func(r io.Reader) (io.Reader, error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		})
	default:
		fr, err := OpenFile(path, sectSize)
		cleanup := func() error { return fr.Close() }
		return fr, cleanup, err
	}
}

func decompressTo(path, tmpDir string, sectSize uint32, newDecoder func(io.Reader) (io.Reader, error)) (*FileReader, func() error, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, nil, errkind.New(errkind.IO, "sector.OpenImage", err)
	}
	defer in.Close()

	dec, err := newDecoder(in)
	if err != nil {
		return nil, nil, errkind.New(errkind.IO, "sector.OpenImage", err)
	}
	if rc, ok := dec.(io.Closer); ok {
		defer rc.Close()
	}

	out, err := os.CreateTemp(tmpDir, "blkmount-image-*.raw")
	if err != nil {
		return nil, nil, errkind.New(errkind.IO, "sector.OpenImage", err)
	}

	if _, err := io.Copy(out, dec); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, nil, errkind.New(errkind.IO, "sector.OpenImage", err)
	}

	fi, err := out.Stat()
	if err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, nil, errkind.New(errkind.IO, "sector.OpenImage", err)
	}

	fr := NewFileReader(out, fi.Size(), sectSize)
	fr.closer = out
	name := out.Name()
	cleanup := func() error {
		fr.Close()
		return os.Remove(name)
	}
	return fr, cleanup, nil
}
