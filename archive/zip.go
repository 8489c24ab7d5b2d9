package archive

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/nest/internal/zipstream"
)

func init() {
	zip.RegisterDecompressor(zipstream.Zstd, func(r io.Reader) io.ReadCloser {
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return io.NopCloser(errReader{err})
		}
		return dec.IOReadCloser()
	})
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// zipArchive reads a zip archive through its central directory.
type zipArchive struct {
	src     io.ReaderAt
	entries []*Entry
	byName  map[string]*Entry
}

// OpenZip reads the central directory of the size-byte zip in src and
// returns a random access handle. closer, if non-nil, is closed with the
// handle; it is not closed when OpenZip fails.
func OpenZip(location string, src io.ReaderAt, size int64, closer io.Closer) (*Handle, error) {
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", location, err)
	}

	z := &zipArchive{
		src:     src,
		entries: make([]*Entry, 0, len(zr.File)),
		byName:  make(map[string]*Entry, len(zr.File)),
	}
	for _, f := range zr.File {
		e := &Entry{
			Name:           f.Name,
			Size:           int64(f.UncompressedSize64),
			CompressedSize: int64(f.CompressedSize64),
			Method:         f.Method,
			Modified:       f.Modified,
			file:           f,
		}
		z.entries = append(z.entries, e)
		if _, dup := z.byName[e.Name]; !dup {
			z.byName[e.Name] = e
		}
	}
	return NewRandomAccessHandle(location, z, closer), nil
}

func (z *zipArchive) Lookup(name string) (*Entry, bool) {
	e, ok := z.byName[name]
	return e, ok
}

func (z *zipArchive) Entries() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for _, e := range z.entries {
			if !yield(e) {
				return
			}
		}
	}
}

func (z *zipArchive) Open(e *Entry) (io.ReadCloser, error) {
	if e.file == nil {
		return nil, errors.New("archive: entry does not belong to this archive")
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", e.Name, err)
	}
	return rc, nil
}

func (z *zipArchive) Section(e *Entry) (*io.SectionReader, bool) {
	if e.file == nil || e.Method != zip.Store {
		return nil, false
	}
	off, err := e.file.DataOffset()
	if err != nil {
		return nil, false
	}
	return io.NewSectionReader(z.src, off, e.CompressedSize), true
}
