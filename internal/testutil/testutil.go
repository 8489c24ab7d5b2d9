// Package testutil builds zip fixtures and byte sources for tests.
package testutil

import (
	"bytes"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

// File is one entry of a zip fixture.
type File struct {
	Name string
	Data []byte

	// Stored writes the entry uncompressed with its sizes in the local
	// header, so it can be read in place or streamed.
	Stored bool
}

// Deflated returns a compressed fixture entry.
func Deflated(name string, data []byte) File {
	return File{Name: name, Data: data}
}

// Stored returns an uncompressed fixture entry.
func Stored(name string, data []byte) File {
	return File{Name: name, Data: data, Stored: true}
}

// Dir returns a directory fixture entry.
func Dir(name string) File {
	return File{Name: name, Stored: true}
}

var fixtureTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Zip builds an in-memory zip archive holding files in order.
func Zip(tb testing.TB, files ...File) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		var (
			w   io.Writer
			err error
		)
		if f.Stored {
			fh := &zip.FileHeader{
				Name:               f.Name,
				Method:             zip.Store,
				CRC32:              crc32.ChecksumIEEE(f.Data),
				CompressedSize64:   uint64(len(f.Data)),
				UncompressedSize64: uint64(len(f.Data)),
				Modified:           fixtureTime,
			}
			w, err = zw.CreateRaw(fh)
		} else {
			w, err = zw.CreateHeader(&zip.FileHeader{
				Name:     f.Name,
				Method:   zip.Deflate,
				Modified: fixtureTime,
			})
		}
		if err != nil {
			tb.Fatalf("create zip entry %q: %v", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			tb.Fatalf("write zip entry %q: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data under dir and returns the absolute path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		tb.Fatalf("abs %s: %v", path, err)
	}
	return abs
}

// MockByteSource implements an in-memory io.ReaderAt that counts reads.
type MockByteSource struct {
	data  []byte
	reads atomic.Int64
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{data: data}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.reads.Add(1)
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if off+int64(n) >= int64(len(m.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// Reads returns the number of ReadAt calls so far.
func (m *MockByteSource) Reads() int64 {
	return m.reads.Load()
}

// CloseCounter is an io.Closer that records how often it was closed.
type CloseCounter struct {
	n atomic.Int32
}

// Close implements io.Closer.
func (c *CloseCounter) Close() error {
	c.n.Add(1)
	return nil
}

// Count returns the number of Close calls.
func (c *CloseCounter) Count() int {
	return int(c.n.Load())
}
