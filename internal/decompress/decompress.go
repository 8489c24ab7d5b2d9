// Package decompress unwraps gzip and zstd content selected by file suffix,
// reusing decoders across streams.
package decompress

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrDecompression is returned when compressed content cannot be decoded.
var ErrDecompression = errors.New("decompress: decompression failed")

// Format is a recognized compression format.
type Format uint8

const (
	// None means the name carries no recognized suffix.
	None Format = iota
	Gzip
	Zstd
)

// Detect returns the format implied by the suffix of name, ignoring case.
func Detect(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return Gzip
	case strings.HasSuffix(lower, ".zst"):
		return Zstd
	}
	return None
}

// Pool manages reusable decoders. The zero value is ready to use.
type Pool struct {
	zstd             sync.Pool
	gzip             sync.Pool
	maxDecoderMemory uint64
}

// NewPool returns a Pool. If maxMemory is 0, zstd decoders have no memory limit.
func NewPool(maxMemory uint64) *Pool {
	return &Pool{maxDecoderMemory: maxMemory}
}

// Wrap returns a reader yielding the decompressed content of r when name
// has a recognized suffix. ok is false, and r is returned unchanged, when it
// does not. Closing the returned reader recycles the decoder but never
// closes r.
func (p *Pool) Wrap(name string, r io.Reader) (rc io.ReadCloser, ok bool, err error) {
	switch Detect(name) {
	case Gzip:
		rc, err = p.gzipReader(r)
	case Zstd:
		rc, err = p.zstdReader(r)
	default:
		return io.NopCloser(r), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrDecompression, name, err)
	}
	return rc, true, nil
}

func (p *Pool) gzipReader(r io.Reader) (io.ReadCloser, error) {
	if zr, ok := p.gzip.Get().(*gzip.Reader); ok {
		if err := zr.Reset(r); err != nil {
			return nil, err
		}
		return &pooled{Reader: zr, release: func() {
			_ = zr.Close() //nolint:errcheck // gzip Close only reports prior read errors
			p.gzip.Put(zr)
		}}, nil
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &pooled{Reader: zr, release: func() {
		_ = zr.Close() //nolint:errcheck // gzip Close only reports prior read errors
		p.gzip.Put(zr)
	}}, nil
}

func (p *Pool) zstdReader(r io.Reader) (io.ReadCloser, error) {
	if dec, ok := p.zstd.Get().(*zstd.Decoder); ok {
		if err := dec.Reset(r); err == nil {
			return &pooled{Reader: dec, release: p.recycleZstd(dec)}, nil
		}
		dec.Close()
	}
	dec, err := p.newZstd(r)
	if err != nil {
		return nil, err
	}
	return &pooled{Reader: dec, release: p.recycleZstd(dec)}, nil
}

func (p *Pool) recycleZstd(dec *zstd.Decoder) func() {
	return func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.zstd.Put(dec)
	}
}

func (p *Pool) newZstd(r io.Reader) (*zstd.Decoder, error) {
	if p.maxDecoderMemory == 0 {
		return zstd.NewReader(r)
	}
	return zstd.NewReader(r, zstd.WithDecoderMaxMemory(p.maxDecoderMemory))
}

// pooled returns its decoder to the pool on the first Close.
type pooled struct {
	io.Reader
	release func()
	once    sync.Once
}

func (p *pooled) Read(b []byte) (int, error) {
	n, err := p.Reader.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: %w", ErrDecompression, err)
	}
	return n, err
}

func (p *pooled) Close() error {
	p.once.Do(p.release)
	return nil
}
