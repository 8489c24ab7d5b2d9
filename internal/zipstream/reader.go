// Package zipstream reads zip archives sequentially from a stream.
//
// The central directory is never consulted: entries are discovered by their
// local file headers, in stored order, which is the only option when the
// archive is itself the decompressed content of another archive entry.
package zipstream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// Compression methods understood by Reader.
const (
	Store   uint16 = 0
	Deflate uint16 = 8
	Zstd    uint16 = 93
)

const (
	localHeaderSig    = 0x04034b50
	centralHeaderSig  = 0x02014b50
	endOfCentralSig   = 0x06054b50
	dataDescriptorSig = 0x08074b50

	localHeaderLen = 26 // after the signature
	zip64ExtraID   = 0x0001
	flagDescriptor = 0x8
	uint32Max      = 0xffffffff
)

var (
	// ErrFormat is returned for data that is not a zip local file stream.
	ErrFormat = errors.New("zipstream: not a valid zip stream")

	// ErrAlgorithm is returned when reading an entry with an unsupported
	// compression method.
	ErrAlgorithm = errors.New("zipstream: unsupported compression method")

	// ErrChecksum is returned when entry content fails its CRC-32 check.
	ErrChecksum = errors.New("zipstream: checksum error")
)

// Header describes one entry as recorded in its local file header.
// Sizes are -1 when deferred to a data descriptor.
type Header struct {
	Name             string
	Method           uint16
	Flags            uint16
	CRC32            uint32
	CompressedSize   int64
	UncompressedSize int64
	Modified         time.Time
}

// Reader iterates over the entries of a zip stream.
type Reader struct {
	br    *bufio.Reader
	cur   *entry
	err   error
	zstd  *zstd.Decoder
	count int
}

// NewReader returns a Reader consuming r.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{br: br}
}

// Next advances to the next entry, discarding what is left of the current
// one. It returns io.EOF once the central directory or the end of the stream
// is reached.
func (r *Reader) Next() (*Header, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.cur != nil {
		if _, err := io.Copy(io.Discard, r.cur); err != nil {
			return nil, r.fail(err)
		}
		r.cur = nil
	}

	var sig [4]byte
	if _, err := io.ReadFull(r.br, sig[:]); err != nil {
		if errors.Is(err, io.EOF) && r.count > 0 {
			return nil, r.fail(io.EOF)
		}
		return nil, r.fail(fmt.Errorf("%w: %v", ErrFormat, err))
	}
	switch binary.LittleEndian.Uint32(sig[:]) {
	case localHeaderSig:
	case centralHeaderSig, endOfCentralSig:
		return nil, r.fail(io.EOF)
	default:
		return nil, r.fail(fmt.Errorf("%w: bad signature %#x", ErrFormat, sig))
	}

	hdr, zip64, err := r.readLocalHeader()
	if err != nil {
		return nil, r.fail(err)
	}
	r.count++

	e := &entry{r: r, hdr: hdr, zip64: zip64, crc: crc32.NewIEEE()}
	if err := e.open(); err != nil {
		return nil, r.fail(err)
	}
	r.cur = e
	return hdr, nil
}

// Read reads the content of the current entry.
func (r *Reader) Read(p []byte) (int, error) {
	if r.cur == nil {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	return r.cur.Read(p)
}

// Close releases decoder resources. It does not close the underlying stream.
func (r *Reader) Close() error {
	if r.zstd != nil {
		r.zstd.Close()
		r.zstd = nil
	}
	if r.err == nil {
		r.err = errors.New("zipstream: reader closed")
	}
	return nil
}

func (r *Reader) fail(err error) error {
	r.err = err
	return err
}

func (r *Reader) readLocalHeader() (*Header, bool, error) {
	var buf [localHeaderLen]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		return nil, false, fmt.Errorf("%w: truncated local header: %v", ErrFormat, err)
	}
	le := binary.LittleEndian
	flags := le.Uint16(buf[2:4])
	hdr := &Header{
		Flags:            flags,
		Method:           le.Uint16(buf[4:6]),
		Modified:         msDosTime(le.Uint16(buf[8:10]), le.Uint16(buf[6:8])),
		CRC32:            le.Uint32(buf[10:14]),
		CompressedSize:   int64(le.Uint32(buf[14:18])),
		UncompressedSize: int64(le.Uint32(buf[18:22])),
	}
	nameLen := int(le.Uint16(buf[22:24]))
	extraLen := int(le.Uint16(buf[24:26]))

	tail := make([]byte, nameLen+extraLen)
	if _, err := io.ReadFull(r.br, tail); err != nil {
		return nil, false, fmt.Errorf("%w: truncated name: %v", ErrFormat, err)
	}
	hdr.Name = string(tail[:nameLen])

	zip64 := false
	extra := tail[nameLen:]
	for len(extra) >= 4 {
		tag, size := le.Uint16(extra[0:2]), int(le.Uint16(extra[2:4]))
		extra = extra[4:]
		if size > len(extra) {
			break
		}
		if tag == zip64ExtraID {
			zip64 = true
			field := extra[:size]
			if hdr.UncompressedSize == uint32Max && len(field) >= 8 {
				hdr.UncompressedSize = int64(le.Uint64(field[:8]))
				field = field[8:]
			}
			if hdr.CompressedSize == uint32Max && len(field) >= 8 {
				hdr.CompressedSize = int64(le.Uint64(field[:8]))
			}
		}
		extra = extra[size:]
	}

	if flags&flagDescriptor != 0 {
		hdr.CompressedSize, hdr.UncompressedSize = -1, -1
	}
	return hdr, zip64, nil
}

// entry streams the content of one zip entry and verifies it at EOF.
type entry struct {
	r      *Reader
	hdr    *Header
	zip64  bool
	raw    io.Reader
	data   io.Reader
	closer io.Closer
	crc    hash.Hash32
	done   bool
	err    error
}

func (e *entry) open() error {
	deferred := e.hdr.CompressedSize < 0
	if deferred {
		e.raw = e.r.br
	} else {
		e.raw = io.LimitReader(e.r.br, e.hdr.CompressedSize)
	}

	switch e.hdr.Method {
	case Store:
		if deferred {
			return fmt.Errorf("%w: stored entry %q has no size in its local header", ErrAlgorithm, e.hdr.Name)
		}
		e.data = e.raw
	case Deflate:
		fr := flate.NewReader(e.raw)
		e.data, e.closer = fr, fr
	case Zstd:
		if deferred {
			return fmt.Errorf("%w: zstd entry %q has no size in its local header", ErrAlgorithm, e.hdr.Name)
		}
		dec, err := e.r.zstdDecoder(e.raw)
		if err != nil {
			return err
		}
		e.data = dec
	default:
		if deferred {
			return fmt.Errorf("%w: method %d for %q", ErrAlgorithm, e.hdr.Method, e.hdr.Name)
		}
		e.err = fmt.Errorf("%w: method %d for %q", ErrAlgorithm, e.hdr.Method, e.hdr.Name)
	}
	return nil
}

func (r *Reader) zstdDecoder(src io.Reader) (*zstd.Decoder, error) {
	if r.zstd == nil {
		dec, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		r.zstd = dec
		return dec, nil
	}
	if err := r.zstd.Reset(src); err != nil {
		return nil, err
	}
	return r.zstd, nil
}

func (e *entry) Read(p []byte) (int, error) {
	if e.done {
		return 0, io.EOF
	}
	if e.err != nil {
		// Unsupported method with a known size: skip the raw bytes so the
		// stream stays aligned, then report the error.
		if _, err := io.Copy(io.Discard, e.raw); err != nil {
			return 0, err
		}
		e.done = true
		return 0, e.err
	}
	n, err := e.data.Read(p)
	e.crc.Write(p[:n])
	if err == io.EOF {
		if ferr := e.finish(); ferr != nil {
			return n, ferr
		}
		return n, io.EOF
	}
	return n, err
}

func (e *entry) finish() error {
	e.done = true
	if e.closer != nil {
		if err := e.closer.Close(); err != nil {
			return err
		}
	}
	want := e.hdr.CRC32
	if e.hdr.CompressedSize < 0 {
		crc, err := e.readDescriptor()
		if err != nil {
			return err
		}
		want = crc
	} else if _, err := io.Copy(io.Discard, e.raw); err != nil {
		return err
	}
	if e.crc.Sum32() != want {
		return fmt.Errorf("%w: %s", ErrChecksum, e.hdr.Name)
	}
	return nil
}

func (e *entry) readDescriptor() (uint32, error) {
	le := binary.LittleEndian
	var word [4]byte
	if _, err := io.ReadFull(e.r.br, word[:]); err != nil {
		return 0, fmt.Errorf("%w: truncated data descriptor: %v", ErrFormat, err)
	}
	if le.Uint32(word[:]) == dataDescriptorSig {
		if _, err := io.ReadFull(e.r.br, word[:]); err != nil {
			return 0, fmt.Errorf("%w: truncated data descriptor: %v", ErrFormat, err)
		}
	}
	crc := le.Uint32(word[:])

	sizes := make([]byte, 8)
	if e.zip64 {
		sizes = make([]byte, 16)
	}
	if _, err := io.ReadFull(e.r.br, sizes); err != nil {
		return 0, fmt.Errorf("%w: truncated data descriptor: %v", ErrFormat, err)
	}
	if e.zip64 {
		e.hdr.CompressedSize = int64(le.Uint64(sizes[:8]))
		e.hdr.UncompressedSize = int64(le.Uint64(sizes[8:]))
	} else {
		e.hdr.CompressedSize = int64(le.Uint32(sizes[:4]))
		e.hdr.UncompressedSize = int64(le.Uint32(sizes[4:]))
	}
	e.hdr.CRC32 = crc
	return crc, nil
}

// msDosTime converts an MS-DOS date and time to a time.Time in UTC.
func msDosTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0,
		time.UTC,
	)
}
