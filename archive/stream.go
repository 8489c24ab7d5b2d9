package archive

import (
	"io"

	"github.com/meigma/nest/internal/zipstream"
)

// zipStream reads a zip archive front to back through local headers.
type zipStream struct {
	zr *zipstream.Reader
}

// OpenZipStream returns a sequential handle over the zip archive read from
// r. closer, if non-nil, is closed with the handle after the stream decoder.
func OpenZipStream(location string, r io.Reader, closer io.Closer) *Handle {
	zr := zipstream.NewReader(r)
	return NewSequentialHandle(location, &zipStream{zr: zr}, closers{closer, zr})
}

func (s *zipStream) Next() (*Entry, error) {
	hdr, err := s.zr.Next()
	if err != nil {
		return nil, err
	}
	return &Entry{
		Name:           hdr.Name,
		Size:           hdr.UncompressedSize,
		CompressedSize: hdr.CompressedSize,
		Method:         hdr.Method,
		Modified:       hdr.Modified,
	}, nil
}

func (s *zipStream) Read(p []byte) (int, error) {
	return s.zr.Read(p)
}
