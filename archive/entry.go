package archive

import (
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// Entry describes one member of an archive.
type Entry struct {
	// Name is the slash-separated path inside the archive.
	Name string
	// Size is the uncompressed size, or -1 when not yet known.
	Size int64
	// CompressedSize is the stored size, or -1 when not yet known.
	CompressedSize int64
	// Method is the zip compression method.
	Method   uint16
	Modified time.Time

	file *zip.File
}

// IsDir reports whether the entry names a directory.
func (e *Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Stored reports whether the entry content is kept uncompressed.
func (e *Entry) Stored() bool {
	return e.Method == zip.Store
}

// Compressed reports whether the entry content is compressed in the archive.
func (e *Entry) Compressed() bool {
	return !e.Stored()
}
