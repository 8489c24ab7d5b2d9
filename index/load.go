package index

import (
	"github.com/meigma/nest/archive"
)

// Load reads the index stored as META-INF/INDEX.LIST in h. It returns an
// error matching archive.ErrEntryNotFound when h carries no index.
func Load(h *archive.Handle) (*Index, error) {
	_, rc, err := archive.Find(h, IndexName, false)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Read(rc)
}

// ListHandle returns a Lister that names entries through open. The handle
// returned by open is closed after listing.
func ListHandle(open func(archive string) (*archive.Handle, error)) Lister {
	return func(name string) ([]string, error) {
		h, err := open(name)
		if err != nil {
			return nil, err
		}
		defer h.Close()
		return archive.Names(h)
	}
}
