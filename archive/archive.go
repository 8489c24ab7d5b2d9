// Package archive opens zip archives for random or sequential access and
// wraps them in handles that track who is responsible for closing them.
package archive

import (
	"errors"
	"io"
	"iter"
	"sync"
	"sync/atomic"
)

var (
	// ErrContainerNotFound is returned when an archive cannot be opened.
	ErrContainerNotFound = errors.New("archive: container not found")

	// ErrEntryNotFound is returned when a named entry is absent from an archive.
	ErrEntryNotFound = errors.New("archive: entry not found")

	// ErrClosed is returned when using a closed handle.
	ErrClosed = errors.New("archive: handle closed")
)

// RandomAccess is an archive whose entries can be looked up by name.
type RandomAccess interface {
	// Lookup returns the entry with the given name.
	Lookup(name string) (*Entry, bool)
	// Entries yields all entries in central directory order.
	Entries() iter.Seq[*Entry]
	// Open returns the uncompressed content of e.
	Open(e *Entry) (io.ReadCloser, error)
	// Section returns the raw bytes of a stored entry in place.
	Section(e *Entry) (*io.SectionReader, bool)
}

// Sequential is an archive read front to back.
type Sequential interface {
	// Next advances to the next entry. It returns io.EOF at the end.
	Next() (*Entry, error)
	// Read reads the uncompressed content of the current entry.
	Read(p []byte) (int, error)
}

// Ownership records who closes a Handle.
type Ownership uint8

const (
	// Ephemeral handles belong to the connection that opened them.
	Ephemeral Ownership = iota
	// CacheManaged handles belong to a cache and outlive connections.
	CacheManaged
)

func (o Ownership) String() string {
	if o == CacheManaged {
		return "cache-managed"
	}
	return "ephemeral"
}

// Handle is an open archive.
type Handle struct {
	location string
	ra       RandomAccess
	seq      Sequential
	closer   io.Closer

	mu     sync.Mutex
	owner  Ownership
	evict  func(*Handle)
	closed atomic.Bool
}

// NewRandomAccessHandle wraps ra. closer, if non-nil, is closed with the handle.
func NewRandomAccessHandle(location string, ra RandomAccess, closer io.Closer) *Handle {
	return &Handle{location: location, ra: ra, closer: closer}
}

// NewSequentialHandle wraps seq. closer, if non-nil, is closed with the handle.
func NewSequentialHandle(location string, seq Sequential, closer io.Closer) *Handle {
	return &Handle{location: location, seq: seq, closer: closer}
}

// Location returns the location the handle was opened from.
func (h *Handle) Location() string {
	return h.location
}

// RandomAccess returns the random access view, if the handle has one.
func (h *Handle) RandomAccess() (RandomAccess, bool) {
	return h.ra, h.ra != nil
}

// Sequential returns the sequential view, if the handle has one.
func (h *Handle) Sequential() (Sequential, bool) {
	return h.seq, h.seq != nil
}

// Ownership reports whether the handle is ephemeral or cache-managed.
func (h *Handle) Ownership() Ownership {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.owner
}

// Manage marks h as cache-managed. Closing a managed handle calls evict
// before the archive itself is closed.
func (h *Handle) Manage(evict func(*Handle)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.owner = CacheManaged
	h.evict = evict
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}

// Close closes the archive. Later calls return nil.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.mu.Lock()
	evict := h.evict
	h.mu.Unlock()
	if evict != nil {
		evict(h)
	}
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

type closers []io.Closer

// Close closes every element in reverse order and joins the errors.
func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] == nil {
			continue
		}
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
