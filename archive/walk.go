package archive

import (
	"errors"
	"fmt"
	"io"
)

// Walk calls fn for every entry of h in archive order until fn returns
// false. For sequential handles the entry content may be read from the
// Sequential view inside fn; Walk consumes the handle.
func Walk(h *Handle, fn func(*Entry) bool) error {
	if h.Closed() {
		return ErrClosed
	}
	if ra, ok := h.RandomAccess(); ok {
		for e := range ra.Entries() {
			if !fn(e) {
				return nil
			}
		}
		return nil
	}
	seq, ok := h.Sequential()
	if !ok {
		return fmt.Errorf("archive: %s has no readable view", h.Location())
	}
	for {
		e, err := seq.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: scan %s: %w", h.Location(), err)
		}
		if !fn(e) {
			return nil
		}
	}
}

// Names returns the names of all entries of h in archive order.
func Names(h *Handle) ([]string, error) {
	var names []string
	err := Walk(h, func(e *Entry) bool {
		names = append(names, e.Name)
		return true
	})
	return names, err
}

// Find locates an entry of h. With first set the first entry is taken
// regardless of name. For sequential handles the returned reader streams
// the entry content; for random access handles it is opened on demand and
// must be closed by the caller.
func Find(h *Handle, name string, first bool) (*Entry, io.ReadCloser, error) {
	if ra, ok := h.RandomAccess(); ok {
		var found *Entry
		if first {
			for e := range ra.Entries() {
				found = e
				break
			}
		} else {
			found, _ = ra.Lookup(name)
		}
		if found == nil {
			return nil, nil, entryNotFound(h, name, first)
		}
		rc, err := ra.Open(found)
		if err != nil {
			return nil, nil, err
		}
		return found, rc, nil
	}

	var found *Entry
	err := Walk(h, func(e *Entry) bool {
		if first || e.Name == name {
			found = e
			return false
		}
		return true
	})
	if err != nil {
		return nil, nil, err
	}
	if found == nil {
		return nil, nil, entryNotFound(h, name, first)
	}
	seq, _ := h.Sequential()
	return found, io.NopCloser(seq), nil
}

func entryNotFound(h *Handle, name string, first bool) error {
	if first {
		return fmt.Errorf("%w: %s is empty", ErrEntryNotFound, h.Location())
	}
	return fmt.Errorf("%w: %s in %s", ErrEntryNotFound, name, h.Location())
}
