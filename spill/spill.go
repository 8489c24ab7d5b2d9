// Package spill materializes streamed archives on local disk so they can be
// read with random access.
package spill

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
)

// ErrTooLarge is returned when content does not fit in the store.
var ErrTooLarge = errors.New("spill: content exceeds store capacity")

// Store holds spilled archives under a directory, one file per location.
// The store is safe for concurrent use.
type Store struct {
	dir            string       // root directory for spilled files
	shardPrefixLen int          // number of hex chars for subdirectory sharding
	dirPerm        os.FileMode  // permissions for created directories
	maxBytes       int64        // maximum store size (0 = unlimited)
	bytes          atomic.Int64 // current total size of spilled files
	pruneMu        sync.Mutex   // serializes prune operations
}

// Option configures a Store.
type Option func(*Store)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(s *Store) {
		s.shardPrefixLen = n
	}
}

// WithDirPerm sets the permissions used for store directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(s *Store) {
		s.dirPerm = mode
	}
}

// WithMaxBytes sets the maximum store size in bytes. Use 0 to disable the limit.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		s.maxBytes = n
	}
}

// New creates a store rooted at dir. Files left by an earlier process are
// counted against the size limit until pruned.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("spill: dir is empty")
	}
	s := &Store{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shardPrefixLen < 0 {
		return nil, errors.New("spill: shard prefix length must be >= 0")
	}
	if s.maxBytes < 0 {
		return nil, errors.New("spill: max bytes must be >= 0")
	}
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return nil, err
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, err
	}
	s.bytes.Store(size)
	return s, nil
}

// File is a spilled archive. Closing it removes it from the store.
type File struct {
	*os.File
	path   string
	store  *Store
	size   int64
	digest digest.Digest
	once   sync.Once
}

// Size returns the number of bytes spilled.
func (f *File) Size() int64 {
	return f.size
}

// Digest returns the digest of the spilled content.
func (f *File) Digest() digest.Digest {
	return f.digest
}

// Close closes and removes the spilled file. A later spill of the same
// location that replaced this file on disk is left in place.
func (f *File) Close() error {
	var err error
	f.once.Do(func() {
		own, statErr := f.File.Stat()
		err = f.File.Close()
		if statErr != nil {
			err = errors.Join(err, statErr)
			return
		}
		onDisk, statErr := os.Stat(f.path)
		if statErr != nil || !os.SameFile(own, onDisk) {
			return
		}
		if rmErr := os.Remove(f.path); rmErr == nil {
			f.store.bytes.Add(-f.size)
		} else if !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	})
	return err
}

// Spill copies r into the store under location and returns the file opened
// for reading. A previous spill of the same location is replaced.
func (s *Store) Spill(location string, r io.Reader) (*File, error) {
	path, err := s.path(location)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		_ = os.Remove(tmpPath)
	}

	digester := digest.Canonical.Digester()
	var src io.Reader = r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	written, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), src)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("spill %s: %w", location, err)
	}
	if ok, capErr := s.ensureCapacity(written); capErr != nil || !ok {
		cleanup()
		if capErr != nil {
			return nil, capErr
		}
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, location)
	}

	if prev, statErr := os.Stat(path); statErr == nil {
		s.bytes.Add(-prev.Size())
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return nil, err
	}
	s.bytes.Add(written)
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, err
	}
	return &File{File: tmp, path: path, store: s, size: written, digest: digester.Digest()}, nil
}

// Path returns where location is spilled.
func (s *Store) Path(location string) string {
	path, _ := s.path(location) //nolint:errcheck // location is never empty here
	return path
}

// MaxBytes returns the configured size limit (0 = unlimited).
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// SizeBytes returns the current store size in bytes.
func (s *Store) SizeBytes() int64 {
	return s.bytes.Load()
}

// Prune removes spilled files, oldest first, until the store is at or below
// targetBytes. Files still open keep their content until closed.
func (s *Store) Prune(targetBytes int64) (int64, error) {
	if targetBytes < 0 {
		targetBytes = 0
	}
	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()

	freed, remaining, err := pruneDir(s.dir, targetBytes)
	if err != nil {
		return 0, err
	}
	s.bytes.Store(remaining)
	return freed, nil
}

func (s *Store) path(location string) (string, error) {
	if location == "" {
		return "", errors.New("spill: location is empty")
	}
	encoded := digest.FromString(location).Encoded()
	if s.shardPrefixLen <= 0 {
		return filepath.Join(s.dir, encoded), nil
	}
	prefixLen := min(s.shardPrefixLen, len(encoded))
	return filepath.Join(s.dir, encoded[:prefixLen], encoded), nil
}

func (s *Store) ensureCapacity(need int64) (bool, error) {
	if s.maxBytes <= 0 {
		return true, nil
	}
	if need > s.maxBytes {
		return false, nil
	}
	if s.SizeBytes()+need <= s.maxBytes {
		return true, nil
	}
	if _, err := s.Prune(s.maxBytes - need); err != nil {
		return false, err
	}
	return s.SizeBytes()+need <= s.maxBytes, nil
}
