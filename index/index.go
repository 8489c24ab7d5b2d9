// Package index maps resources to the archives that contain them.
//
// An Index keeps two coupled mappings built from one data source: key to
// the ordered, de-duplicated list of archives holding it, and archive to the
// ordered, de-duplicated list of keys it holds. Keys are package paths (the
// parent directory of an entry) or, for entries at an archive root, the
// entry name itself.
//
// Indexes are built by scanning archives (Build), read from the textual
// INDEX.LIST format (Read), written back (WriteTo) and merged (Merge).
// An Index is not safe for concurrent mutation.
package index

import (
	"errors"
	"slices"
	"strings"
)

// Reserved in-archive names.
const (
	// IndexName is where a precomputed index lives inside an archive.
	IndexName = "META-INF/INDEX.LIST"

	// ManifestName is the archive manifest.
	ManifestName = "META-INF/MANIFEST.MF"

	// MetaDir is the metadata directory marker.
	MetaDir = "META-INF/"
)

// ErrIndexFormat is returned when index data is unparseable or declares an
// unsupported version.
var ErrIndexFormat = errors.New("index: unsupported index format")

// archiveSuffixes are the name suffixes that open a section in index text.
var archiveSuffixes = []string{".jar", ".zip", ".apk", ".dex"}

// IsArchiveName reports whether name carries a recognized archive suffix.
func IsArchiveName(name string) bool {
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Index maps keys to archives and archives to keys.
type Index struct {
	byKey     map[string][]string
	byArchive map[string][]string
	keys      []string
	archives  []string
}

// New returns an empty index.
func New() *Index {
	return &Index{
		byKey:     make(map[string][]string),
		byArchive: make(map[string][]string),
	}
}

// Add records that archive holds the entry name. The key recorded is the
// parent path of name, or name itself when it has no "/".
func (idx *Index) Add(name, archive string) {
	idx.addPair(KeyOf(name), archive)
}

// KeyOf returns the key under which an entry name is indexed.
func KeyOf(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return name
}

func (idx *Index) addPair(key, archive string) {
	idx.declareArchive(archive)
	list, ok := idx.byKey[key]
	if !ok {
		idx.keys = append(idx.keys, key)
	}
	if !slices.Contains(list, archive) {
		idx.byKey[key] = append(list, archive)
	}
	if klist := idx.byArchive[archive]; !slices.Contains(klist, key) {
		idx.byArchive[archive] = append(klist, key)
	}
}

func (idx *Index) declareArchive(archive string) {
	if _, ok := idx.byArchive[archive]; ok {
		return
	}
	idx.byArchive[archive] = nil
	idx.archives = append(idx.archives, archive)
}

// Get returns the archives holding name.
//
// The exact key is tried first; when it is absent the key formed by
// stripping the last "/"-delimited segment of name is tried. ok is false
// when neither is present. A key that is present with an empty list (see
// RemoveArchive) is returned as present and does not fall back.
func (idx *Index) Get(name string) (archives []string, ok bool) {
	if list, found := idx.byKey[name]; found {
		return slices.Clone(list), true
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		if list, found := idx.byKey[name[:i]]; found {
			return slices.Clone(list), true
		}
	}
	return nil, false
}

// GetExact returns the archives recorded for key without parent fallback.
func (idx *Index) GetExact(key string) ([]string, bool) {
	list, ok := idx.byKey[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(list), true
}

// Archives returns the archive names in the order they were first seen.
func (idx *Index) Archives() []string {
	return slices.Clone(idx.archives)
}

// Keys returns the keys recorded for archive, in insertion order.
func (idx *Index) Keys(archive string) []string {
	return slices.Clone(idx.byArchive[archive])
}

// Len returns the number of keys.
func (idx *Index) Len() int {
	return len(idx.keys)
}

// RemoveArchive drops archive from the index. Keys that only pointed at
// archive stay present with an empty list, so lookups report them as known
// and confirmed missing rather than unknown. It reports whether archive was
// present.
func (idx *Index) RemoveArchive(archive string) bool {
	keys, ok := idx.byArchive[archive]
	if !ok {
		return false
	}
	for _, key := range keys {
		idx.byKey[key] = slices.DeleteFunc(idx.byKey[key], func(a string) bool { return a == archive })
	}
	delete(idx.byArchive, archive)
	idx.archives = slices.DeleteFunc(idx.archives, func(a string) bool { return a == archive })
	return true
}

// Merge copies every (key, archive) pair of idx into dst, prefixing each
// archive name with prefix (the path of idx's archives relative to dst's).
// idx is not modified. Lists in dst keep their own de-duplication; no
// other reconciliation between the two indexes is done.
func (idx *Index) Merge(dst *Index, prefix string) {
	keys := slices.Clone(idx.keys)
	for _, key := range keys {
		for _, archive := range slices.Clone(idx.byKey[key]) {
			dst.addPair(key, prefix+archive)
		}
	}
}

// isReserved reports whether an entry name is excluded from indexing.
func isReserved(name string) bool {
	if !strings.HasPrefix(name, MetaDir) {
		return false
	}
	return name == MetaDir || name == IndexName || name == ManifestName
}
