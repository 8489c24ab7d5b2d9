package nest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/meigma/nest/archive"
	"github.com/meigma/nest/index"
	"github.com/meigma/nest/locator"
)

// SearchPath finds names across an ordered list of archives.
//
// When an index is available, only the archives it lists for a name are
// searched, and a name the index knows to be absent is reported missing
// without opening anything. Archive names in the index are relative to the
// directory of the first archive.
type SearchPath struct {
	r     *Resolver
	bases []string
	idx   *index.Index
}

// SearchPathOption configures a SearchPath.
type SearchPathOption func(*searchPathConfig)

type searchPathConfig struct {
	idx     *index.Index
	noIndex bool
}

// WithIndex uses idx instead of loading one from the first archive.
func WithIndex(idx *index.Index) SearchPathOption {
	return func(c *searchPathConfig) {
		c.idx = idx
	}
}

// WithoutIndex scans every archive in order.
func WithoutIndex() SearchPathOption {
	return func(c *searchPathConfig) {
		c.noIndex = true
	}
}

// SearchPath returns a SearchPath over bases. Unless an index is supplied or
// disabled, the first base is checked for META-INF/INDEX.LIST.
func (r *Resolver) SearchPath(ctx context.Context, bases []string, opts ...SearchPathOption) (*SearchPath, error) {
	var cfg searchPathConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	sp := &SearchPath{r: r, bases: slices.Clone(bases), idx: cfg.idx}
	if cfg.noIndex || sp.idx != nil || len(bases) == 0 {
		return sp, nil
	}

	idx, err := r.LoadIndex(ctx, bases[0])
	switch {
	case err == nil:
		r.log().Debug("search path index loaded", "base", bases[0], "keys", idx.Len())
		sp.idx = idx
	case errors.Is(err, ErrEntryNotFound):
	default:
		return nil, err
	}
	return sp, nil
}

// Index returns the index in use, or nil.
func (sp *SearchPath) Index() *index.Index {
	return sp.idx
}

// Candidates returns the archives that may hold name, in search order.
func (sp *SearchPath) Candidates(name string) []string {
	if sp.idx == nil {
		return slices.Clone(sp.bases)
	}
	archives, ok := sp.idx.Get(name)
	if !ok {
		return slices.Clone(sp.bases)
	}
	out := make([]string, 0, len(archives))
	for _, a := range archives {
		out = append(out, sp.resolve(a))
	}
	return out
}

// Find returns the locator of the first archive holding name.
func (sp *SearchPath) Find(ctx context.Context, name string) (string, error) {
	for _, base := range sp.Candidates(name) {
		found, err := sp.contains(ctx, base, name)
		if err != nil {
			return "", err
		}
		if found {
			return BuildLocator(base, name)
		}
	}
	return "", fmt.Errorf("%w: %s not on search path", ErrEntryNotFound, name)
}

// Resolve finds name and reads it.
func (sp *SearchPath) Resolve(ctx context.Context, name string) (*archive.Entry, io.ReadCloser, error) {
	loc, err := sp.Find(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return sp.r.Resolve(ctx, loc)
}

func (sp *SearchPath) contains(ctx context.Context, base, name string) (bool, error) {
	h, err := sp.r.OpenArchive(ctx, base)
	if err != nil {
		return false, err
	}
	defer h.Close()

	if ra, ok := h.RandomAccess(); ok {
		_, found := ra.Lookup(name)
		return found, nil
	}
	found := false
	err = archive.Walk(h, func(e *archive.Entry) bool {
		found = e.Name == name
		return !found
	})
	return found, err
}

// resolve turns an index archive name into a location next to the first base.
func (sp *SearchPath) resolve(name string) string {
	if len(sp.bases) == 0 {
		return name
	}
	first := sp.bases[0]
	if loc, err := locator.Parse(first); err == nil && loc.Nested() {
		// An index inside a nested archive names siblings in the same parent.
		target := loc.Target()
		dir := target[:strings.LastIndexByte(target, '/')+1]
		return loc.WithTarget(dir + name).String()
	}
	i := strings.LastIndexAny(first, `/\`)
	if i < 0 {
		return name
	}
	return first[:i+1] + name
}
