package index

import (
	"fmt"

	"github.com/sourcegraph/conc/iter"
)

// Lister returns the entry names of one archive, in archive order.
type Lister func(archive string) ([]string, error)

// DefaultBuildConcurrency bounds how many archives Build lists at once.
const DefaultBuildConcurrency = 4

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	concurrency int
}

// WithConcurrency sets how many archives are listed in parallel.
// Values < 1 force serial listing.
func WithConcurrency(n int) BuildOption {
	return func(c *buildConfig) {
		if n < 1 {
			n = 1
		}
		c.concurrency = n
	}
}

// Build creates an index for the ordered archive list.
//
// Archives are listed concurrently but applied in input order, so key and
// archive lists have the same order a serial scan would give. Reserved
// metadata names are skipped; the rest of the metadata directory is indexed.
// Build fails if any archive cannot be listed.
func Build(archives []string, list Lister, opts ...BuildOption) (*Index, error) {
	cfg := buildConfig{concurrency: DefaultBuildConcurrency}
	for _, opt := range opts {
		opt(&cfg)
	}

	mapper := iter.Mapper[string, []string]{MaxGoroutines: cfg.concurrency}
	names, err := mapper.MapErr(archives, func(archive *string) ([]string, error) {
		entries, err := list(*archive)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", *archive, err)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}

	idx := New()
	for i, archive := range archives {
		idx.declareArchive(archive)
		for _, name := range names[i] {
			if isReserved(name) {
				continue
			}
			idx.Add(name, archive)
		}
	}
	return idx, nil
}
