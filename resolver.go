package nest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/meigma/nest/archive"
	"github.com/meigma/nest/cache"
	nesthttp "github.com/meigma/nest/http"
	"github.com/meigma/nest/index"
	"github.com/meigma/nest/internal/decompress"
	"github.com/meigma/nest/locator"
	"github.com/meigma/nest/spill"
)

// Opener opens base archives and plain resources.
type Opener interface {
	// Open opens the archive at location.
	Open(ctx context.Context, location string) (*archive.Handle, error)
	// OpenStream returns the raw bytes at location and their length, or -1.
	OpenStream(ctx context.Context, location string) (io.ReadCloser, int64, error)
}

// Resolver reads nested locators. It is safe for concurrent use; the
// connections it creates are not.
type Resolver struct {
	opener           Opener
	cache            *cache.Cache
	spill            *spill.Store
	pool             *decompress.Pool
	logger           *slog.Logger
	check            cache.AccessCheck
	httpOpts         []nesthttp.Option
	useCache         bool
	decompress       bool
	firstEntry       bool
	spillDir         string
	spillMaxBytes    int64
	indexConcurrency int
	maxDecoderMemory uint64
}

// New returns a Resolver. Caching is enabled by default.
func New(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		useCache:         true,
		indexConcurrency: index.DefaultBuildConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.opener == nil {
		r.opener = archive.NewOpener(archive.WithHTTPOptions(r.httpOpts...))
	}
	if r.spillDir != "" {
		store, err := spill.New(r.spillDir, spill.WithMaxBytes(r.spillMaxBytes))
		if err != nil {
			return nil, fmt.Errorf("nest: spill dir: %w", err)
		}
		r.spill = store
	}
	r.pool = decompress.NewPool(r.maxDecoderMemory)

	cacheOpts := []cache.Option{cache.WithLogger(r.logger)}
	if r.check != nil {
		cacheOpts = append(cacheOpts, cache.WithAccessCheck(r.check))
	}
	r.cache = cache.New(r.openLocation, cacheOpts...)
	return r, nil
}

func (r *Resolver) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Cache returns the handle cache shared by the resolver's connections.
func (r *Resolver) Cache() *cache.Cache {
	return r.cache
}

// Close closes every cached archive.
func (r *Resolver) Close() error {
	return r.cache.Purge()
}

// Parse parses s with the resolver's locator defaults.
func (r *Resolver) Parse(s string) (*locator.Locator, error) {
	return locator.Parse(s, r.locatorOptions()...)
}

func (r *Resolver) locatorOptions() []locator.Option {
	var opts []locator.Option
	if r.firstEntry {
		opts = append(opts, locator.WithFirstEntry())
	}
	if r.decompress {
		opts = append(opts, locator.WithDecompress())
	}
	return opts
}

// Connect returns an unconnected Connection for loc.
func (r *Resolver) Connect(loc *locator.Locator) *Connection {
	return &Connection{r: r, loc: loc, useCache: r.useCache}
}

// Open parses s and returns an unconnected Connection for it.
func (r *Resolver) Open(s string) (*Connection, error) {
	loc, err := r.Parse(s)
	if err != nil {
		return nil, err
	}
	return r.Connect(loc), nil
}

// Resolve reads the entry addressed by s. The returned reader must be
// closed; closing it releases every archive opened for this call.
func (r *Resolver) Resolve(ctx context.Context, s string) (*archive.Entry, io.ReadCloser, error) {
	c, err := r.Open(s)
	if err != nil {
		return nil, nil, err
	}
	rc, err := c.InputStream(ctx)
	if err != nil {
		_ = c.Close() //nolint:errcheck // the stream error is more useful
		return nil, nil, err
	}
	return c.Entry(), rc, nil
}

// Stat returns the metadata of the entry addressed by s without reading it.
func (r *Resolver) Stat(ctx context.Context, s string) (*archive.Entry, error) {
	c, err := r.Open(s)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	if !c.Locator().HasTarget() {
		return nil, fmt.Errorf("%w: %s", ErrNoEntry, s)
	}
	return c.Entry(), nil
}

// OpenArchive opens the archive addressed by s, which may be a plain base
// location or a nested locator whose target is itself an archive. Closing
// the returned handle releases everything opened for it; cached archives
// stay cached.
func (r *Resolver) OpenArchive(ctx context.Context, s string) (*archive.Handle, error) {
	// First-entry matching would replace the archive with its first member.
	var opts []locator.Option
	if r.decompress {
		opts = append(opts, locator.WithDecompress())
	}
	loc, err := locator.Parse(s, opts...)
	if err != nil {
		return nil, err
	}
	c := r.Connect(loc.Child(""))
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	h := c.Archive()
	if ra, ok := h.RandomAccess(); ok {
		return archive.NewRandomAccessHandle(s, ra, c), nil
	}
	seq, _ := h.Sequential()
	return archive.NewSequentialHandle(s, seq, c), nil
}

// BuildIndex lists the archives in order and indexes their entries. Archive
// names may be base locations or nested locators.
func (r *Resolver) BuildIndex(ctx context.Context, archives []string) (*index.Index, error) {
	list := index.ListHandle(func(name string) (*archive.Handle, error) {
		return r.OpenArchive(ctx, name)
	})
	return index.Build(archives, list, index.WithConcurrency(r.indexConcurrency))
}

// LoadIndex reads META-INF/INDEX.LIST from the archive addressed by s.
func (r *Resolver) LoadIndex(ctx context.Context, s string) (*index.Index, error) {
	h, err := r.OpenArchive(ctx, s)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return index.Load(h)
}

// BuildLocator serializes base and entries into a nested locator string.
// It fails with ErrMalformedLocator when no entry is given.
func BuildLocator(base string, entries ...string) (string, error) {
	b := locator.NewBuilder(base)
	for _, e := range entries {
		b.Add(e)
	}
	return b.Build()
}

// openLocation opens a cache location. Base locations go to the opener;
// nested locators name inner archives, which are spilled to disk.
func (r *Resolver) openLocation(ctx context.Context, location string) (*archive.Handle, error) {
	loc, err := locator.Parse(location, r.locatorOptions()...)
	if err != nil || !loc.Nested() {
		return r.opener.Open(ctx, location)
	}
	if r.spill == nil {
		return nil, fmt.Errorf("nest: no spill directory for %s", location)
	}

	c := r.Connect(loc)
	rc, err := c.InputStream(ctx)
	if err != nil {
		_ = c.Close() //nolint:errcheck // the stream error is more useful
		return nil, err
	}
	f, err := r.spill.Spill(location, rc)
	closeErr := rc.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		f.Close()
		return nil, closeErr
	}
	r.log().Debug("inner archive spilled",
		"location", location, "size", f.Size(), "digest", f.Digest().String())

	h, err := archive.OpenZip(location, f, f.Size(), f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return h, nil
}

func (r *Resolver) authorize(ctx context.Context, location string) error {
	if r.check == nil {
		return nil
	}
	if err := r.check(ctx, location); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, location, err)
	}
	return nil
}
