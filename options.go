package nest

import (
	"log/slog"
	nethttp "net/http"

	"github.com/meigma/nest/cache"
	nesthttp "github.com/meigma/nest/http"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger for resolution and cache events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithOpener replaces the opener used for base archives.
func WithOpener(opener Opener) Option {
	return func(r *Resolver) {
		r.opener = opener
	}
}

// WithAccessCheck installs a check run before every base archive is opened
// or served from the cache, and before plain resources are streamed.
func WithAccessCheck(check cache.AccessCheck) Option {
	return func(r *Resolver) {
		r.check = check
	}
}

// WithCache controls whether base archives are shared through the handle
// cache. Enabled by default.
func WithCache(enabled bool) Option {
	return func(r *Resolver) {
		r.useCache = enabled
	}
}

// WithDecompression makes parsed locators decompress .gz and .zst entries.
func WithDecompression(enabled bool) Option {
	return func(r *Resolver) {
		r.decompress = enabled
	}
}

// WithFirstEntry makes parsed locators match the first entry of each level.
func WithFirstEntry(enabled bool) Option {
	return func(r *Resolver) {
		r.firstEntry = enabled
	}
}

// WithSpillDir materializes inner archives under dir so they can be cached
// as random access archives. maxBytes bounds the directory size; 0 means
// unlimited. Spilling only happens while caching is enabled.
func WithSpillDir(dir string, maxBytes int64) Option {
	return func(r *Resolver) {
		r.spillDir = dir
		r.spillMaxBytes = maxBytes
	}
}

// WithHTTPClient sets the client the default opener uses for remote archives.
func WithHTTPClient(client *nethttp.Client) Option {
	return func(r *Resolver) {
		r.httpOpts = append(r.httpOpts, nesthttp.WithClient(client))
	}
}

// WithHTTPHeader adds a header to every remote request of the default opener.
func WithHTTPHeader(key, value string) Option {
	return func(r *Resolver) {
		r.httpOpts = append(r.httpOpts, nesthttp.WithHeader(key, value))
	}
}

// WithIndexConcurrency bounds how many archives BuildIndex lists at once.
func WithIndexConcurrency(n int) Option {
	return func(r *Resolver) {
		r.indexConcurrency = n
	}
}

// WithMaxDecoderMemory limits the memory used by zstd decoders.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(r *Resolver) {
		r.maxDecoderMemory = limit
	}
}
