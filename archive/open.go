package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	nesthttp "github.com/meigma/nest/http"
	"github.com/meigma/nest/locator"
)

// Opener opens base archives named by a filesystem path, a file: URL or an
// http(s) URL.
type Opener struct {
	httpOpts []nesthttp.Option
}

// OpenerOption configures an Opener.
type OpenerOption func(*Opener)

// WithHTTPOptions sets options applied to every remote request.
func WithHTTPOptions(opts ...nesthttp.Option) OpenerOption {
	return func(o *Opener) {
		o.httpOpts = append(o.httpOpts, opts...)
	}
}

// NewOpener returns an Opener.
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open opens the archive at location. Local files and remote servers that
// honor range requests give random access; other remote archives are
// streamed.
func (o *Opener) Open(ctx context.Context, location string) (*Handle, error) {
	if isRemote(location) {
		return o.openRemote(ctx, location)
	}
	path, err := localPath(location)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, notFound(location, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, notFound(location, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrContainerNotFound, location)
	}
	h, err := OpenZip(location, f, info.Size(), f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return h, nil
}

// OpenStream returns the raw bytes at location and their length, or -1 when
// unknown.
func (o *Opener) OpenStream(ctx context.Context, location string) (io.ReadCloser, int64, error) {
	if isRemote(location) {
		body, size, err := nesthttp.Fetch(ctx, location, o.httpOpts...)
		if err != nil {
			return nil, 0, notFound(location, err)
		}
		return body, size, nil
	}
	path, err := localPath(location)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, notFound(location, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, notFound(location, err)
	}
	return f, info.Size(), nil
}

func (o *Opener) openRemote(ctx context.Context, location string) (*Handle, error) {
	src, err := nesthttp.NewSource(ctx, location, o.httpOpts...)
	if err == nil {
		return OpenZip(location, src, src.Size(), nil)
	}
	if !errors.Is(err, nesthttp.ErrRangeUnsupported) {
		return nil, notFound(location, err)
	}
	body, _, err := nesthttp.Fetch(ctx, location, o.httpOpts...)
	if err != nil {
		return nil, notFound(location, err)
	}
	return OpenZipStream(location, body, body), nil
}

func isRemote(location string) bool {
	for _, prefix := range []string{"http://", "https://"} {
		if len(location) >= len(prefix) && strings.EqualFold(location[:len(prefix)], prefix) {
			return true
		}
	}
	return false
}

func localPath(location string) (string, error) {
	path, ok, err := locator.FilePath(location)
	if err != nil {
		return "", err
	}
	if ok {
		return path, nil
	}
	if i := strings.Index(location, "://"); i > 0 {
		return "", fmt.Errorf("%w: unsupported scheme in %q", ErrContainerNotFound, location)
	}
	return location, nil
}

func notFound(location string, err error) error {
	if errors.Is(err, ErrContainerNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrContainerNotFound, location, err)
}
