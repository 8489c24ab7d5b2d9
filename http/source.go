// Package http reads remote archives over HTTP.
//
// A Source gives random access to a remote archive through range requests so
// that only the central directory and the requested entries are transferred.
// Servers without range support can still be read front to back with Fetch.
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
)

// ErrRangeUnsupported is returned when the server ignores range requests.
var ErrRangeUnsupported = errors.New("http: range requests not supported")

// ErrNotFound is returned when the server answers 404 or 410.
var ErrNotFound = errors.New("http: resource not found")

// Source implements io.ReaderAt over a remote resource.
type Source struct {
	ctx          context.Context
	url          string
	client       *nethttp.Client
	headers      nethttp.Header
	size         int64
	etag         string
	lastModified string
	pinned       bool
}

// Option configures a Source or a Fetch.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithPinnedVersion makes every range read conditional on the ETag or
// Last-Modified seen when the source was opened, so a remote archive that
// changes underneath an open handle fails instead of yielding mixed bytes.
func WithPinnedVersion() Option {
	return func(s *Source) {
		s.pinned = true
	}
}

func newSource(ctx context.Context, url string, opts []Option) *Source {
	s := &Source{ctx: ctx, url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	return s
}

// NewSource probes url and returns a Source for it. ctx bounds the probe;
// later ReadAt calls keep its values but not its cancellation, since a Source
// may be shared long after the opening call returns.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := newSource(ctx, url, opts)

	req, err := s.newRequest(nethttp.MethodGet, false)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp.Body)

	switch {
	case resp.StatusCode == nethttp.StatusPartialContent:
	case resp.StatusCode == nethttp.StatusOK:
		return nil, fmt.Errorf("%w: %s", ErrRangeUnsupported, url)
	case isNotFound(resp.StatusCode):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	default:
		return nil, fmt.Errorf("http: probe %s: %s", url, resp.Status)
	}

	size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return nil, err
	}
	s.size = size
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	s.ctx = context.WithoutCancel(ctx)
	return s, nil
}

// Fetch issues a plain GET for url and returns the body and its length,
// or -1 when the server does not announce one.
func Fetch(ctx context.Context, url string, opts ...Option) (io.ReadCloser, int64, error) {
	s := newSource(ctx, url, opts)
	req, err := s.newRequest(nethttp.MethodGet, false)
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != nethttp.StatusOK {
		drain(resp.Body)
		if isNotFound(resp.StatusCode) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, url)
		}
		return nil, 0, fmt.Errorf("http: get %s: %s", url, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

// URL returns the resource URL.
func (s *Source) URL() string {
	return s.url
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// ReadAt reads len(p) bytes starting at off with a single range request.
// Reads that extend past the end return the available bytes and io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("http: read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	want := len(p)
	if rest := s.size - off; int64(want) > rest {
		want = int(rest)
	}

	req, err := s.newRequest(nethttp.MethodGet, s.pinned)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+int64(want)-1))
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	case nethttp.StatusPreconditionFailed:
		return 0, fmt.Errorf("http: %s changed since it was opened", s.url)
	case nethttp.StatusOK:
		return 0, fmt.Errorf("%w: %s", ErrRangeUnsupported, s.url)
	default:
		return 0, fmt.Errorf("http: range read %s: %s", s.url, resp.Status)
	}

	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, err
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *Source) newRequest(method string, conditional bool) (*nethttp.Request, error) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := nethttp.NewRequestWithContext(ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if conditional {
		if s.etag != "" {
			req.Header.Set("If-Match", s.etag)
		} else if s.lastModified != "" {
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	return req, nil
}

func isNotFound(code int) bool {
	return code == nethttp.StatusNotFound || code == nethttp.StatusGone
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body) //nolint:errcheck // best-effort drain for connection reuse
	_ = body.Close()
}

// parseContentRange extracts the total size from "bytes start-end/size".
func parseContentRange(value string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, fmt.Errorf("http: invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("http: invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("http: invalid Content-Range %q", value)
	}
	return size, nil
}
