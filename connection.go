package nest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/meigma/nest/archive"
	"github.com/meigma/nest/internal/decompress"
	"github.com/meigma/nest/locator"
	"github.com/meigma/nest/spill"
)

// State is the lifecycle state of a Connection.
type State uint8

const (
	// Unconnected connections hold no archives.
	Unconnected State = iota
	// Connected connections have located their target.
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "unconnected"
}

// Connection resolves one locator. It is not safe for concurrent use.
//
// Connect opens the base archive through the resolver's cache and every
// intermediate archive as an ephemeral handle. A missing entry leaves the
// connection unconnected with nothing held, so it can be retried, possibly
// after SetLocator. Once connected, the target content is handed out once by
// InputStream; closing that stream releases the ephemeral handles in reverse
// open order. A connection whose stream was taken stays connected for good.
type Connection struct {
	r        *Resolver
	loc      *locator.Locator
	useCache bool

	state     State
	handles   []*archive.Handle // ephemeral, in open order
	container *archive.Handle
	entry     *archive.Entry
	content   io.ReadCloser
	size      int64
	taken     bool
}

// Locator returns the locator being resolved.
func (c *Connection) Locator() *locator.Locator {
	return c.loc
}

// State returns the connection state.
func (c *Connection) State() State {
	return c.state
}

// SetUseCache overrides the resolver's cache setting for this connection.
func (c *Connection) SetUseCache(enabled bool) error {
	if c.state == Connected {
		return ErrConnected
	}
	c.useCache = enabled
	return nil
}

// SetLocator replaces the locator of an unconnected connection.
func (c *Connection) SetLocator(loc *locator.Locator) error {
	if c.state == Connected {
		return ErrConnected
	}
	c.loc = loc
	return nil
}

// Entry returns the target entry metadata, or nil before Connect or when the
// locator names no entry.
func (c *Connection) Entry() *archive.Entry {
	return c.entry
}

// Archive returns the innermost archive opened by Connect: the archive
// holding the target, or the addressed archive when there is no target.
func (c *Connection) Archive() *archive.Handle {
	return c.container
}

// ContentLength returns the length of the target content, or -1 when
// unknown. Decompressed content always reports -1.
func (c *Connection) ContentLength() int64 {
	if c.state != Connected || c.entry == nil || c.decompressing() {
		return -1
	}
	return c.size
}

// Connect locates the target. It does nothing when already connected,
// including after the stream has been taken and closed.
func (c *Connection) Connect(ctx context.Context) error {
	if c.state == Connected {
		return nil
	}
	if !c.loc.Nested() {
		return c.connectPlain(ctx)
	}
	if err := c.connect(ctx); err != nil {
		_ = c.release() //nolint:errcheck // the connect error is more useful
		return err
	}
	c.state = Connected
	return nil
}

func (c *Connection) connectPlain(ctx context.Context) error {
	if err := c.r.authorize(ctx, c.loc.Base()); err != nil {
		return err
	}
	rc, size, err := c.r.opener.OpenStream(ctx, c.loc.Base())
	if err != nil {
		return err
	}
	c.content = rc
	c.size = size
	c.entry = &archive.Entry{Name: c.loc.Base(), Size: size, CompressedSize: size}
	c.state = Connected
	return nil
}

func (c *Connection) connect(ctx context.Context) error {
	log := c.r.log()
	entries := c.loc.Entries()
	first := c.loc.FirstEntry()
	levels := entries[:len(entries)-1]

	var h *archive.Handle
	if c.spilling() {
		parent := c.loc.Parent().String()
		spilled, err := c.r.cache.Get(ctx, parent, true)
		switch {
		case err == nil:
			log.Debug("using spilled container", "location", parent)
			h, levels = spilled, nil
		case errors.Is(err, spill.ErrTooLarge):
			log.Debug("container too large to spill", "location", parent)
		default:
			return err
		}
	}

	if h == nil {
		base, err := c.r.cache.Get(ctx, c.loc.Base(), c.useCache)
		if err != nil {
			return err
		}
		c.hold(base)
		h = base
	}

	location := c.loc.Base()
	for _, name := range levels {
		location = c.loc.Scheme() + ":" + location + locator.Separator + locator.EncodePath(name)
		child, err := c.openChild(h, name, first, location)
		if err != nil {
			return err
		}
		c.hold(child)
		h = child
	}
	c.container = h

	if !c.loc.HasTarget() {
		return nil
	}
	entry, rc, err := archive.Find(h, c.loc.Target(), first)
	if err != nil {
		return err
	}
	log.Debug("entry located", "container", h.Location(), "entry", entry.Name,
		"random_access", isRandomAccess(h))
	c.entry = entry
	c.content = rc
	c.size = entry.Size
	return nil
}

// openChild opens entry name of parent as an archive. A stored entry of a
// random access parent is read in place; anything else is streamed.
func (c *Connection) openChild(parent *archive.Handle, name string, first bool, location string) (*archive.Handle, error) {
	entry, rc, err := archive.Find(parent, name, first)
	if err != nil {
		return nil, err
	}

	if ra, ok := parent.RandomAccess(); ok && entry.Stored() && !c.decompressible(entry.Name) {
		if sec, ok := ra.Section(entry); ok {
			rc.Close()
			c.r.log().Debug("opening level in place", "location", location)
			return archive.OpenZip(location, sec, sec.Size(), nil)
		}
	}

	var src io.Reader = rc
	closer := io.Closer(rc)
	if c.decompressible(entry.Name) {
		d, _, err := c.r.pool.Wrap(entry.Name, rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		src, closer = d, closeBoth{d, rc}
	}
	c.r.log().Debug("streaming level", "location", location)
	return archive.OpenZipStream(location, src, closer), nil
}

// InputStream returns the target content, connecting first if needed.
// It can be called once; closing the stream releases the connection.
func (c *Connection) InputStream(ctx context.Context) (io.ReadCloser, error) {
	if c.taken {
		return nil, ErrStreamTaken
	}
	if c.loc.Nested() && !c.loc.HasTarget() {
		return nil, fmt.Errorf("%w: %s", ErrNoEntry, c.loc)
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	s := &stream{content: c.content, release: c.release}
	if c.decompressing() {
		d, _, err := c.r.pool.Wrap(c.entry.Name, c.content)
		if err != nil {
			return nil, err
		}
		s.decoder = d
	}
	c.taken = true
	c.content = nil
	return s, nil
}

// Close releases a connection whose stream was never taken. After the
// stream is taken, closing the stream is what releases resources.
func (c *Connection) Close() error {
	if c.taken {
		return nil
	}
	var err error
	if c.content != nil {
		err = c.content.Close()
		c.content = nil
	}
	err = errors.Join(err, c.release())
	c.state = Unconnected
	return err
}

// release closes the ephemeral handles in reverse open order. The state is
// left alone: a failed connect never became connected, and a taken stream
// keeps the connection connected.
func (c *Connection) release() error {
	var errs []error
	for i := len(c.handles) - 1; i >= 0; i-- {
		if err := c.handles[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.handles = nil
	c.container = nil
	return errors.Join(errs...)
}

func (c *Connection) hold(h *archive.Handle) {
	if h.Ownership() == archive.Ephemeral {
		c.handles = append(c.handles, h)
	}
}

func (c *Connection) spilling() bool {
	return c.useCache && c.r.spill != nil && len(c.loc.Entries()) > 1
}

func (c *Connection) decompressible(name string) bool {
	return c.loc.Decompress() && decompress.Detect(name) != decompress.None
}

func (c *Connection) decompressing() bool {
	return c.entry != nil && c.decompressible(c.entry.Name)
}

func isRandomAccess(h *archive.Handle) bool {
	_, ok := h.RandomAccess()
	return ok
}

// stream is the reader handed out by InputStream.
type stream struct {
	decoder io.ReadCloser
	content io.ReadCloser
	release func() error
	once    sync.Once
	err     error
}

func (s *stream) Read(p []byte) (int, error) {
	if s.decoder != nil {
		return s.decoder.Read(p)
	}
	return s.content.Read(p)
}

// Close closes the decoder, then the entry reader, then the connection's
// ephemeral archives.
func (s *stream) Close() error {
	s.once.Do(func() {
		var errs []error
		if s.decoder != nil {
			errs = append(errs, s.decoder.Close())
		}
		errs = append(errs, s.content.Close(), s.release())
		s.err = errors.Join(errs...)
	})
	return s.err
}

type closeBoth [2]io.Closer

func (c closeBoth) Close() error {
	return errors.Join(c[0].Close(), c[1].Close())
}
