// Package nest resolves entries addressed by nested archive locators.
//
// A nested locator names data reachable through one or more levels of
// archive containment, repeating the wrapper scheme once per level:
//
//	zip:zip:file:/srv/outer.zip!/lib/inner.zip!/config/app.yaml
//
// A [Resolver] owns the shared state needed to read such locators: an
// [archive.Opener] for base archives, a cache of open base archives, an
// optional spill directory for caching inner archives, and the defaults
// applied when parsing locators.
//
// # Quick Start
//
// Read one entry:
//
//	r, err := nest.New()
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	entry, rc, err := r.Resolve(ctx, "zip:zip:/srv/outer.zip!/inner.zip!/a.txt")
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
//
// # Connections
//
// [Connection] exposes the resolution steps: Connect walks the levels and
// looks up the target, InputStream hands out its content once, and closing
// that stream releases every archive the connection opened itself. Archives
// held by the cache stay open for the next connection.
//
// # Search paths
//
// A [SearchPath] looks a name up across an ordered list of archives. When
// the first archive carries a META-INF/INDEX.LIST index, only the archives
// the index names are opened.
package nest
