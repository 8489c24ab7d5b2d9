//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nest"
	"github.com/meigma/nest/archive"
)

func TestResolve_RemoteNested(t *testing.T) {
	t.Parallel()

	base := getServer(t) + "outer.zip"
	ctx := context.Background()

	for _, level := range []string{"lib/stored.zip", "lib/deflated.zip"} {
		t.Run(level, func(t *testing.T) {
			t.Parallel()
			r := newResolver(t)
			for name, want := range innerFiles {
				loc, err := nest.BuildLocator(base, level, name)
				require.NoError(t, err)
				_, rc, err := r.Resolve(ctx, loc)
				require.NoError(t, err, "Resolve(%q)", loc)
				assert.Equal(t, string(want), readAll(t, rc))
			}
			assert.Equal(t, 1, r.Cache().Len(), "remote base is opened once")
		})
	}
}

func TestResolve_RemoteSpill(t *testing.T) {
	t.Parallel()

	base := getServer(t) + "outer.zip"
	r := newResolver(t, nest.WithSpillDir(t.TempDir(), 0))

	loc, err := nest.BuildLocator(base, "lib/deflated.zip", "dir/sub/c.json")
	require.NoError(t, err)
	for range 3 {
		_, rc, err := r.Resolve(context.Background(), loc)
		require.NoError(t, err)
		assert.Equal(t, string(innerFiles["dir/sub/c.json"]), readAll(t, rc))
	}
}

func TestResolve_RemoteNoCache(t *testing.T) {
	t.Parallel()

	base := getServer(t) + "outer.zip"
	r := newResolver(t, nest.WithCache(false))

	loc, err := nest.BuildLocator(base, "lib/stored.zip", "a.txt")
	require.NoError(t, err)
	_, rc, err := r.Resolve(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, "hello from a", readAll(t, rc))
	assert.Zero(t, r.Cache().Len())
}

func TestStat_Remote(t *testing.T) {
	t.Parallel()

	base := getServer(t) + "outer.zip"
	r := newResolver(t)

	loc, err := nest.BuildLocator(base, "lib/stored.zip", "dir/b.txt")
	require.NoError(t, err)
	e, err := r.Stat(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, "dir/b.txt", e.Name)
	assert.Equal(t, int64(len(innerFiles["dir/b.txt"])), e.Size)
}

func TestOpenArchive_Remote(t *testing.T) {
	t.Parallel()

	base := getServer(t) + "outer.zip"
	r := newResolver(t)

	loc, err := nest.BuildLocator(base, "lib/stored.zip")
	require.NoError(t, err)
	h, err := r.OpenArchive(context.Background(), loc)
	require.NoError(t, err)
	defer h.Close()

	names, err := archive.Names(h)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "dir/b.txt", "dir/sub/c.json"}, names)
}

func TestSearchPath_Remote(t *testing.T) {
	t.Parallel()

	server := getServer(t)
	r := newResolver(t)
	ctx := context.Background()

	sp, err := r.SearchPath(ctx, []string{server + "app.jar", server + "lib.jar"})
	require.NoError(t, err)
	require.NotNil(t, sp.Index())

	_, rc, err := sp.Resolve(ctx, "com/acme/Foo.class")
	require.NoError(t, err)
	assert.Equal(t, "foo", readAll(t, rc))

	_, rc, err = sp.Resolve(ctx, "app/Main.class")
	require.NoError(t, err)
	assert.Equal(t, "main", readAll(t, rc))
}

func TestBuildIndex_Remote(t *testing.T) {
	t.Parallel()

	server := getServer(t)
	r := newResolver(t)

	idx, err := r.BuildIndex(context.Background(), []string{server + "lib.jar"})
	require.NoError(t, err)
	archives, ok := idx.Get("com/acme/Foo.class")
	require.True(t, ok)
	assert.Equal(t, []string{server + "lib.jar"}, archives)
}
