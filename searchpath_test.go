package nest_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nest"
	"github.com/meigma/nest/index"
	"github.com/meigma/nest/internal/testutil"
)

// searchFixture writes a.jar (carrying an index), b.jar and c.jar.
func searchFixture(t *testing.T) (a, b, c string) {
	t.Helper()
	dir := t.TempDir()

	idx := index.New()
	idx.Add("com/a/A.class", "a.jar")
	idx.Add("com/b/B.class", "b.jar")
	idx.Add("com/c/C.class", "c.jar")
	var buf bytes.Buffer
	_, err := idx.WriteTo(&buf)
	require.NoError(t, err)

	a = testutil.WriteFile(t, dir, "a.jar", testutil.Zip(t,
		testutil.Dir(index.MetaDir),
		testutil.Deflated(index.IndexName, buf.Bytes()),
		testutil.Deflated("com/a/A.class", []byte("A")),
	))
	b = testutil.WriteFile(t, dir, "b.jar", testutil.Zip(t,
		testutil.Deflated("com/b/B.class", []byte("B")),
		testutil.Deflated("shared.txt", []byte("from b")),
	))
	c = testutil.WriteFile(t, dir, "c.jar", testutil.Zip(t,
		testutil.Deflated("com/c/C.class", []byte("C")),
		testutil.Deflated("shared.txt", []byte("from c")),
	))
	return a, b, c
}

func TestSearchPathUsesIndex(t *testing.T) {
	t.Parallel()

	a, b, c := searchFixture(t)
	opener := newCountingOpener()
	r := newResolver(t, nest.WithOpener(opener))

	sp, err := r.SearchPath(context.Background(), []string{a, b, c})
	require.NoError(t, err)
	require.NotNil(t, sp.Index())
	assert.Equal(t, []string{b}, sp.Candidates("com/b/B.class"))

	loc, err := sp.Find(context.Background(), "com/b/B.class")
	require.NoError(t, err)
	assert.Equal(t, nested(t, b, "com/b/B.class"), loc)
	assert.Zero(t, opener.count(c), "archives the index rules out are never opened")

	entry, rc, err := sp.Resolve(context.Background(), "com/b/B.class")
	require.NoError(t, err)
	assert.Equal(t, "com/b/B.class", entry.Name)
	assert.Equal(t, "B", readAll(t, rc))
}

func TestSearchPathScansUnindexedNames(t *testing.T) {
	t.Parallel()

	a, b, c := searchFixture(t)
	r := newResolver(t)

	sp, err := r.SearchPath(context.Background(), []string{a, b, c})
	require.NoError(t, err)

	// shared.txt has no key in the index, so every archive is a candidate
	// and the first holder wins.
	assert.Equal(t, []string{a, b, c}, sp.Candidates("shared.txt"))
	_, rc, err := sp.Resolve(context.Background(), "shared.txt")
	require.NoError(t, err)
	assert.Equal(t, "from b", readAll(t, rc))

	_, err = sp.Find(context.Background(), "nowhere.txt")
	assert.ErrorIs(t, err, nest.ErrEntryNotFound)
}

func TestSearchPathWithoutIndex(t *testing.T) {
	t.Parallel()

	a, b, c := searchFixture(t)
	r := newResolver(t)

	sp, err := r.SearchPath(context.Background(), []string{c, b, a}, nest.WithoutIndex())
	require.NoError(t, err)
	assert.Nil(t, sp.Index())

	loc, err := sp.Find(context.Background(), "shared.txt")
	require.NoError(t, err)
	assert.Equal(t, nested(t, c, "shared.txt"), loc)
}

func TestSearchPathKnownMissing(t *testing.T) {
	t.Parallel()

	a, b, c := searchFixture(t)
	opener := newCountingOpener()
	r := newResolver(t, nest.WithOpener(opener))

	idx := index.New()
	idx.Add("com/gone/G.class", "c.jar")
	idx.RemoveArchive("c.jar")

	sp, err := r.SearchPath(context.Background(), []string{a, b, c}, nest.WithIndex(idx))
	require.NoError(t, err)

	_, err = sp.Find(context.Background(), "com/gone/G.class")
	require.ErrorIs(t, err, nest.ErrEntryNotFound)
	assert.Zero(t, opener.count(a)+opener.count(b)+opener.count(c))
}

func TestSearchPathWithoutIndexFile(t *testing.T) {
	t.Parallel()

	_, b, c := searchFixture(t)
	r := newResolver(t)

	sp, err := r.SearchPath(context.Background(), []string{b, c})
	require.NoError(t, err)
	assert.Nil(t, sp.Index())
}

func TestSearchPathNestedBase(t *testing.T) {
	t.Parallel()

	a, b, _ := searchFixture(t)
	dir := t.TempDir()
	aData, bData := readFile(t, a), readFile(t, b)
	outer := testutil.WriteFile(t, dir, "bundle.zip", testutil.Zip(t,
		testutil.Stored("lib/a.jar", aData),
		testutil.Stored("lib/b.jar", bData),
	))
	r := newResolver(t)

	sp, err := r.SearchPath(context.Background(), []string{nested(t, outer, "lib/a.jar")})
	require.NoError(t, err)
	require.NotNil(t, sp.Index())

	want := nested(t, outer, "lib/b.jar")
	assert.Equal(t, []string{want}, sp.Candidates("com/b/B.class"))

	_, rc, err := sp.Resolve(context.Background(), "com/b/B.class")
	require.NoError(t, err)
	assert.Equal(t, "B", readAll(t, rc))
}
