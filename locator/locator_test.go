package locator

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		scheme  string
		base    string
		entries []string
	}{
		{
			name: "plain resource",
			in:   "file:/srv/data.txt",
			base: "file:/srv/data.txt",
		},
		{
			name:    "single level",
			in:      "zip:file:/srv/outer.zip!/data.txt",
			scheme:  SchemeZip,
			base:    "file:/srv/outer.zip",
			entries: []string{"data.txt"},
		},
		{
			name:    "two levels",
			in:      "zip:zip:file:/srv/outer.zip!/dir/inner.zip!/data.txt",
			scheme:  SchemeZip,
			base:    "file:/srv/outer.zip",
			entries: []string{"dir/inner.zip", "data.txt"},
		},
		{
			name:    "jar scheme relative base",
			in:      "jar:jar:jar:lib/a.jar!/b.jar!/c.jar!/x/Y.class",
			scheme:  SchemeJar,
			base:    "lib/a.jar",
			entries: []string{"b.jar", "c.jar", "x/Y.class"},
		},
		{
			name:    "http base",
			in:      "zip:http://example.com/a.zip!/x",
			scheme:  SchemeZip,
			base:    "http://example.com/a.zip",
			entries: []string{"x"},
		},
		{
			name:    "scheme case folded",
			in:      "ZIP:a.zip!/x",
			scheme:  SchemeZip,
			base:    "a.zip",
			entries: []string{"x"},
		},
		{
			name:    "archive without entry",
			in:      "zip:a.zip!/",
			scheme:  SchemeZip,
			base:    "a.zip",
			entries: []string{""},
		},
		{
			name:    "escaped entry",
			in:      "zip:a.zip!/my%20dir/caf%c3%a9.txt",
			scheme:  SchemeZip,
			base:    "a.zip",
			entries: []string{"my dir/café.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, l.Scheme())
			assert.Equal(t, tt.base, l.Base())
			if tt.entries == nil {
				assert.Empty(t, l.Entries())
				assert.False(t, l.Nested())
			} else {
				assert.Equal(t, tt.entries, l.Entries())
				assert.True(t, l.Nested())
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"zip:",
		"zip:a.zip",
		"zip:zip:a.zip!/b",
		"zip:a.zip!/b!/c",
		"a.zip!/b",
		"zip:!/b",
		"zip:zip:a.zip!/!/c",
		"zip:a.zip!/bad%zz",
		"zip:a.zip!/trunc%2",
		"zip:a.zip!/%ff%fe",
	} {
		t.Run(fmt.Sprintf("%q", in), func(t *testing.T) {
			t.Parallel()
			_, err := Parse(in)
			require.ErrorIs(t, err, ErrMalformedLocator)
		})
	}
}

func TestParseDeepLocator(t *testing.T) {
	t.Parallel()

	const depth = 10000
	b := NewBuilder("file:/deep.zip")
	for i := range depth {
		b.Add(fmt.Sprintf("l%d.zip", i))
	}
	s, err := b.Build()
	require.NoError(t, err)

	l, err := Parse(s)
	require.NoError(t, err)
	assert.Len(t, l.Entries(), depth)
	assert.Equal(t, depth-1, l.Levels())
}

func TestBuilderRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		entries []string
		opts    []Option
	}{
		{name: "single", base: "file:/a.zip", entries: []string{"x.txt"}},
		{name: "nested", base: "file:/a.zip", entries: []string{"dir/b.zip", "c.zip", "x.txt"}},
		{name: "jar", base: "lib/a.jar", entries: []string{"b.jar", "Main.class"}, opts: []Option{WithScheme(SchemeJar)}},
		{name: "reserved chars", base: "a.zip", entries: []string{"with space/{x}.zip", "100%|^`.txt"}},
		{name: "unicode", base: "a.zip", entries: []string{"résumé/日本.txt"}},
		{name: "flags", base: "a.zip", entries: []string{"x.gz"}, opts: []Option{WithDecompress(), WithFirstEntry()}},
		{name: "archive only", base: "a.zip", entries: []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := NewBuilder(tt.base, tt.opts...)
			for _, e := range tt.entries {
				b.Add(e)
			}
			built, err := b.Locator()
			require.NoError(t, err)

			s, err := b.Build()
			require.NoError(t, err)
			assert.Equal(t, len(tt.entries), strings.Count(s, Separator))

			parsed, err := Parse(s, tt.opts...)
			require.NoError(t, err)
			assert.True(t, built.Equal(parsed), "parse(build(L)) != L: %q", s)
			assert.Equal(t, s, parsed.String())
		})
	}
}

func TestBuilderLevels(t *testing.T) {
	t.Parallel()

	b := NewBuilder("file:/samples/File.zip")
	for i, e := range []string{"a.zip", "b.zip", "c.zip", "d.txt"} {
		b.Add(e)
		assert.Equal(t, i, b.Levels())
		l, err := b.Locator()
		require.NoError(t, err)
		assert.Equal(t, len(l.Entries())-1, l.Levels())
	}

	s, err := NewBuilder("file:/samples/File.zip").Add("71812_file").Add("myFile.properties").Build()
	require.NoError(t, err)
	assert.Equal(t, "zip:zip:file:/samples/File.zip!/71812_file!/myFile.properties", s)
}

func TestBuilderNoEntry(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder("file:/a.zip").Build()
	require.ErrorIs(t, err, ErrMalformedLocator)
	assert.Contains(t, err.Error(), "no entry defined")
}

func TestParentAndTarget(t *testing.T) {
	t.Parallel()

	l := MustParse("zip:zip:a.zip!/b.zip!/c.txt")
	assert.Equal(t, "c.txt", l.Target())
	assert.True(t, l.HasTarget())
	assert.Equal(t, []string{"a.zip", "b.zip", "c.txt"}, l.Steps())

	c := l.Parent()
	assert.Equal(t, "zip:a.zip!/b.zip", c.String())
	assert.Equal(t, "a.zip", c.Parent().String())
	assert.False(t, c.Parent().Nested())
	assert.Nil(t, c.Parent().Parent())

	moved := l.WithTarget("d.txt")
	assert.Equal(t, "zip:zip:a.zip!/b.zip!/d.txt", moved.String())
	assert.Equal(t, "c.txt", l.Target(), "WithTarget must not mutate the receiver")

	child := c.Child("")
	assert.Equal(t, "zip:zip:a.zip!/b.zip!/", child.String())
	assert.False(t, child.HasTarget())
	assert.Equal(t, "zip:a.zip!/x", MustParse("a.zip").Child("x").String())

	assert.False(t, MustParse("zip:a.zip!/").HasTarget())
	assert.True(t, MustParse("zip:a.zip!/", WithFirstEntry()).HasTarget())
}

func TestEntriesIsACopy(t *testing.T) {
	t.Parallel()

	l := MustParse("zip:a.zip!/x")
	e := l.Entries()
	e[0] = "mutated"
	assert.Equal(t, "x", l.Target())
}

func TestEncodePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"abcXYZ019", "abcXYZ019"},
		{"dir/sub/file.txt", "dir/sub/file.txt"},
		{"a b", "a%20b"},
		{`<>%"{}|\^[]` + "`", "%3c%3e%25%22%7b%7d%7c%5c%5e%5b%5d%60"},
		{"tab\there", "tab%09here"},
		{"del\x7f", "del%7f"},
		{"é", "%c3%a9"},
		{"€", "%e2%82%ac"},
		{"keep-._~!$&'()*+,;=:@", "keep-._~!$&'()*+,;=:@"},
	}
	for _, tt := range tests {
		got := EncodePath(tt.in)
		assert.Equal(t, tt.want, got, "EncodePath(%q)", tt.in)
		back, err := DecodePath(got)
		require.NoError(t, err)
		assert.Equal(t, tt.in, back)
	}
}

func TestDecodePathAcceptsUpperHex(t *testing.T) {
	t.Parallel()

	got, err := DecodePath("caf%C3%A9%20x")
	require.NoError(t, err)
	assert.Equal(t, "café x", got)
}

func TestFileURL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "my archive.zip")

	u, err := FileURL(p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file:/"))
	assert.Contains(t, u, "my%20archive.zip")

	back, ok, err := FilePath(u)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p, back)

	back, ok, err = FilePath("file://localhost/tmp/x.zip")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.FromSlash("/tmp/x.zip"), back)

	_, ok, err = FilePath("http://example.com/x.zip")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = FilePath("file://remote/x.zip")
	require.ErrorIs(t, err, ErrMalformedLocator)
}
