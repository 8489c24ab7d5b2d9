package zipstream

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nest/internal/testutil"
)

func TestReaderWalksEntriesInOrder(t *testing.T) {
	t.Parallel()

	data := testutil.Zip(t,
		testutil.Dir("dir/"),
		testutil.Deflated("dir/a.txt", []byte("alpha alpha alpha")),
		testutil.Stored("b.bin", []byte{0, 1, 2, 3}),
		testutil.Deflated("empty", nil),
	)

	r := NewReader(bytes.NewReader(data))
	defer r.Close()

	var names []string
	var contents [][]byte
	for {
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
		body, err := io.ReadAll(r)
		require.NoError(t, err)
		contents = append(contents, body)
	}

	assert.Equal(t, []string{"dir/", "dir/a.txt", "b.bin", "empty"}, names)
	assert.Equal(t, []byte("alpha alpha alpha"), contents[1])
	assert.Equal(t, []byte{0, 1, 2, 3}, contents[2])
	assert.Empty(t, contents[3])
}

func TestReaderSkipsUnreadContent(t *testing.T) {
	t.Parallel()

	big := bytes.Repeat([]byte("0123456789"), 10_000)
	data := testutil.Zip(t,
		testutil.Deflated("big", big),
		testutil.Stored("small", []byte("tail")),
	)

	r := NewReader(bytes.NewReader(data))
	hdr, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "big", hdr.Name)
	assert.Equal(t, int64(-1), hdr.UncompressedSize)

	hdr, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "small", hdr.Name)
	assert.Equal(t, int64(4), hdr.UncompressedSize)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(body))

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderFillsSizesFromDescriptor(t *testing.T) {
	t.Parallel()

	payload := []byte("descriptor sized payload")
	data := testutil.Zip(t, testutil.Deflated("x", payload))

	r := NewReader(bytes.NewReader(data))
	hdr, err := r.Next()
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), hdr.UncompressedSize)
	assert.Positive(t, hdr.CompressedSize)
}

func TestReaderDetectsCorruption(t *testing.T) {
	t.Parallel()

	data := testutil.Zip(t, testutil.Stored("x", []byte("hello world")))
	corrupt := bytes.Clone(data)
	i := bytes.Index(corrupt, []byte("hello"))
	require.Positive(t, i)
	corrupt[i] = 'j'

	r := NewReader(bytes.NewReader(corrupt))
	_, err := r.Next()
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestReaderRejectsNonZip(t *testing.T) {
	t.Parallel()

	r := NewReader(bytes.NewReader([]byte("definitely not a zip file")))
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrFormat)

	_, err = NewReader(bytes.NewReader(nil)).Next()
	assert.ErrorIs(t, err, ErrFormat)
}

func TestReaderNestedStream(t *testing.T) {
	t.Parallel()

	inner := testutil.Zip(t, testutil.Deflated("deep.txt", []byte("deep")))
	outer := testutil.Zip(t, testutil.Deflated("inner.zip", inner))

	r := NewReader(bytes.NewReader(outer))
	_, err := r.Next()
	require.NoError(t, err)

	nested := NewReader(r)
	hdr, err := nested.Next()
	require.NoError(t, err)
	assert.Equal(t, "deep.txt", hdr.Name)
	body, err := io.ReadAll(nested)
	require.NoError(t, err)
	assert.Equal(t, "deep", string(body))
}
