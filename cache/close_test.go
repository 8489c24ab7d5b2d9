package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nest/archive"
	"github.com/meigma/nest/internal/testutil"
)

func TestGetDuringCloseMisses(t *testing.T) {
	t.Parallel()

	data := testutil.Zip(t, testutil.Deflated("a.txt", []byte("a")))
	c := New(func(_ context.Context, location string) (*archive.Handle, error) {
		src := testutil.NewMockByteSource(data)
		return archive.OpenZip(location, src, src.Size(), nil)
	})
	ctx := context.Background()

	old, err := c.Get(ctx, "a.zip", true)
	require.NoError(t, err)

	// Hold the map lock so the close is caught between marking the handle
	// closed and evicting it.
	c.mu.Lock()
	closed := make(chan error, 1)
	go func() { closed <- c.Close(old) }()
	require.Eventually(t, old.Closed, time.Second, time.Millisecond)
	c.mu.Unlock()

	h, err := c.Get(ctx, "a.zip", true)
	require.NoError(t, err)
	assert.NotSame(t, old, h)
	assert.False(t, h.Closed())
	require.NoError(t, <-closed)

	again, err := c.Get(ctx, "a.zip", true)
	require.NoError(t, err)
	assert.Same(t, h, again)
	assert.Equal(t, 1, c.Len())
}
