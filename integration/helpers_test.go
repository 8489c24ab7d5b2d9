//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/nest"
	"github.com/meigma/nest/internal/testutil"
)

// --- Server Container Setup ---

const webRoot = "/usr/share/nginx/html/"

var (
	serverOnce sync.Once
	serverURL  string
	serverErr  error
)

// getServer returns the base URL of the shared nginx container, starting it
// if needed. The container is shared across all tests for performance.
func getServer(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	serverOnce.Do(func() {
		serverURL, serverErr = startServerContainer(context.Background(), fixtures(tb))
	})

	if serverErr != nil {
		tb.Fatalf("start nginx container: %v", serverErr)
	}

	return serverURL
}

// startServerContainer starts nginx serving files and returns its base URL.
func startServerContainer(ctx context.Context, files map[string][]byte) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "nginx:1.27-alpine",
		ExposedPorts: []string{"80/tcp"},
		WaitingFor:   wait.ForHTTP("/").WithPort("80/tcp").WithStatusCodeMatcher(isOKStatus),
	}
	for name, data := range files {
		req.Files = append(req.Files, testcontainers.ContainerFile{
			Reader:            bytes.NewReader(data),
			ContainerFilePath: webRoot + name,
			FileMode:          0o644,
		})
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start nginx container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve nginx host: %w", err)
	}

	port, err := container.MappedPort(ctx, "80/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve nginx port: %w", err)
	}

	return fmt.Sprintf("http://%s:%s/", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Standard Test Fixtures ---

var innerFiles = map[string][]byte{
	"a.txt":          []byte("hello from a"),
	"dir/b.txt":      []byte("hello from b"),
	"dir/sub/c.json": []byte(`{"version": 1}`),
}

// fixtures returns the files served by nginx: a two-level archive, a jar
// carrying an index and the index's member jars.
func fixtures(tb testing.TB) map[string][]byte {
	inner := testutil.Zip(tb,
		testutil.Deflated("a.txt", innerFiles["a.txt"]),
		testutil.Deflated("dir/b.txt", innerFiles["dir/b.txt"]),
		testutil.Deflated("dir/sub/c.json", innerFiles["dir/sub/c.json"]),
	)
	outer := testutil.Zip(tb,
		testutil.Deflated("readme.md", []byte("# outer")),
		testutil.Stored("lib/stored.zip", inner),
		testutil.Deflated("lib/deflated.zip", inner),
	)
	index := "JarIndex-Version: 1.0\n\napp.jar\napp\n\nlib.jar\ncom/acme\n\n"
	return map[string][]byte{
		"index.html": []byte("ok"),
		"outer.zip":  outer,
		"app.jar": testutil.Zip(tb,
			testutil.Deflated("META-INF/INDEX.LIST", []byte(index)),
			testutil.Deflated("app/Main.class", []byte("main")),
		),
		"lib.jar": testutil.Zip(tb,
			testutil.Deflated("com/acme/Foo.class", []byte("foo")),
		),
	}
}

// --- Resolver Factory ---

func newResolver(tb testing.TB, opts ...nest.Option) *nest.Resolver {
	tb.Helper()
	r, err := nest.New(opts...)
	require.NoError(tb, err)
	tb.Cleanup(func() {
		require.NoError(tb, r.Close())
	})
	return r
}

func readAll(tb testing.TB, rc io.ReadCloser) string {
	tb.Helper()
	data, err := io.ReadAll(rc)
	require.NoError(tb, err)
	require.NoError(tb, rc.Close())
	return string(data)
}
