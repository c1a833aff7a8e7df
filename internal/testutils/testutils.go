//go:build integration

// Package testutils provides shared test infrastructure for integration tests.
package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
	minioAlias    = "minio"
)

// TestFile is a file served by the test HTTP server.
type TestFile struct {
	Name string
	Data []byte
}

// NewTestFile returns a file with size bytes of deterministic content. The
// pattern is offset by a hash of the name, so files of equal size differ.
func NewTestFile(name string, size int) TestFile {
	h := fnv.New32a()
	h.Write([]byte(name))
	offset := h.Sum32()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte((uint32(i) + offset) % 251)
	}
	return TestFile{Name: name, Data: data}
}

// StartFileServer serves files by name; unknown paths get 404 and
// /redirect/<name> answers 302 to /<name>. The server is closed when the
// test ends.
func StartFileServer(t *testing.T, files ...TestFile) *httptest.Server {
	t.Helper()

	byPath := make(map[string][]byte, len(files))
	for _, f := range files {
		byPath["/"+f.Name] = f.Data
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name, ok := strings.CutPrefix(r.URL.Path, "/redirect/"); ok {
			http.Redirect(w, r, "/"+name, http.StatusFound)
			return
		}

		data, ok := byPath[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

// Minio is a running MinIO server with one empty bucket.
type Minio struct {
	// BucketURL opens the bucket with gocloud's s3blob driver.
	BucketURL string
}

// StartMinio starts MinIO, creates bucket, and points the AWS credential
// variables at it. Containers are removed when the test ends.
func StartMinio(ctx context.Context, t *testing.T, bucket string) *Minio {
	t.Helper()

	netName := fmt.Sprintf("gulp-minio-%d", time.Now().UnixNano())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{Name: netName},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { network.Remove(context.Background()) })

	server, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          "minio/minio:latest",
			ExposedPorts:   []string{"9000/tcp"},
			Networks:       []string{netName},
			NetworkAliases: map[string][]string{netName: {minioAlias}},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Terminate(context.Background()); err != nil {
			t.Logf("terminate minio: %v", err)
		}
	})

	makeBucket(ctx, t, netName, bucket)

	endpoint, err := server.PortEndpoint(ctx, "9000/tcp", "http")
	if err != nil {
		t.Fatalf("minio endpoint: %v", err)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", minioUser)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioPassword)

	return &Minio{
		BucketURL: fmt.Sprintf("s3://%s?endpoint=%s&use_path_style=true&disable_https=true&region=us-east-1",
			bucket, endpoint),
	}
}

// makeBucket runs the mc client once on the shared network.
func makeBucket(ctx context.Context, t *testing.T, netName, bucket string) {
	t.Helper()

	script := fmt.Sprintf("mc alias set gulp http://%s:9000 %s %s && mc mb gulp/%s",
		minioAlias, minioUser, minioPassword, bucket)

	mc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      "minio/mc:latest",
			Networks:   []string{netName},
			Entrypoint: []string{"/bin/sh", "-c"},
			Cmd:        []string{script},
			WaitingFor: wait.ForExit(),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start mc: %v", err)
	}
	defer mc.Terminate(context.Background())

	state, err := mc.State(ctx)
	if err != nil {
		t.Fatalf("mc state: %v", err)
	}
	if state.ExitCode != 0 {
		t.Fatalf("mc mb %s exited with %d", bucket, state.ExitCode)
	}
}

// ReadObject returns the content of key in the bucket at bucketURL.
func ReadObject(ctx context.Context, t *testing.T, bucketURL, key string) []byte {
	t.Helper()

	bkt, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bkt.Close()

	r, err := bkt.NewReader(ctx, key, nil)
	if err != nil {
		t.Fatalf("open %s: %v", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return data
}

// EqualData reports the first differing offset, or -1 when a and b match.
func EqualData(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}
