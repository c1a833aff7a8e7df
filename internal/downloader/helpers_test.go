package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/ligustah/gulp/internal/store"
)

// newFileServer serves files by path. Unknown paths get 404.
func newFileServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
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

func testData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

func mustTargets(t *testing.T, urls ...string) []Target {
	t.Helper()
	targets, err := ParseTargets(urls)
	if err != nil {
		t.Fatalf("ParseTargets: %v", err)
	}
	return targets
}

// get fetches url with the default client for tests that call transfer directly.
func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

type fakeStore struct {
	create func(name string) (io.WriteCloser, error)
}

func (s *fakeStore) Prepare(ctx context.Context) (bool, error) { return false, nil }
func (s *fakeStore) Location(name string) string               { return "fake://" + name }
func (s *fakeStore) Close() error                              { return nil }
func (s *fakeStore) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return s.create(name)
}

var _ store.Store = (*fakeStore)(nil)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }
func (failingWriter) Close() error                { return nil }

type recordingObserver struct {
	mu            sync.Mutex
	outputReady   int
	started       []string
	dropped       []Drop
	done          []Outcome
	doneAtFinish  int
	finished      int
	outputExisted bool
}

func (o *recordingObserver) OutputReady(location string, existed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outputReady++
	o.outputExisted = existed
}

func (o *recordingObserver) RequestStarted(t Target) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, t.String())
}

func (o *recordingObserver) RequestDropped(d Drop) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped = append(o.dropped, d)
}

func (o *recordingObserver) TransferDone(out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = append(o.done, out)
}

func (o *recordingObserver) RunFinished(res *Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished++
	o.doneAtFinish = len(o.done)
}
