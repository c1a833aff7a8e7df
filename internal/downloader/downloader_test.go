package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gulphttp "github.com/ligustah/gulp/internal/http"
	"github.com/ligustah/gulp/internal/store"
)

func newClient(t *testing.T) *gulphttp.Client {
	t.Helper()
	c, err := gulphttp.NewClient(gulphttp.DefaultOptions())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchNoTargets(t *testing.T) {
	dir := t.TempDir()

	res := Fetch(context.Background(), newClient(t), store.NewLocal(dir), nil, FetchOptions{})

	if len(res.Outcomes) != 0 || len(res.Dropped) != 0 {
		t.Fatalf("expected empty result, got %d outcomes and %d drops", len(res.Outcomes), len(res.Dropped))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files, found %d", len(entries))
	}
}

func TestFetchAllCompleted(t *testing.T) {
	files := make(map[string][]byte)
	var urls []string
	server := newFileServer(t, files)
	for i := 0; i < 8; i++ {
		path := fmt.Sprintf("/files/file-%d.bin", i)
		files[path] = testData(1024 * (i + 1))
		urls = append(urls, server.URL+path)
	}
	dir := t.TempDir()

	res := Fetch(context.Background(), newClient(t), store.NewLocal(dir), mustTargets(t, urls...), FetchOptions{Concurrency: 3})

	if got := res.Count(StatusCompleted); got != len(urls) {
		t.Fatalf("expected %d completed, got %d", len(urls), got)
	}
	if len(res.Dropped) != 0 {
		t.Errorf("expected no drops, got %d", len(res.Dropped))
	}

	seen := make(map[string]bool)
	for _, o := range res.Outcomes {
		if seen[o.Destination] {
			t.Errorf("duplicate destination %s", o.Destination)
		}
		seen[o.Destination] = true

		got, err := os.ReadFile(o.Destination)
		if err != nil {
			t.Fatalf("read %s: %v", o.Destination, err)
		}
		want := files["/files/"+filepath.Base(o.Destination)]
		if len(got) == 0 || !bytes.Equal(got, want) {
			t.Errorf("content mismatch for %s", o.Destination)
		}
	}
	if res.Bytes() == 0 {
		t.Error("expected Bytes() > 0")
	}
}

func TestFetchDropsNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.bin":
			w.Write([]byte("ok"))
		case "/gone.bin":
			w.WriteHeader(http.StatusGone)
			w.Write([]byte("gone"))
		case "/partial.bin":
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte("partial"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()
	dir := t.TempDir()
	obs := &recordingObserver{}

	targets := mustTargets(t,
		server.URL+"/ok.bin",
		server.URL+"/gone.bin",
		server.URL+"/partial.bin",
		server.URL+"/missing.bin",
	)
	res := Fetch(context.Background(), newClient(t), store.NewLocal(dir), targets, FetchOptions{Observer: obs})

	if len(res.Outcomes) != 1 || res.Outcomes[0].Status != StatusCompleted {
		t.Fatalf("expected exactly one completed outcome, got %+v", res.Outcomes)
	}
	if len(res.Dropped) != 3 {
		t.Fatalf("expected 3 drops, got %d", len(res.Dropped))
	}
	codes := make(map[int]bool)
	for _, d := range res.Dropped {
		if d.Reason != DropBadStatus {
			t.Errorf("expected DropBadStatus, got %s", d.Reason)
		}
		codes[d.StatusCode] = true
	}
	for _, c := range []int{http.StatusGone, http.StatusPartialContent, http.StatusNotFound} {
		if !codes[c] {
			t.Errorf("expected a drop with status %d", c)
		}
	}
	if len(obs.dropped) != 3 {
		t.Errorf("observer saw %d drops, want 3", len(obs.dropped))
	}

	for _, name := range []string{"gone.bin", "partial.bin", "missing.bin"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should not have been written", name)
		}
	}
}

func TestFetchDropsRequestFailures(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	live := newFileServer(t, map[string][]byte{"/live.bin": []byte("alive")})
	dir := t.TempDir()

	targets := mustTargets(t, deadURL+"/dead.bin", live.URL+"/live.bin")
	res := Fetch(context.Background(), newClient(t), store.NewLocal(dir), targets, FetchOptions{})

	if len(res.Dropped) != 1 {
		t.Fatalf("expected 1 drop, got %d", len(res.Dropped))
	}
	d := res.Dropped[0]
	if d.Reason != DropRequestFailed || d.Err == nil {
		t.Errorf("expected request failure with error, got %+v", d)
	}
	if d.Target.String() != deadURL+"/dead.bin" {
		t.Errorf("unexpected dropped target %s", d.Target)
	}
	if res.Count(StatusCompleted) != 1 {
		t.Errorf("expected the live target to complete")
	}
}

func TestFetchUnboundedDispatchesEverything(t *testing.T) {
	const n = 6
	var arrived sync.WaitGroup
	arrived.Add(n)
	all := make(chan struct{})
	go func() {
		arrived.Wait()
		close(all)
	}()

	// Each handler waits until every request has arrived; that only happens
	// if all requests are in flight at the same time.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		select {
		case <-all:
			w.Write([]byte(r.URL.Path))
		case <-time.After(5 * time.Second):
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	var urls []string
	for i := 0; i < n; i++ {
		urls = append(urls, fmt.Sprintf("%s/f%d", server.URL, i))
	}

	res := Fetch(context.Background(), newClient(t), store.NewLocal(t.TempDir()), mustTargets(t, urls...), FetchOptions{Concurrency: 0})

	if got := res.Count(StatusCompleted); got != n {
		t.Fatalf("expected %d completed, got %d (dropped %d)", n, got, len(res.Dropped))
	}
}

func TestFetchConcurrencyLimit(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		w.Write([]byte("x"))
	}))
	defer server.Close()

	var urls []string
	for i := 0; i < 10; i++ {
		urls = append(urls, fmt.Sprintf("%s/f%d", server.URL, i))
	}

	res := Fetch(context.Background(), newClient(t), store.NewLocal(t.TempDir()), mustTargets(t, urls...), FetchOptions{Concurrency: 2})

	if got := res.Count(StatusCompleted); got != len(urls) {
		t.Fatalf("expected %d completed, got %d", len(urls), got)
	}
	if m := maxInFlight.Load(); m > 2 {
		t.Errorf("expected at most 2 concurrent requests, saw %d", m)
	}
}

func TestFetchSameNameCollision(t *testing.T) {
	server := newFileServer(t, map[string][]byte{
		"/a/same.bin": []byte("from a"),
		"/b/same.bin": []byte("from b"),
	})
	dir := t.TempDir()

	targets := mustTargets(t, server.URL+"/a/same.bin", server.URL+"/b/same.bin")
	res := Fetch(context.Background(), newClient(t), store.NewLocal(dir), targets, FetchOptions{})

	if res.Count(StatusCompleted) != 1 || res.Count(StatusSkipped) != 1 {
		t.Fatalf("expected one completed and one skipped, got %d/%d",
			res.Count(StatusCompleted), res.Count(StatusSkipped))
	}

	got, err := os.ReadFile(filepath.Join(dir, "same.bin"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "from a" && string(got) != "from b" {
		t.Errorf("unexpected content %q", got)
	}
}

func TestFetchContainsPanics(t *testing.T) {
	server := newFileServer(t, map[string][]byte{
		"/boom.bin": []byte("boom"),
		"/fine.bin": []byte("fine"),
	})

	var mu sync.Mutex
	written := make(map[string]*bytes.Buffer)
	st := &fakeStore{create: func(name string) (io.WriteCloser, error) {
		if name == "boom.bin" {
			panic("simulated crash")
		}
		mu.Lock()
		defer mu.Unlock()
		buf := &bytes.Buffer{}
		written[name] = buf
		return nopCloser{buf}, nil
	}}

	targets := mustTargets(t, server.URL+"/boom.bin", server.URL+"/fine.bin")
	res := Fetch(context.Background(), newClient(t), st, targets, FetchOptions{})

	if len(res.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(res.Outcomes))
	}
	for _, o := range res.Outcomes {
		switch o.Target.String() {
		case server.URL + "/boom.bin":
			if o.Status != StatusFailed || !errors.Is(o.Err, ErrTransferPanic) {
				t.Errorf("expected contained panic, got %s (%v)", o.Status, o.Err)
			}
		case server.URL + "/fine.bin":
			if o.Status != StatusCompleted {
				t.Errorf("sibling should complete, got %s (%v)", o.Status, o.Err)
			}
		}
	}
	if written["fine.bin"].String() != "fine" {
		t.Errorf("sibling content mismatch: %q", written["fine.bin"].String())
	}
}

func TestFetchCancelledContext(t *testing.T) {
	server := newFileServer(t, map[string][]byte{"/a.bin": []byte("a")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Fetch(ctx, newClient(t), store.NewLocal(t.TempDir()), mustTargets(t, server.URL+"/a.bin"), FetchOptions{Concurrency: 1})

	if len(res.Dropped) != 1 || res.Dropped[0].Reason != DropRequestFailed {
		t.Fatalf("expected the request to be dropped, got %+v", res.Dropped)
	}
}

func TestRunTwiceSkipsExisting(t *testing.T) {
	server := newFileServer(t, map[string][]byte{
		"/one.bin": []byte("one"),
		"/two.bin": []byte("two"),
	})
	dir := filepath.Join(t.TempDir(), "temp")
	targets := mustTargets(t, server.URL+"/one.bin", server.URL+"/two.bin")

	first, err := Run(context.Background(), targets, Options{Store: store.NewLocal(dir)})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Count(StatusCompleted) != 2 {
		t.Fatalf("expected 2 completed on first run, got %d", first.Count(StatusCompleted))
	}

	obs := &recordingObserver{}
	second, err := Run(context.Background(), targets, Options{Store: store.NewLocal(dir), Observer: obs})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Count(StatusSkipped) != 2 {
		t.Fatalf("expected 2 skipped on second run, got %d", second.Count(StatusSkipped))
	}
	if !obs.outputExisted {
		t.Error("expected the second run to report an existing output directory")
	}

	got, err := os.ReadFile(filepath.Join(dir, "one.bin"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "one" {
		t.Errorf("content changed: %q", got)
	}
}

func TestRunSetupFailureSendsNoRequests(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("x"))
	}))
	defer server.Close()
	targets := mustTargets(t, server.URL+"/a.bin")

	notDir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notDir, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		opts Options
	}{
		{"no store", Options{}},
		{"output is a file", Options{Store: store.NewLocal(notDir)}},
		{"bad proxy", Options{
			Store:       store.NewLocal(filepath.Join(t.TempDir(), "out")),
			HTTPOptions: gulphttp.Options{Proxy: "://bad"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(context.Background(), targets, tt.opts)
			if !errors.Is(err, ErrSetup) {
				t.Fatalf("expected ErrSetup, got %v", err)
			}
			if res != nil {
				t.Error("expected nil result on setup failure")
			}
		})
	}

	if n := hits.Load(); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestRunFinishedAfterAllOutcomes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.bin" {
			time.Sleep(50 * time.Millisecond)
		}
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	obs := &recordingObserver{}
	targets := mustTargets(t, server.URL+"/fast.bin", server.URL+"/slow.bin", server.URL+"/other.bin")
	res, err := Run(context.Background(), targets, Options{
		Store:    store.NewLocal(t.TempDir()),
		Observer: obs,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if obs.finished != 1 {
		t.Fatalf("expected RunFinished once, got %d", obs.finished)
	}
	if obs.doneAtFinish != len(res.Outcomes) {
		t.Errorf("RunFinished saw %d outcomes, want %d", obs.doneAtFinish, len(res.Outcomes))
	}
	if len(obs.started) != 3 {
		t.Errorf("expected 3 request notices, got %d", len(obs.started))
	}
	if res.Elapsed <= 0 {
		t.Error("expected positive elapsed time")
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
