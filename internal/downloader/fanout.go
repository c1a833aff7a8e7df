package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ligustah/gulp/internal/store"
)

// ErrTransferPanic wraps a panic recovered from a single transfer.
var ErrTransferPanic = errors.New("downloader: transfer panicked")

// Getter issues GET requests. The internal/http Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// FetchOptions configures Fetch.
type FetchOptions struct {
	// Concurrency caps in-flight requests and running transfers.
	// 0 means unbounded: every target is requested at once.
	Concurrency int

	// Observer receives pipeline events. Optional.
	Observer Observer
}

// Fetch downloads every target into st and returns once all of them are done.
//
// It runs in three phases. All requests are dispatched concurrently and
// awaited. Responses that failed or are not 200 OK are dropped and recorded
// in Result.Dropped. Each remaining response then gets its own transfer,
// again concurrently. A failure or panic in one transfer never affects the
// others.
func Fetch(ctx context.Context, client Getter, st store.Store, targets []Target, opts FetchOptions) *Result {
	obs := observerOrNop(opts.Observer)
	res := &Result{StartedAt: time.Now()}
	if len(targets) == 0 {
		return res
	}

	g := newGate(opts.Concurrency)

	// Dispatch.
	type reply struct {
		resp *http.Response
		err  error
	}
	replies := make([]reply, len(targets))

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obs.RequestStarted(t)
			if err := g.acquire(ctx); err != nil {
				replies[i].err = err
				return
			}
			defer g.release()

			replies[i].resp, replies[i].err = safeGet(ctx, client, t)
		}()
	}
	wg.Wait()

	// Filter.
	retained := make([]int, 0, len(targets))
	for i, r := range replies {
		var d Drop
		switch {
		case r.err != nil:
			d = Drop{Target: targets[i], Reason: DropRequestFailed, Err: r.err}
		case r.resp.StatusCode != http.StatusOK:
			r.resp.Body.Close()
			d = Drop{Target: targets[i], Reason: DropBadStatus, StatusCode: r.resp.StatusCode}
		default:
			retained = append(retained, i)
			continue
		}
		res.Dropped = append(res.Dropped, d)
		obs.RequestDropped(d)
	}

	// Materialize.
	outcomes := make([]Outcome, len(retained))
	for j, i := range retained {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t, resp := targets[i], replies[i].resp

			if err := g.acquire(ctx); err != nil {
				resp.Body.Close()
				outcomes[j] = Outcome{Target: t, Status: StatusFailed, Err: err}
			} else {
				outcomes[j] = safeTransfer(ctx, st, t, resp)
				g.release()
			}
			obs.TransferDone(outcomes[j])
		}()
	}
	wg.Wait()

	res.Outcomes = outcomes
	return res
}

func safeGet(ctx context.Context, client Getter, t Target) (resp *http.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("get %s: panic: %v", t, r)
		}
	}()
	return client.Get(ctx, t.String())
}

func safeTransfer(ctx context.Context, st store.Store, t Target, resp *http.Response) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Target: t, Status: StatusFailed, Err: fmt.Errorf("%w: %v", ErrTransferPanic, r)}
		}
	}()
	return transfer(ctx, st, t, resp)
}

// gate bounds concurrency. The zero gate admits everyone.
type gate struct {
	sem *semaphore.Weighted
}

func newGate(n int) gate {
	if n <= 0 {
		return gate{}
	}
	return gate{sem: semaphore.NewWeighted(int64(n))}
}

func (g gate) acquire(ctx context.Context) error {
	if g.sem == nil {
		return nil
	}
	return g.sem.Acquire(ctx, 1)
}

func (g gate) release() {
	if g.sem != nil {
		g.sem.Release(1)
	}
}
