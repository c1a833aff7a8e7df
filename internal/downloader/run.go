package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	gulphttp "github.com/ligustah/gulp/internal/http"
	"github.com/ligustah/gulp/internal/store"
)

// ErrSetup is wrapped by every error that aborts a run before any request
// is sent.
var ErrSetup = errors.New("downloader: setup failed")

// Options configures a run.
type Options struct {
	// Store receives the downloaded files. Required.
	Store store.Store

	// HTTPOptions configures the HTTP client built for the run.
	HTTPOptions gulphttp.Options

	// Client overrides the client built from HTTPOptions.
	Client Getter

	// Concurrency caps in-flight requests and transfers. 0 means unbounded.
	Concurrency int

	// Observer receives progress events. Optional.
	Observer Observer
}

// Run prepares the store, builds the HTTP client, and fetches every target.
//
// Setup failures are returned wrapped in ErrSetup and happen before any
// network activity. Individual transfer failures are never returned as
// errors; they are recorded in the Result. Elapsed time is measured from
// the end of setup.
func Run(ctx context.Context, targets []Target, opts Options) (*Result, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: no store configured", ErrSetup)
	}
	obs := observerOrNop(opts.Observer)

	existed, err := opts.Store.Prepare(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	obs.OutputReady(opts.Store.Location(""), existed)

	client := opts.Client
	if client == nil {
		c, err := gulphttp.NewClient(opts.HTTPOptions)
		if err != nil {
			return nil, fmt.Errorf("%w: build client: %w", ErrSetup, err)
		}
		client = c
	}

	start := time.Now()
	res := Fetch(ctx, client, opts.Store, targets, FetchOptions{
		Concurrency: opts.Concurrency,
		Observer:    obs,
	})
	res.StartedAt = start
	res.Elapsed = time.Since(start)

	obs.RunFinished(res)
	return res, nil
}
