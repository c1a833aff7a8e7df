// Package downloader runs the concurrent fetch-and-persist pipeline.
//
// A run takes a list of targets (URLs) and writes each response body to a
// store.Store under a name derived from the URL's last path segment.
//
// # Usage
//
//	targets, err := downloader.ParseTargets(urls)
//	res, err := downloader.Run(ctx, targets, downloader.Options{
//	    Store:       store.NewLocal("temp"),
//	    Concurrency: 16,
//	    Observer:    reporter,
//	})
//	// res.Outcomes, res.Dropped, res.Elapsed
//
// # Pipeline
//
// Fetch dispatches every request, waits for all of them, drops transport
// failures and non-200 responses (recorded in Result.Dropped), then runs one
// transfer per remaining response. A transfer creates its destination
// exclusively, reads the whole body into memory, and writes it out. Each
// transfer ends in exactly one Outcome: Skipped (destination exists), Failed,
// or Completed.
//
// # Concurrency
//
// Concurrency bounds in-flight requests and running transfers. Zero means
// unbounded. There are no timeouts or retries; cancel the context to abort.
package downloader
