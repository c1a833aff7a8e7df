// Package http provides the HTTP client used to fetch download targets.
//
// This package handles:
//   - Connection pooling for many simultaneous requests
//   - Optional proxy and user agent
//   - Following redirects (the final URL names the destination file)
//
// There are no retries and no default timeout: a failed request is reported
// to the caller once, and a stalled peer only stalls its own request.
//
// # Usage
//
//	client, err := http.NewClient(http.Options{
//	    MaxIdleConnsPerHost: 100,
//	    UserAgent:           "gulp/1.0",
//	})
//
//	resp, err := client.Get(ctx, url)
//	defer resp.Body.Close()
//	// resp.StatusCode, resp.Request.URL (post-redirect)
package http
