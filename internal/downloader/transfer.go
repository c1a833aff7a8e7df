package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ligustah/gulp/internal/store"
)

// transfer persists one retained response into st. The response body is
// always closed.
//
// The destination is created before the body is read, so a body that fails
// mid-read leaves an empty destination behind.
func transfer(ctx context.Context, st store.Store, t Target, resp *http.Response) Outcome {
	defer resp.Body.Close()
	start := time.Now()

	// Name from the final URL: redirects change the path segments.
	final := t.URL()
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	name := FileName(final)

	out := Outcome{
		Target:      t,
		Destination: st.Location(name),
		SourceURL:   final.String(),
	}
	done := func(s Status, err error) Outcome {
		out.Status = s
		out.Err = err
		out.Duration = time.Since(start)
		return out
	}

	w, err := st.Create(ctx, name)
	if errors.Is(err, store.ErrExist) {
		return done(StatusSkipped, nil)
	}
	if err != nil {
		return done(StatusFailed, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		w.Close()
		return done(StatusFailed, fmt.Errorf("read body: %w", err))
	}

	n, err := io.Copy(w, bytes.NewReader(body))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	out.Bytes = n
	if err != nil {
		return done(StatusFailed, fmt.Errorf("write %s: %w", out.Destination, err))
	}

	return done(StatusCompleted, nil)
}
