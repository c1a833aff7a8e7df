package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ligustah/gulp/internal/downloader"
)

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often Start prints a status line.
	// Default: 5s
	UpdateInterval time.Duration

	// TotalTargets is the number of targets in the run (for display).
	TotalTargets int
}

// Reporter prints one human-readable line per pipeline event and, once
// started, a periodic status line. It is safe for concurrent use.
type Reporter struct {
	opts Options

	mu             sync.Mutex // serializes writes to Output
	inFlight       atomic.Int32
	completed      atomic.Int32
	skipped        atomic.Int32
	failed         atomic.Int32
	dropped        atomic.Int32
	completedBytes atomic.Int64
	startTime      time.Time
	lastUpdate     time.Time
	lastBytes      int64
	stopCh         chan struct{}
	doneCh         chan struct{}
	started        bool
	stopped        bool
}

var _ downloader.Observer = (*Reporter)(nil)

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 5 * time.Second
	}

	return &Reporter{
		opts:      opts,
		startTime: time.Now(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins printing periodic status lines.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	go r.updateLoop()
}

// Stop stops the periodic status lines. It is safe to call more than once.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)
	if started {
		<-r.doneCh
	}
}

// OutputReady reports where files are written.
func (r *Reporter) OutputReady(location string, existed bool) {
	if existed {
		r.printf("using existing path %s", location)
		return
	}
	r.printf("created %s", location)
}

// RequestStarted reports that a download began.
func (r *Reporter) RequestStarted(t downloader.Target) {
	r.inFlight.Add(1)
	r.printf("downloading %s", t)
}

// RequestDropped reports a request that was filtered out.
func (r *Reporter) RequestDropped(d downloader.Drop) {
	r.inFlight.Add(-1)
	r.dropped.Add(1)
	r.printf("dropped %s: %s", d.Target, d)
}

// TransferDone reports the outcome of one transfer.
func (r *Reporter) TransferDone(o downloader.Outcome) {
	r.inFlight.Add(-1)

	switch o.Status {
	case downloader.StatusSkipped:
		r.skipped.Add(1)
		r.printf("%s exists already, not downloading", o.Destination)
	case downloader.StatusFailed:
		r.failed.Add(1)
		r.printf("failed %s: %v", o.Target, o.Err)
	case downloader.StatusCompleted:
		r.completed.Add(1)
		r.completedBytes.Add(o.Bytes)
		r.printf("downloaded %s at %s (%s)", o.SourceURL, o.Destination, formatBytes(o.Bytes))
	}
}

// RunFinished prints the elapsed time and counts.
func (r *Reporter) RunFinished(res *downloader.Result) {
	r.printf("finished in %s | %d completed | %d skipped | %d failed | %d dropped | %s written",
		formatDuration(res.Elapsed),
		res.Count(downloader.StatusCompleted),
		res.Count(downloader.StatusSkipped),
		res.Count(downloader.StatusFailed),
		len(res.Dropped),
		formatBytes(res.Bytes()),
	)
}

func (r *Reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.opts.Output, "[gulp] "+format+"\n", args...)
}

// updateLoop periodically prints the status line.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current status.
func (r *Reporter) printProgress() {
	now := time.Now()
	written := r.completedBytes.Load()
	done := int(r.completed.Load() + r.skipped.Load() + r.failed.Load() + r.dropped.Load())

	r.mu.Lock()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(written-r.lastBytes) / elapsed
	r.lastUpdate = now
	r.lastBytes = written
	r.mu.Unlock()

	total := "?"
	if r.opts.TotalTargets > 0 {
		total = fmt.Sprint(r.opts.TotalTargets)
	}

	r.printf("Progress: %d/%s done | %d in-flight | %s written | Speed: %s/s",
		done,
		total,
		r.inFlight.Load(),
		formatBytes(written),
		formatBytes(int64(speed)),
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}
