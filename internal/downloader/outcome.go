package downloader

import (
	"fmt"
	"time"
)

// Status is the terminal state of one transfer.
type Status int

const (
	// StatusSkipped means the destination already existed.
	StatusSkipped Status = iota
	// StatusFailed means the transfer could not be completed.
	StatusFailed
	// StatusCompleted means the body was written to the destination.
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is produced exactly once for every response that reached the
// transfer phase.
type Outcome struct {
	Target      Target
	Status      Status
	Destination string // empty when the failure happened before naming
	Bytes       int64
	SourceURL   string // final URL after redirects
	Err         error  // set for StatusFailed
	Duration    time.Duration
}

// DropReason says why a request never reached the transfer phase.
type DropReason int

const (
	// DropRequestFailed means the request could not be sent or answered.
	DropRequestFailed DropReason = iota
	// DropBadStatus means the server answered with something other than 200.
	DropBadStatus
)

func (r DropReason) String() string {
	switch r {
	case DropRequestFailed:
		return "request_failed"
	case DropBadStatus:
		return "bad_status"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Drop records a target removed by the filter stage.
type Drop struct {
	Target     Target
	Reason     DropReason
	StatusCode int   // set for DropBadStatus
	Err        error // set for DropRequestFailed
}

func (d Drop) String() string {
	if d.Reason == DropBadStatus {
		return fmt.Sprintf("status %d", d.StatusCode)
	}
	return fmt.Sprintf("request failed: %v", d.Err)
}

// Result aggregates a run.
type Result struct {
	Outcomes  []Outcome
	Dropped   []Drop
	StartedAt time.Time
	Elapsed   time.Duration
}

// Count returns the number of outcomes with status s.
func (r *Result) Count(s Status) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Bytes returns the number of bytes written by completed transfers.
func (r *Result) Bytes() int64 {
	if r == nil {
		return 0
	}
	var n int64
	for _, o := range r.Outcomes {
		if o.Status == StatusCompleted {
			n += o.Bytes
		}
	}
	return n
}
