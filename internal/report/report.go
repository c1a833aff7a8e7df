// Package report builds the machine-readable summary of a run.
package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ligustah/gulp/internal/downloader"
)

// StatusDropped marks items removed before the transfer phase.
const StatusDropped = "dropped"

// Report is the JSON document written by -report.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	Output     string    `json:"output"`
	Summary    Summary   `json:"summary"`
	Items      []Item    `json:"items"`
}

// Summary counts items by status.
type Summary struct {
	Targets   int   `json:"targets"`
	Completed int   `json:"completed"`
	Skipped   int   `json:"skipped"`
	Failed    int   `json:"failed"`
	Dropped   int   `json:"dropped"`
	Bytes     int64 `json:"bytes"`
}

// Item is one target's result.
type Item struct {
	URL         string `json:"url"`
	Status      string `json:"status"`
	Destination string `json:"destination,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	Bytes       int64  `json:"bytes,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	Reason      string `json:"reason,omitempty"`
	StatusCode  int    `json:"status_code,omitempty"`
	Error       string `json:"error,omitempty"`
}

// FromResult converts a run result. Items are sorted by URL.
func FromResult(res *downloader.Result, output string) *Report {
	r := &Report{
		RunID:  newRunID(),
		Output: output,
		Items:  []Item{},
	}
	if res == nil {
		return r
	}

	r.StartedAt = res.StartedAt.UTC()
	r.FinishedAt = res.StartedAt.Add(res.Elapsed).UTC()
	r.ElapsedMS = res.Elapsed.Milliseconds()

	for _, o := range res.Outcomes {
		item := Item{
			URL:         o.Target.String(),
			Status:      o.Status.String(),
			Destination: o.Destination,
			SourceURL:   o.SourceURL,
			Bytes:       o.Bytes,
			DurationMS:  o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			item.Error = o.Err.Error()
		}
		r.Items = append(r.Items, item)

		switch o.Status {
		case downloader.StatusCompleted:
			r.Summary.Completed++
			r.Summary.Bytes += o.Bytes
		case downloader.StatusSkipped:
			r.Summary.Skipped++
		case downloader.StatusFailed:
			r.Summary.Failed++
		}
	}

	for _, d := range res.Dropped {
		item := Item{
			URL:        d.Target.String(),
			Status:     StatusDropped,
			Reason:     d.Reason.String(),
			StatusCode: d.StatusCode,
		}
		if d.Err != nil {
			item.Error = d.Err.Error()
		}
		r.Items = append(r.Items, item)
	}
	r.Summary.Dropped = len(res.Dropped)
	r.Summary.Targets = len(r.Items)

	slices.SortStableFunc(r.Items, func(a, b Item) int {
		return cmp.Compare(a.URL, b.URL)
	})

	return r
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Write stores the report as indented JSON. The file is written to a
// temporary name in the same directory and renamed into place.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".gulp-report-*")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// Read loads a report written by Write.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
