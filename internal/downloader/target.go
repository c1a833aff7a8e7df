package downloader

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrInvalidTarget is returned when a target URL cannot be used.
var ErrInvalidTarget = errors.New("downloader: invalid target URL")

// Target is one URL to download. It is immutable once created.
type Target struct {
	raw string
	url *url.URL
}

// NewTarget parses raw as an absolute http or https URL.
func NewTarget(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Target{}, fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidTarget, raw)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("%w: %q: missing host", ErrInvalidTarget, raw)
	}
	return Target{raw: raw, url: u}, nil
}

// ParseTargets creates a Target for every URL, failing on the first invalid one.
func ParseTargets(urls []string) ([]Target, error) {
	targets := make([]Target, 0, len(urls))
	for _, raw := range urls {
		t, err := NewTarget(raw)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// String returns the URL as given.
func (t Target) String() string {
	return t.raw
}

// URL returns a copy of the parsed URL.
func (t Target) URL() *url.URL {
	if t.url == nil {
		return &url.URL{}
	}
	u := *t.url
	return &u
}
