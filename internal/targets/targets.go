// Package targets collects download URLs from list files and HTML pages.
package targets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrPageStatus is returned when an index page does not answer 200 OK.
var ErrPageStatus = errors.New("targets: unexpected page status")

// Getter issues GET requests.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// ReadList reads one URL per line. Blank lines and lines starting with #
// are skipped; surrounding whitespace is trimmed.
func ReadList(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	return urls, nil
}

// ReadListFile reads a list file. "-" reads standard input.
func ReadListFile(name string) ([]string, error) {
	if name == "-" {
		return ReadList(os.Stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open list: %w", err)
	}
	defer f.Close()
	return ReadList(f)
}

// PageOptions filters the links taken from a page.
type PageOptions struct {
	// Extensions keeps only links whose path ends in one of these
	// (case-insensitive, with or without the leading dot). Empty keeps all.
	Extensions []string
}

// FromPage fetches an HTML page and returns the absolute http(s) URLs of
// its links, in document order without duplicates. Relative links are
// resolved against the page's final URL, or its <base href> when present.
func FromPage(ctx context.Context, client Getter, pageURL string, opts PageOptions) ([]string, error) {
	resp, err := client.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: %d", ErrPageStatus, pageURL, resp.StatusCode)
	}

	base := resp.Request.URL
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return Links(doc, base, opts), nil
}

// Links extracts link targets from a parsed document.
func Links(doc *goquery.Document, base *url.URL, opts PageOptions) []string {
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = u
		}
	}

	exts := normalizeExtensions(opts.Extensions)
	seen := make(map[string]bool)
	var urls []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		u, err := base.Parse(href)
		if err != nil {
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		u.Fragment = ""
		if !matchExtension(u, exts) {
			return
		}

		abs := u.String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		urls = append(urls, abs)
	})

	return urls
}

func normalizeExtensions(exts []string) []string {
	var out []string
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func matchExtension(u *url.URL, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, e := range exts {
		if strings.HasSuffix(p, e) {
			return true
		}
	}
	return false
}
