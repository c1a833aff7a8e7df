package downloader

import (
	"net/url"
	"path/filepath"
	"strings"
)

// FallbackName is used when a URL has no usable last path segment.
const FallbackName = "temp"

// FileName returns the last path segment of u, still percent-encoded. A URL
// without path segments, or whose path ends in "/", ".", or "..", yields
// FallbackName.
func FileName(u *url.URL) string {
	if u == nil {
		return FallbackName
	}
	p := u.EscapedPath()
	name := p[strings.LastIndexByte(p, '/')+1:]
	switch name {
	case "", ".", "..":
		return FallbackName
	}
	return name
}

// Resolve returns the destination path of u inside outputDir. It is a pure
// function and never touches the filesystem.
func Resolve(outputDir string, u *url.URL) string {
	return filepath.Join(outputDir, FileName(u))
}
