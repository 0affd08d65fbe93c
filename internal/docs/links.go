package docs

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
)

// ParsePageURL converts a docs.rs URL to the page it belongs to. Module
// index pages, item pages and sidebar scripts are all accepted; an item page
// resolves to the module that lists it.
func ParsePageURL(rawURL string) (PageRef, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PageRef{}, fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}

	path := strings.Trim(u.Path, "/")

	// Skip /crate/ info pages
	if strings.HasPrefix(path, "crate/") {
		return PageRef{}, fmt.Errorf("%w: %q is a crate info page", ErrInvalidRef, rawURL)
	}

	parts := strings.SplitN(path, "/", 3)
	if len(parts) < 3 {
		return PageRef{}, fmt.Errorf("%w: %q has no module path", ErrInvalidRef, rawURL)
	}

	crateName := parts[0]
	version := parts[1]
	segments := strings.Split(parts[2], "/")

	// A target triple may precede the module path; library names never
	// contain a hyphen.
	if len(segments) > 1 && strings.Contains(segments[0], "-") {
		segments = segments[1:]
	}

	last := segments[len(segments)-1]
	if strings.HasSuffix(last, ".html") || strings.HasSuffix(last, ".js") {
		segments = segments[:len(segments)-1]
	}
	if len(segments) == 0 {
		return PageRef{}, fmt.Errorf("%w: %q has no module path", ErrInvalidRef, rawURL)
	}

	return PageRef{
		Crate:   crateName,
		Version: version,
		Path:    strings.Join(segments, "::"),
	}, nil
}

// PageURL returns the docs.rs location of the page's sidebar script.
func PageURL(baseURL string, ref PageRef) string {
	return fmt.Sprintf("%s/%s/%s/%s/sidebar-items.js",
		strings.TrimSuffix(baseURL, "/"), ref.Crate, ref.Version, strings.Join(ref.Segments(), "/"))
}

// ItemURL returns the docs.rs page of one sidebar entry.
func ItemURL(baseURL string, ref PageRef, kind sidebar.Kind, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		strings.TrimSuffix(baseURL, "/"), ref.Crate, ref.Version, strings.Join(ref.Segments(), "/"), kind.Href(name))
}
