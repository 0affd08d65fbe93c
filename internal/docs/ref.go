package docs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
)

const uriScheme = "sidebar://"

var ErrInvalidRef = errors.New("invalid page reference")

// PageRef identifies one module page of a crate's documentation.
type PageRef struct {
	Crate   string `json:"crate"`
	Version string `json:"version"`
	// Path is the module path, e.g. "clap::args".
	Path string `json:"path"`
}

func (r PageRef) String() string {
	return r.Crate + "@" + r.Version + "/" + r.Path
}

// Key identifies the page for caches and singleflight groups.
func (r PageRef) Key() string {
	return r.String()
}

// URI returns the sidebar:// URI of the page.
func (r PageRef) URI() string {
	return fmt.Sprintf("%s%s/%s/%s", uriScheme, r.Crate, r.Version, r.Path)
}

// ItemURI returns the URI of one entry on the page. The fragment mirrors the
// rustdoc file name stem, so entries of different kinds never collide.
func (r PageRef) ItemURI(kind sidebar.Kind, name string) string {
	return r.URI() + "#" + string(kind) + "." + name
}

// Segments splits the module path.
func (r PageRef) Segments() []string {
	return strings.Split(r.Path, "::")
}

// Child returns the page of a sub-module listed under "mod".
func (r PageRef) Child(name string) PageRef {
	return PageRef{Crate: r.Crate, Version: r.Version, Path: r.Path + "::" + name}
}

// WithDefaults fills in "latest" and the crate's root module.
func (r PageRef) WithDefaults() PageRef {
	if r.Version == "" {
		r.Version = "latest"
	}
	if r.Path == "" {
		r.Path = libName(r.Crate)
	}
	r.Path = normalizeModulePath(r.Path)
	return r
}

// ParsePageRef parses "crate[@version][/module::path]". The module path may
// also use slashes.
func ParsePageRef(s string) (PageRef, error) {
	s = strings.TrimSpace(s)
	head, path, _ := strings.Cut(s, "/")
	name, version, _ := strings.Cut(head, "@")
	if name == "" {
		return PageRef{}, fmt.Errorf("%w: %q: missing crate name", ErrInvalidRef, s)
	}
	return PageRef{Crate: name, Version: version, Path: path}.WithDefaults(), nil
}

// ParseURI parses a sidebar:// URI (the scheme is optional) and returns the
// page and the fragment, if any.
func ParseURI(uri string) (PageRef, string, error) {
	trimmed := strings.TrimPrefix(uri, uriScheme)
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return PageRef{}, "", fmt.Errorf("%w: %q: need crate/version/path", ErrInvalidRef, uri)
	}

	path := parts[2]
	var fragment string
	if idx := strings.LastIndex(path, "#"); idx >= 0 {
		fragment = path[idx+1:]
		path = path[:idx]
	}
	return PageRef{Crate: parts[0], Version: parts[1], Path: path}.WithDefaults(), fragment, nil
}

// SplitFragment splits an item fragment "struct.Arg" into kind and name.
func SplitFragment(fragment string) (sidebar.Kind, string, bool) {
	kind, name, ok := strings.Cut(fragment, ".")
	if !ok || kind == "" || name == "" {
		return "", "", false
	}
	return sidebar.Kind(kind), name, true
}

// libName converts a Cargo package name to its Rust library name.
func libName(crate string) string {
	return strings.ReplaceAll(crate, "-", "_")
}

func normalizeModulePath(p string) string {
	p = strings.Trim(p, "/")
	p = strings.ReplaceAll(p, "/", "::")
	return strings.Trim(p, ":")
}
