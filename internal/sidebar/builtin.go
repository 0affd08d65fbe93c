package sidebar

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
)

//go:embed builtin
var builtinFS embed.FS

const builtinFile = "sidebar-items.js"

type builtinPage struct {
	source []byte
	items  *Items
}

var builtinPages = sync.OnceValue(func() map[string]builtinPage {
	pages := make(map[string]builtinPage)
	err := fs.WalkDir(builtinFS, "builtin", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != builtinFile {
			return err
		}
		src, err := builtinFS.ReadFile(p)
		if err != nil {
			return err
		}
		items, err := Parse(src)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		dir := strings.TrimPrefix(path.Dir(p), "builtin/")
		pages[strings.ReplaceAll(dir, "/", "::")] = builtinPage{source: src, items: items}
		return nil
	})
	if err != nil {
		panic(fmt.Sprintf("sidebar: loading embedded pages: %v", err))
	}
	return pages
})

// Builtin returns an embedded page table by module path ("clap::args" or
// "clap/args"). Every call returns the same immutable value.
func Builtin(modulePath string) (*Items, bool) {
	p, ok := builtinPages()[normalizePath(modulePath)]
	return p.items, ok
}

// BuiltinSource returns the embedded script a built-in page was loaded from.
func BuiltinSource(modulePath string) ([]byte, bool) {
	p, ok := builtinPages()[normalizePath(modulePath)]
	return slices.Clone(p.source), ok
}

// BuiltinPaths lists the embedded pages, sorted.
func BuiltinPaths() []string {
	pages := builtinPages()
	out := make([]string, 0, len(pages))
	for p := range pages {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// ClapArgs returns the sidebar table of clap's `args` module.
func ClapArgs() *Items {
	items, ok := Builtin("clap::args")
	if !ok {
		panic("sidebar: clap::args page not embedded")
	}
	return items
}

func normalizePath(p string) string {
	p = strings.Trim(p, "/")
	return strings.ReplaceAll(p, "/", "::")
}
