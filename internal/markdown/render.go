package markdown

import (
	"fmt"
	"sort"
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmhtml "github.com/gomarkdown/markdown/html"
	gmparser "github.com/gomarkdown/markdown/parser"

	"github.com/jcdickinson/sidebarfetch/internal/docs"
	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
)

func newParser() *gmparser.Parser {
	return gmparser.NewWithExtensions(gmparser.CommonExtensions | gmparser.Autolink)
}

// PlainText strips inline markdown from a one-line description, keeping the
// text of code spans and links.
func PlainText(src string) string {
	if src == "" {
		return ""
	}
	doc := gm.Parse([]byte(src), newParser())

	var b strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			if _, ok := node.(*ast.Paragraph); ok {
				b.WriteByte(' ')
			}
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Text:
			b.Write(n.Literal)
		case *ast.Code:
			b.Write(n.Literal)
		case *ast.Softbreak, *ast.Hardbreak:
			b.WriteByte(' ')
		}
		return ast.GoToNext
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// Snippet returns PlainText truncated to at most n runes.
func Snippet(src string, n int) string {
	text := []rune(PlainText(src))
	if n <= 0 || len(text) <= n {
		return string(text)
	}
	return strings.TrimSpace(string(text[:n-1])) + "…"
}

// RenderPage renders a sidebar table as a markdown document. Modules link to
// their own page URI, other entries to their item URI.
func RenderPage(ref docs.PageRef, baseURL string, items *sidebar.Items) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Module %s\n\n", ref.Path))

	for kind, entries := range items.All() {
		b.WriteString(fmt.Sprintf("## %s\n\n", kind.Title()))
		if len(entries) == 0 {
			b.WriteString("_none_\n\n")
			continue
		}
		for _, e := range entries {
			uri := ref.ItemURI(kind, e.Name)
			if kind == sidebar.KindMod {
				uri = ref.Child(e.Name).URI()
			}
			b.WriteString(fmt.Sprintf("- [`%s`](%s)", e.Name, uri))
			if e.Description != "" {
				b.WriteString(": " + e.Description)
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	meta := map[string]string{
		"crate":   ref.Crate,
		"version": ref.Version,
		"uri":     ref.URI(),
	}
	if baseURL != "" {
		meta["source"] = docs.PageURL(baseURL, ref)
	}
	return AddFrontMatter(b.String(), meta)
}

// ToHTML renders markdown (front matter excluded) as a standalone HTML
// fragment.
func ToHTML(src string) string {
	src = stripFrontMatter(src)
	renderer := gmhtml.NewRenderer(gmhtml.RendererOptions{Flags: gmhtml.CommonFlags})
	return string(gm.ToHTML([]byte(src), newParser(), renderer))
}

// AddFrontMatter prepends a YAML front-matter block listing page metadata.
func AddFrontMatter(src string, fields map[string]string) string {
	if len(fields) == 0 {
		return src
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("---\n")
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("%s: %s\n", k, fields[k]))
	}
	b.WriteString("---\n\n")
	b.WriteString(src)
	return b.String()
}

func stripFrontMatter(src string) string {
	if !strings.HasPrefix(src, "---\n") {
		return src
	}
	end := strings.Index(src[4:], "\n---\n")
	if end < 0 {
		return src
	}
	return strings.TrimLeft(src[4+end+5:], "\n")
}
