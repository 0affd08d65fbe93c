package markdown

import (
	"strings"
	"testing"

	"github.com/jcdickinson/sidebarfetch/internal/docs"
	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
)

func TestPlainText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Plain words.", "Plain words."},
		{"`ArgGroup`s are a family", "ArgGroups are a family"},
		{"using the `App::get_matches` family", "using the App::get_matches family"},
		{"See [the docs](https://example.com) now.", "See the docs now."},
		{"**bold** and *em*", "bold and em"},
	}
	for _, tt := range tests {
		if got := PlainText(tt.in); got != tt.want {
			t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSnippet(t *testing.T) {
	t.Parallel()
	got := Snippet("The abstract representation of a command line subcommand.", 20)
	if len([]rune(got)) > 20 {
		t.Errorf("snippet too long: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis, got %q", got)
	}
	if got := Snippet("short", 20); got != "short" {
		t.Errorf("got %q", got)
	}
}

func TestRenderPage(t *testing.T) {
	t.Parallel()
	ref := docs.PageRef{Crate: "clap", Version: "2.2.0", Path: "clap::args"}
	out := RenderPage(ref, "https://docs.rs", sidebar.ClapArgs())

	for _, want := range []string{
		"---\ncrate: clap\nsource: https://docs.rs/clap/2.2.0/clap/args/sidebar-items.js\nuri: sidebar://clap/2.2.0/clap::args\nversion: 2.2.0\n---\n\n",
		"# Module clap::args\n",
		"## Modules\n\n- [`any_arg`](sidebar://clap/2.2.0/clap::args::any_arg)\n- [`settings`](sidebar://clap/2.2.0/clap::args::settings)\n",
		"## Structs\n\n- [`Arg`](sidebar://clap/2.2.0/clap::args#struct.Arg): The abstract representation",
		"- [`SubCommand`](sidebar://clap/2.2.0/clap::args#struct.SubCommand): The abstract representation of a command line subcommand.\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered page missing %q:\n%s", want, out)
		}
	}

	if strings.Index(out, "## Modules") > strings.Index(out, "## Structs") {
		t.Error("kinds rendered out of order")
	}
}

func TestRenderPage_EmptyKind(t *testing.T) {
	t.Parallel()
	items, err := sidebar.Parse([]byte(`{"fn":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	out := RenderPage(docs.PageRef{Crate: "x", Version: "1", Path: "x"}, "", items)
	if !strings.Contains(out, "## Functions\n\n_none_") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "source:") {
		t.Error("source should be omitted without a base URL")
	}
}

func TestToHTML(t *testing.T) {
	t.Parallel()
	ref := docs.PageRef{Crate: "clap", Version: "2.2.0", Path: "clap::args"}
	html := ToHTML(RenderPage(ref, "", sidebar.ClapArgs()))

	if strings.Contains(html, "crate: clap") {
		t.Error("front matter leaked into HTML")
	}
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "<code>ArgGroup</code>") {
		t.Errorf("unexpected HTML:\n%s", html)
	}
}

func TestAddFrontMatter(t *testing.T) {
	t.Parallel()
	got := AddFrontMatter("body", map[string]string{"b": "2", "a": "1"})
	want := "---\na: 1\nb: 2\n---\n\nbody"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := AddFrontMatter("body", nil); got != "body" {
		t.Errorf("expected unchanged, got %q", got)
	}
}
