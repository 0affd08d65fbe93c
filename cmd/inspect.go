package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jcdickinson/sidebarfetch/internal/docs"
	md "github.com/jcdickinson/sidebarfetch/internal/markdown"
	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
	"github.com/spf13/cobra"
)

const builtinPrefix = "builtin:"

var inspectCmd = &cobra.Command{
	Use:   "inspect [file | - | builtin:module::path]",
	Short: "Load, validate and render a sidebar-items.js without the daemon",
	Long: `Parse a sidebar script from a file, stdin ("-") or the built-in pages, check
it and print it. Defaults to the built-in clap::args page.`,
	Example: `  sidebarfetch inspect
  sidebarfetch inspect --format json target/doc/mycrate/sidebar-items.js
  curl -s https://docs.rs/clap/2.2.0/clap/args/sidebar-items.js | sidebarfetch inspect --strict -
  sidebarfetch inspect --format markdown --page clap@2.2.0/clap::args builtin:clap::args`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		input := builtinPrefix + "clap::args"
		if len(args) == 1 {
			input = args[0]
		}
		return inspect(cmd.OutOrStdout(), cmd.InOrStdin(), input, inspectOpts)
	},
}

type inspectOptions struct {
	Format              string
	Page                string
	Strict              bool
	RequireDescriptions bool
}

var inspectOpts inspectOptions

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectOpts.Format, "format", "table", "output format: table, json, js, window, source, markdown, html")
	f.StringVar(&inspectOpts.Page, "page", "", "page the script belongs to, crate[@version]/module::path (for markdown links)")
	f.BoolVar(&inspectOpts.Strict, "strict", false, "reject item kinds rustdoc does not emit")
	f.BoolVar(&inspectOpts.RequireDescriptions, "require-descriptions", false, "reject entries with an empty summary")
}

// loadInput reads a sidebar script and names the page it came from.
func loadInput(input string, stdin io.Reader) ([]byte, string, error) {
	switch {
	case input == "-":
		src, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		return src, "", nil
	case strings.HasPrefix(input, builtinPrefix):
		path := strings.TrimPrefix(input, builtinPrefix)
		src, ok := sidebar.BuiltinSource(path)
		if !ok {
			return nil, "", fmt.Errorf("no built-in page %q (have %s)", path, strings.Join(sidebar.BuiltinPaths(), ", "))
		}
		return src, path, nil
	default:
		src, err := os.ReadFile(input)
		if err != nil {
			return nil, "", err
		}
		return src, "", nil
	}
}

// pageRef picks the page used for markdown links: the --page flag, else the
// built-in module path, else a placeholder.
func pageRef(flag, modulePath string) (docs.PageRef, error) {
	if flag != "" {
		return docs.ParsePageRef(flag)
	}
	if modulePath != "" {
		crate, _, _ := strings.Cut(modulePath, "::")
		return docs.PageRef{Crate: crate, Path: modulePath}.WithDefaults(), nil
	}
	return docs.PageRef{Crate: "local", Path: "local"}.WithDefaults(), nil
}

func inspect(w io.Writer, stdin io.Reader, input string, opts inspectOptions) error {
	src, modulePath, err := loadInput(input, stdin)
	if err != nil {
		return err
	}

	items, format, err := sidebar.ParseFormat(src)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", input, err)
	}
	if err := sidebar.Validate(items, sidebar.Options{
		Strict:              opts.Strict,
		RequireDescriptions: opts.RequireDescriptions,
	}); err != nil {
		return fmt.Errorf("validating %s: %w", input, err)
	}

	switch opts.Format {
	case "table", "":
		return writeTable(w, items, format)
	case "json":
		raw, err := items.MarshalJSON()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err = w.Write(buf.Bytes())
		return err
	case "js":
		_, err := w.Write(sidebar.Render(items, sidebar.FormatInit))
		return err
	case "window":
		_, err := w.Write(sidebar.Render(items, sidebar.FormatWindow))
		return err
	case "source":
		_, err := w.Write(sidebar.Render(items, format))
		return err
	case "markdown", "html":
		ref, err := pageRef(opts.Page, modulePath)
		if err != nil {
			return err
		}
		out := md.RenderPage(ref, "", items)
		if opts.Format == "html" {
			out = md.ToHTML(out)
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("unknown format %q", opts.Format)
	}
}

func writeTable(w io.Writer, items *sidebar.Items, format sidebar.Format) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tDESCRIPTION")
	for kind, entries := range items.All() {
		if len(entries) == 0 {
			fmt.Fprintf(tw, "%s\t-\t\n", kind)
			continue
		}
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", kind, e.Name, md.Snippet(e.Description, 80))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d entries in %d kinds (%s format)\n", items.Len(), len(items.Kinds()), format)
	return err
}
