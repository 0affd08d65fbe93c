package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/jcdickinson/sidebarfetch/internal/config"
	"github.com/jcdickinson/sidebarfetch/internal/daemon"
	"github.com/jcdickinson/sidebarfetch/internal/docs"
	"github.com/jcdickinson/sidebarfetch/internal/rpc"
	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [crate[@version][/module::path] | docs.rs URL ...]",
	Short: "Index module sidebars from docs.rs",
	Long: `Fetch, validate, and index the sidebar-items.js of module pages. Version
defaults to "latest", the module path to the crate root.`,
	Example: `  sidebarfetch add clap
  sidebarfetch add clap@2.2.0/clap::args
  sidebarfetch add --recursive clap@2.2.0
  sidebarfetch add https://docs.rs/clap/2.2.0/clap/args/index.html`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAdd,
}

var addRecursive bool

func init() {
	addCmd.Flags().BoolVarP(&addRecursive, "recursive", "r", false, "also index every sub-module")
}

// parsePageArg accepts crate[@version][/path] or a docs.rs URL.
func parsePageArg(arg string) (docs.PageRef, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return docs.ParsePageURL(arg)
	}
	return docs.ParsePageRef(arg)
}

func runAdd(cmd *cobra.Command, args []string) {
	var pages []docs.PageRef
	for _, arg := range args {
		ref, err := parsePageArg(arg)
		if err != nil {
			log.Fatalf("%v", err)
		}
		pages = append(pages, ref)
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.AddPages(context.Background(), pages, addRecursive, func(msg string) {
		fmt.Printf("  %s\n", msg)
	})
	if err != nil {
		log.Fatalf("failed to add pages: %v", err)
	}

	for _, r := range resp.Results {
		ref := docs.PageRef{Crate: r.Crate, Version: r.Version, Path: r.Path}
		switch {
		case r.Error != "":
			fmt.Printf("  %s: error: %s\n", ref, r.Error)
		case r.Cached:
			fmt.Printf("  %s: %d entries (already indexed)\n", ref, r.Entries)
		default:
			fmt.Printf("  %s: %d entries indexed\n", ref, r.Entries)
		}
	}
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed sidebar entries",
	Example: `  sidebarfetch search Arg
  sidebarfetch search --crate clap --kind struct group
  sidebarfetch search --limit 5 "command line"`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

var (
	searchCrates []string
	searchKinds  []string
	searchLimit  int
)

func init() {
	searchCmd.Flags().StringSliceVar(&searchCrates, "crate", nil, "filter to specific crates (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchKinds, "kind", nil, "filter to item kinds, e.g. struct,fn (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	req := rpc.SearchRequest{
		Query:  args[0],
		Crates: searchCrates,
		Limit:  searchLimit,
	}
	for _, k := range searchKinds {
		req.Kinds = append(req.Kinds, sidebar.Kind(k))
	}

	resp, err := client.Search(context.Background(), req)
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return
	}

	for i, r := range resp.Results {
		fmt.Printf("%d. [%.2f] %s %s (%s@%s %s)\n", i+1, r.Score, r.Kind, r.Name, r.CrateName, r.CrateVersion, r.Page)
		fmt.Printf("   %s\n", r.URI)
		if r.Snippet != "" {
			fmt.Printf("   %s\n", r.Snippet)
		}
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show indexed pages and daemon state",
	Run:   runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	if len(resp.Pages) == 0 {
		fmt.Println("no pages indexed")
		return
	}

	for _, p := range resp.Pages {
		fmt.Printf("  %s@%s %s [%d entries]\n", p.Crate, p.Version, p.Path, p.Entries)
	}
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// A connection reset is expected; the daemon exits after responding.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}
