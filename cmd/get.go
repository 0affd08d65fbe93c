package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/jcdickinson/sidebarfetch/internal/docs"
	"github.com/jcdickinson/sidebarfetch/internal/rpc"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <sidebar://crate/version/path | crate[@version][/path]>",
	Short: "Read a module page by URI",
	Example: `  sidebarfetch get sidebar://clap/2.2.0/clap::args
  sidebarfetch get 'sidebar://clap/latest/clap::args#struct.ArgGroup'
  sidebarfetch get clap@2.2.0/clap::args`,
	Args: cobra.ExactArgs(1),
	Run:  runGet,
}

var getJSON bool

func init() {
	getCmd.Flags().BoolVar(&getJSON, "json", false, "print the item table as JSON instead of markdown")
}

func runGet(cmd *cobra.Command, args []string) {
	var req rpc.GetPageRequest
	if strings.HasPrefix(args[0], "sidebar://") {
		ref, fragment, err := docs.ParseURI(args[0])
		if err != nil {
			log.Fatalf("%v", err)
		}
		req = rpc.GetPageRequest{Page: ref, Fragment: fragment}
	} else {
		arg, fragment, _ := strings.Cut(args[0], "#")
		ref, err := parsePageArg(arg)
		if err != nil {
			log.Fatalf("%v", err)
		}
		req = rpc.GetPageRequest{Page: ref, Fragment: fragment}
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.GetPage(context.Background(), req)
	if err != nil {
		log.Fatalf("get page failed: %v", err)
	}

	if getJSON {
		out, _ := json.MarshalIndent(resp.Items, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Print(resp.Markdown)
}
