package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jcdickinson/sidebarfetch/internal/config"
	"github.com/jcdickinson/sidebarfetch/internal/docs"
	"github.com/jcdickinson/sidebarfetch/internal/rpc"
	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

// Backend is the daemon API the MCP tools call.
type Backend interface {
	AddPages(ctx context.Context, pages []docs.PageRef, recursive bool, onProgress func(string)) (*rpc.AddPagesResponse, error)
	Search(ctx context.Context, req rpc.SearchRequest) (*rpc.SearchResponse, error)
	GetPage(ctx context.Context, req rpc.GetPageRequest) (*rpc.GetPageResponse, error)
}

type Server struct {
	mcpServer *server.MCPServer
	client    Backend
	search    config.SearchConfig
}

// NewServer exposes client over MCP. Searches that name no limit or kinds
// fall back to cfg.Search.
func NewServer(client Backend, cfg *config.Config) *Server {
	s := &Server{client: client, search: cfg.Search}

	mcpServer := server.NewMCPServer(
		"sidebarfetch",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("add_pages",
			mcp.WithDescription("Fetch and index rustdoc module sidebars from docs.rs. Synchronous: returns when every page is indexed. Version defaults to \"latest\", path to the crate root."),
			addPagesSchema,
			mcp.WithBoolean("recursive",
				mcp.Description("Also index every sub-module listed under \"mod\""),
			),
		),
		s.handleAddPages,
	)

	mcpServer.AddTool(
		mcp.NewTool("search_items",
			mcp.WithDescription("Search indexed sidebar entries by name and summary. Returns URIs that can be read as resources. Use `crates` and `kinds` to narrow the search."),
			mcp.WithString("query",
				mcp.Description("Item name or words from its summary"),
				mcp.Required(),
			),
			mcp.WithArray("crates",
				mcp.Description("Optional list of crate names to search within"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithArray("kinds",
				mcp.Description("Optional list of item kinds, e.g. \"struct\", \"fn\", \"mod\""),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithNumber("limit",
				mcp.Description(fmt.Sprintf("Maximum number of results (default %d)", s.search.Limit)),
			),
		),
		s.handleSearchItems,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_page",
			mcp.WithDescription("Read a module page as markdown, fetching it first if it is not indexed. Accepts a sidebar:// URI or crate[@version][/module::path]."),
			mcp.WithString("page",
				mcp.Description("sidebar://crate/version/module::path[#kind.Name] or crate[@version][/path]"),
				mcp.Required(),
			),
		),
		s.handleGetPage,
	)
}

func addPagesSchema(t *mcp.Tool) {
	t.InputSchema.Required = append(t.InputSchema.Required, "pages")
	t.InputSchema.Properties["pages"] = map[string]any{
		"type":        "array",
		"description": "Module pages to index",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"crate": map[string]any{
					"type":        "string",
					"description": "Crate name (e.g., \"clap\")",
				},
				"version": map[string]any{
					"type":        "string",
					"description": "Version (default: \"latest\")",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Module path (e.g., \"clap::args\"; default: crate root)",
				},
			},
			"required": []string{"crate"},
		},
	}
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"sidebar://{crate}/{version}/{path}",
			"Rustdoc module sidebar",
			mcp.WithTemplateDescription("Read the item table of a module page. Search results return these URIs; a #kind.Name fragment selects one entry."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

func (s *Server) handleAddPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	pagesRaw, ok := args["pages"]
	if !ok {
		return mcp.NewToolResultError("missing required parameter: pages"), nil
	}

	pagesJSON, err := json.Marshal(pagesRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid pages parameter: %v", err)), nil
	}

	var pages []docs.PageRef
	if err := json.Unmarshal(pagesJSON, &pages); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid pages format: %v", err)), nil
	}
	for i, p := range pages {
		if p.Crate == "" {
			return mcp.NewToolResultError(fmt.Sprintf("pages[%d]: missing crate", i)), nil
		}
	}

	resp, err := s.client.AddPages(ctx, pages, req.GetBool("recursive", false), nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add pages: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp.Results, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleSearchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	searchReq := rpc.SearchRequest{
		Query:  query,
		Crates: req.GetStringSlice("crates", nil),
		Limit:  req.GetInt("limit", s.search.Limit),
	}
	for _, k := range req.GetStringSlice("kinds", nil) {
		searchReq.Kinds = append(searchReq.Kinds, sidebar.Kind(k))
	}
	if len(searchReq.Kinds) == 0 {
		searchReq.Kinds = s.search.Kinds
	}

	resp, err := s.client.Search(ctx, searchReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp.Results, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleGetPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := req.GetString("page", "")
	if page == "" {
		return mcp.NewToolResultError("missing required parameter: page"), nil
	}

	getReq, err := parsePageArg(page)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.client.GetPage(ctx, getReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("getting page: %v", err)), nil
	}
	return mcp.NewToolResultText(resp.Markdown), nil
}

// parsePageArg accepts a sidebar:// URI or the crate[@version][/path]
// shorthand.
func parsePageArg(arg string) (rpc.GetPageRequest, error) {
	if strings.HasPrefix(arg, "sidebar://") {
		ref, fragment, err := docs.ParseURI(arg)
		if err != nil {
			return rpc.GetPageRequest{}, err
		}
		return rpc.GetPageRequest{Page: ref, Fragment: fragment}, nil
	}

	arg, fragment, _ := strings.Cut(arg, "#")
	ref, err := docs.ParsePageRef(arg)
	if err != nil {
		return rpc.GetPageRequest{}, err
	}
	return rpc.GetPageRequest{Page: ref, Fragment: fragment}, nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	ref, fragment, err := docs.ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid resource URI: %w", err)
	}

	resp, err := s.client.GetPage(ctx, rpc.GetPageRequest{Page: ref, Fragment: fragment})
	if err != nil {
		return nil, fmt.Errorf("getting page: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     resp.Markdown,
		},
	}, nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) Shutdown(_ context.Context) error {
	return nil
}
