package rpc

import (
	"github.com/jcdickinson/sidebarfetch/internal/docs"
	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
)

// AddPagesRequest is the request body for POST /add-pages.
type AddPagesRequest struct {
	Pages []docs.PageRef `json:"pages"`
	// Recursive also indexes every sub-module listed under "mod".
	Recursive bool `json:"recursive,omitempty"`
}

// PageResult reports the outcome of indexing one page.
type PageResult struct {
	Crate   string `json:"crate"`
	Version string `json:"version"`
	Path    string `json:"path"`
	Entries int    `json:"entries"`
	Cached  bool   `json:"cached,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AddPagesResponse is the response body for POST /add-pages.
type AddPagesResponse struct {
	Results []PageResult `json:"results"`
}

// ProgressLine is a single line of NDJSON streamed from the add-pages endpoint.
type ProgressLine struct {
	Type    string      `json:"type"` // "progress" or "result"
	Message string      `json:"message,omitempty"`
	Result  *PageResult `json:"result,omitempty"`
}

// GetPageRequest is the request body for POST /get-page.
type GetPageRequest struct {
	Page docs.PageRef `json:"page"`
	// Fragment selects one entry, e.g. "struct.Arg".
	Fragment string `json:"fragment,omitempty"`
}

// GetPageResponse is the response body for POST /get-page.
type GetPageResponse struct {
	Page     docs.PageRef   `json:"page"`
	Items    *sidebar.Items `json:"items"`
	Markdown string         `json:"markdown"`
}

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query  string         `json:"query"`
	Crates []string       `json:"crates,omitempty"`
	Kinds  []sidebar.Kind `json:"kinds,omitempty"`
	Limit  int            `json:"limit,omitempty"`
}

// SearchResponse is the response body for POST /search.
type SearchResponse struct {
	Results []EntryResult `json:"results"`
}

type EntryResult struct {
	URI          string       `json:"uri"`
	URL          string       `json:"url"`
	CrateName    string       `json:"crate_name"`
	CrateVersion string       `json:"crate_version"`
	Page         string       `json:"page"`
	Kind         sidebar.Kind `json:"kind"`
	Name         string       `json:"name"`
	Score        float32      `json:"score"`
	Snippet      string       `json:"snippet"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Pages []PageStatus `json:"pages"`
}

type PageStatus struct {
	Crate   string `json:"crate"`
	Version string `json:"version"`
	Path    string `json:"path"`
	Entries int    `json:"entries"`
}
