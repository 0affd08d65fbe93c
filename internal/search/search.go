package search

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jcdickinson/sidebarfetch/internal/db"
	"github.com/jcdickinson/sidebarfetch/internal/docs"
	md "github.com/jcdickinson/sidebarfetch/internal/markdown"
	"github.com/jcdickinson/sidebarfetch/internal/rpc"
	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
)

const (
	scoreExact           = 1.0
	scoreExactFold       = 0.9
	scorePrefix          = 0.75
	scoreSubstring       = 0.6
	scoreDescription     = 0.4
	candidatesMultiplier = 5
	snippetLength        = 160
)

// Finder is the part of the index the searcher needs.
type Finder interface {
	FindEntries(query string, crates []string, kinds []sidebar.Kind, limit int) ([]db.EntryHit, error)
}

type Searcher struct {
	index   Finder
	baseURL string
}

func NewSearcher(index Finder, baseURL string) *Searcher {
	return &Searcher{index: index, baseURL: baseURL}
}

// Search ranks indexed entries matching query. Name matches outrank
// description matches; ties are broken by name, then crate.
func (s *Searcher) Search(query string, crateNames []string, kinds []sidebar.Kind, limit int) ([]rpc.EntryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	slog.Info("search", "query", query, "limit", limit, "crates", crateNames, "kinds", kinds)

	candidates, err := s.index.FindEntries(query, crateNames, kinds, limit*candidatesMultiplier)
	if err != nil {
		return nil, fmt.Errorf("finding entries: %w", err)
	}
	slog.Debug("candidates found", "count", len(candidates))

	results := make([]rpc.EntryResult, 0, len(candidates))
	for _, h := range candidates {
		score := Score(query, h.Name, h.Description)
		if score == 0 {
			continue
		}
		ref := docs.PageRef{Crate: h.Crate, Version: h.Version, Path: h.Path}
		uri := ref.ItemURI(h.Kind, h.Name)
		if h.Kind == sidebar.KindMod {
			uri = ref.Child(h.Name).URI()
		}
		results = append(results, rpc.EntryResult{
			URI:          uri,
			URL:          docs.ItemURL(s.baseURL, ref, h.Kind, h.Name),
			CrateName:    h.Crate,
			CrateVersion: h.Version,
			Page:         h.Path,
			Kind:         h.Kind,
			Name:         h.Name,
			Score:        score,
			Snippet:      md.Snippet(h.Description, snippetLength),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.CrateName < b.CrateName
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Score rates how well an entry matches query; zero means no match.
func Score(query, name, description string) float32 {
	lq, ln := strings.ToLower(query), strings.ToLower(name)
	switch {
	case name == query:
		return scoreExact
	case ln == lq:
		return scoreExactFold
	case strings.HasPrefix(ln, lq):
		return scorePrefix
	case strings.Contains(ln, lq):
		return scoreSubstring
	case strings.Contains(strings.ToLower(description), lq):
		return scoreDescription
	default:
		return 0
	}
}
