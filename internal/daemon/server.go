package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jcdickinson/sidebarfetch/internal/cas"
	"github.com/jcdickinson/sidebarfetch/internal/config"
	"github.com/jcdickinson/sidebarfetch/internal/db"
	"github.com/jcdickinson/sidebarfetch/internal/docs"
	md "github.com/jcdickinson/sidebarfetch/internal/markdown"
	"github.com/jcdickinson/sidebarfetch/internal/rpc"
	"github.com/jcdickinson/sidebarfetch/internal/search"
	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type versionCacheEntry struct {
	version  string // resolved real version; empty for 404s
	notFound bool
	expiry   time.Time
}

type Server struct {
	db         *db.DB
	fetcher    *docs.Fetcher
	searcher   *search.Searcher
	cfg        *config.Config
	socketPath string
	httpServer *http.Server
	listener   net.Listener

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration
	exit       func(int)

	versionCache   map[string]versionCacheEntry
	versionCacheMu sync.RWMutex
	addPageGroup   singleflight.Group

	// pageCache holds parsed tables by content hash.
	pageCache   map[string]*sidebar.Items
	pageCacheMu sync.RWMutex
}

func NewServer(cfg *config.Config, database *db.DB, socketPath string) *Server {
	fetcher := docs.NewFetcher(cfg.DocsRs.BaseURL, cfg.DocsRs.UserAgent, cfg.DocsRs.Timeout)
	searcher := search.NewSearcher(database, cfg.DocsRs.BaseURL)

	expSec := cfg.Daemon.ExpirationSeconds
	if expSec <= 0 {
		expSec = 600
	}

	return &Server{
		db:           database,
		fetcher:      fetcher,
		searcher:     searcher,
		cfg:          cfg,
		socketPath:   socketPath,
		expiration:   time.Duration(expSec) * time.Second,
		exit:         os.Exit,
		versionCache: make(map[string]versionCacheEntry),
		pageCache:    make(map[string]*sidebar.Items),
	}
}

// Handler returns the daemon's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /add-pages", s.withExpReset(s.handleAddPages))
	mux.HandleFunc("POST /get-page", s.withExpReset(s.handleGetPage))
	mux.HandleFunc("POST /search", s.withExpReset(s.handleSearch))
	mux.HandleFunc("GET /status", s.withExpReset(s.handleStatus))
	mux.HandleFunc("POST /clear-cache", s.withExpReset(s.handleClearCache))
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	srv := s.httpServer
	s.mu.Unlock()

	log.Printf("daemon: listening on %s (expires after %s of inactivity)", s.socketPath, s.expiration)

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, listener, timer := s.httpServer, s.listener, s.expTimer
	s.mu.Unlock()

	var errs []error
	if timer != nil {
		timer.Stop()
	}
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("daemon: shutdown error: %v", err)
			errs = append(errs, err)
		}
	}
	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("daemon: listener close error: %v", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Printf("daemon: socket remove error: %v", err)
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		log.Printf("daemon: db close error: %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	log.Printf("daemon: expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	s.exit(0)
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) withExpReset(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		handler(w, r)
	}
}

func (s *Server) handleAddPages(w http.ResponseWriter, r *http.Request) {
	var req rpc.AddPagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	var sendMu sync.Mutex
	enc := json.NewEncoder(w)
	send := func(line rpc.ProgressLine) bool {
		sendMu.Lock()
		defer sendMu.Unlock()
		if line.Message != "" {
			log.Printf("daemon: %s", line.Message)
		}
		if err := enc.Encode(line); err != nil {
			log.Printf("daemon: client disconnected: %v", err)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}
	progress := func(msg string) {
		send(rpc.ProgressLine{Type: "progress", Message: msg})
	}

	seen := make(map[string]bool)
	queue := req.Pages
	for len(queue) > 0 {
		var (
			next   []docs.PageRef
			nextMu sync.Mutex
		)
		g, ctx := errgroup.WithContext(r.Context())
		g.SetLimit(s.cfg.Fetch.Concurrency)

		for _, ref := range queue {
			ref = ref.WithDefaults()
			if seen[ref.Key()] {
				continue
			}
			seen[ref.Key()] = true

			g.Go(func() error {
				result, items, _ := s.addPage(ctx, ref, progress)
				if !send(rpc.ProgressLine{Type: "result", Result: &result}) {
					return errors.New("client disconnected")
				}
				if !req.Recursive || items == nil {
					return nil
				}
				parent := docs.PageRef{Crate: result.Crate, Version: result.Version, Path: result.Path}
				nextMu.Lock()
				for _, e := range items.Entries(sidebar.KindMod) {
					next = append(next, parent.Child(e.Name))
				}
				nextMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return
		}
		queue = next
	}
}

const versionCacheTTL = 10 * time.Minute

func (s *Server) getCachedVersion(crate string) (versionCacheEntry, bool) {
	s.versionCacheMu.RLock()
	defer s.versionCacheMu.RUnlock()
	entry, ok := s.versionCache[crate]
	if !ok || time.Now().After(entry.expiry) {
		return versionCacheEntry{}, false
	}
	return entry, true
}

func (s *Server) setCachedVersion(crate, version string, notFound bool) {
	s.versionCacheMu.Lock()
	defer s.versionCacheMu.Unlock()
	s.versionCache[crate] = versionCacheEntry{
		version:  version,
		notFound: notFound,
		expiry:   time.Now().Add(versionCacheTTL),
	}
}

func (s *Server) clearCaches() {
	s.versionCacheMu.Lock()
	s.versionCache = make(map[string]versionCacheEntry)
	s.versionCacheMu.Unlock()

	s.pageCacheMu.Lock()
	s.pageCache = make(map[string]*sidebar.Items)
	s.pageCacheMu.Unlock()
}

// loadItems returns the parsed table of an indexed page, checking memory
// first, then the CAS, then the index rows.
func (s *Server) loadItems(page *db.Page) (*sidebar.Items, error) {
	s.pageCacheMu.RLock()
	items, ok := s.pageCache[page.ContentHash]
	s.pageCacheMu.RUnlock()
	if ok {
		return items, nil
	}

	src, err := cas.Read(page.ContentHash)
	if err == nil {
		items, err = sidebar.Parse(src)
	}
	if err != nil {
		log.Printf("daemon: source of %s@%s/%s unavailable (%v), loading from index", page.Crate, page.Version, page.Path, err)
		items, err = s.db.LoadItems(page.ID)
		if err != nil {
			return nil, fmt.Errorf("loading %s@%s/%s: %w", page.Crate, page.Version, page.Path, err)
		}
	}

	s.pageCacheMu.Lock()
	s.pageCache[page.ContentHash] = items
	s.pageCacheMu.Unlock()
	return items, nil
}

// indexedPage finds an already indexed page, resolving "latest" through the
// version cache or the most recently fetched version.
func (s *Server) indexedPage(ref docs.PageRef) (*db.Page, error) {
	if ref.Version != "latest" {
		return s.db.GetPage(ref.Crate, ref.Version, ref.Path)
	}
	if entry, ok := s.getCachedVersion(ref.Crate); ok {
		if entry.notFound {
			return nil, fmt.Errorf("%w: %s (cached)", docs.ErrPageNotFound, ref)
		}
		page, err := s.db.GetPage(ref.Crate, entry.version, ref.Path)
		if err != nil || page != nil {
			return page, err
		}
	}
	return s.db.GetLatestPage(ref.Crate, ref.Path)
}

// addPage indexes one page unless it is already indexed. The returned
// result always describes the page; err is also recorded in result.Error.
func (s *Server) addPage(ctx context.Context, ref docs.PageRef, progress func(string)) (rpc.PageResult, *sidebar.Items, error) {
	result := rpc.PageResult{Crate: ref.Crate, Version: ref.Version, Path: ref.Path}

	existing, err := s.indexedPage(ref)
	if err != nil {
		result.Error = err.Error()
		return result, nil, err
	}
	if existing != nil {
		items, err := s.loadItems(existing)
		if err == nil {
			result.Version = existing.Version
			result.Entries = items.Len()
			result.Cached = true
			return result, items, nil
		}
		log.Printf("daemon: cached page %s unreadable, refetching: %v", ref, err)
	}

	// Singleflight: dedup concurrent fetches for the same page. Other
	// callers share the result, so one caller going away must not cancel
	// it; the fetcher's timeout still bounds the work.
	workCtx := context.WithoutCancel(ctx)
	v, _, _ := s.addPageGroup.Do(ref.Key(), func() (interface{}, error) {
		res, items, err := s.addPageWork(workCtx, ref, progress)
		if err != nil {
			res.Error = err.Error()
		}
		return pageWork{res, items, err}, nil
	})
	work := v.(pageWork)
	return work.result, work.items, work.err
}

type pageWork struct {
	result rpc.PageResult
	items  *sidebar.Items
	err    error
}

func (s *Server) addPageWork(ctx context.Context, ref docs.PageRef, progress func(string)) (rpc.PageResult, *sidebar.Items, error) {
	result := rpc.PageResult{Crate: ref.Crate, Version: ref.Version, Path: ref.Path}

	progress(fmt.Sprintf("fetching sidebar for %s", ref))
	fetched, err := s.fetcher.Fetch(ctx, ref)
	if err != nil {
		if ref.Version == "latest" && errors.Is(err, docs.ErrPageNotFound) {
			s.setCachedVersion(ref.Crate, "", true)
		}
		return result, nil, fmt.Errorf("fetching page: %w", err)
	}
	resolved := fetched.Ref
	result.Version = resolved.Version
	if ref.Version == "latest" {
		s.setCachedVersion(ref.Crate, resolved.Version, false)
	}

	items, err := sidebar.Parse(fetched.Source)
	if err != nil {
		return result, nil, fmt.Errorf("parsing page: %w", err)
	}
	if err := sidebar.Validate(items, s.cfg.Options()); err != nil {
		return result, nil, fmt.Errorf("validating page: %w", err)
	}

	hash, err := cas.Write(fetched.Source)
	if err != nil {
		return result, nil, err
	}

	page, err := s.db.UpsertPage(resolved.Crate, resolved.Version, resolved.Path, hash)
	if err != nil {
		return result, nil, fmt.Errorf("upserting page: %w", err)
	}
	if err := s.db.ReplaceEntries(page.ID, items); err != nil {
		return result, nil, fmt.Errorf("indexing entries: %w", err)
	}

	s.pageCacheMu.Lock()
	s.pageCache[hash] = items
	s.pageCacheMu.Unlock()

	result.Entries = items.Len()
	progress(fmt.Sprintf("indexed %s (%d entries)", resolved, result.Entries))
	return result, items, nil
}

// resolveOrFetchPage looks up a page, auto-fetching it if it is not indexed.
func (s *Server) resolveOrFetchPage(ctx context.Context, ref docs.PageRef) (*db.Page, *sidebar.Items, error) {
	ref = ref.WithDefaults()
	result, items, err := s.addPage(ctx, ref, func(msg string) {
		log.Printf("auto-fetch: %s", msg)
	})
	if err != nil {
		return nil, nil, err
	}

	page, err := s.db.GetPage(result.Crate, result.Version, result.Path)
	if err != nil {
		return nil, nil, err
	}
	if page == nil {
		return nil, nil, fmt.Errorf("%w: %s", docs.ErrPageNotFound, ref)
	}
	s.db.TouchPage(page.ID)
	return page, items, nil
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	var req rpc.GetPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Page.Crate == "" {
		writeError(w, http.StatusBadRequest, "missing crate")
		return
	}

	page, items, err := s.resolveOrFetchPage(r.Context(), req.Page)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, docs.ErrPageNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	ref := docs.PageRef{Crate: page.Crate, Version: page.Version, Path: page.Path}

	if req.Fragment != "" {
		kind, name, ok := docs.SplitFragment(req.Fragment)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid fragment #%s", req.Fragment))
			return
		}
		entry, ok := items.Lookup(kind, name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("entry #%s not found on %s", req.Fragment, ref))
			return
		}
		items, err = sidebar.NewBuilder().Add(kind, entry.Name, entry.Description).Build()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, rpc.GetPageResponse{
		Page:     ref,
		Items:    items,
		Markdown: md.RenderPage(ref, s.cfg.DocsRs.BaseURL, items),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req rpc.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}

	if req.Limit <= 0 {
		req.Limit = s.cfg.Search.Limit
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if len(req.Kinds) == 0 {
		req.Kinds = s.cfg.Search.Kinds
	}

	results, err := s.searcher.Search(req.Query, req.Crates, req.Kinds, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rpc.SearchResponse{Results: results})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pages, err := s.db.ListPages()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := make([]rpc.PageStatus, 0, len(pages))
	for _, p := range pages {
		n, err := s.db.CountEntries(p.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		status = append(status, rpc.PageStatus{
			Crate:   p.Crate,
			Version: p.Version,
			Path:    p.Path,
			Entries: n,
		})
	}

	writeJSON(w, http.StatusOK, rpc.StatusResponse{Pages: status})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.clearCaches()
	log.Printf("daemon: caches cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		s.exit(0)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
