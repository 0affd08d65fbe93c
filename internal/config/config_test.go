package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
	"github.com/spf13/viper"
)

func TestCacheBase_XDGSet(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	got := cacheBase()
	want := filepath.Join("/custom/cache", "sidebarfetch")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_HomeDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	got := cacheBase()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	want := filepath.Join(home, ".cache", "sidebarfetch")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_TmpFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "")
	got := cacheBase()
	// Should use os.TempDir() when HOME is unset
	if !strings.Contains(got, "sidebarfetch") {
		t.Errorf("expected sidebarfetch in path, got %q", got)
	}
}

func defaults(t *testing.T) map[string]interface{} {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	return v.AllSettings()
}

func TestDecode_Defaults(t *testing.T) {
	cfg, err := decode(defaults(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DocsRs.BaseURL != "https://docs.rs" {
		t.Errorf("base url: got %q", cfg.DocsRs.BaseURL)
	}
	if cfg.DocsRs.Timeout != 60*time.Second {
		t.Errorf("timeout: got %s", cfg.DocsRs.Timeout)
	}
	if cfg.Fetch.Concurrency != 4 {
		t.Errorf("concurrency: got %d", cfg.Fetch.Concurrency)
	}
	if len(cfg.Search.Kinds) != 0 {
		t.Errorf("expected no default kinds, got %v", cfg.Search.Kinds)
	}
	if cfg.Options() != (sidebar.Options{}) {
		t.Errorf("expected lenient validation by default, got %+v", cfg.Options())
	}
}

func TestDecode_KindList(t *testing.T) {
	settings := defaults(t)
	settings["search"] = map[string]interface{}{"kinds": "struct, fn,,trait", "limit": 5}

	cfg, err := decode(settings)
	if err != nil {
		t.Fatal(err)
	}
	want := []sidebar.Kind{sidebar.KindStruct, sidebar.KindFn, sidebar.KindTrait}
	if len(cfg.Search.Kinds) != len(want) {
		t.Fatalf("got %v, want %v", cfg.Search.Kinds, want)
	}
	for i := range want {
		if cfg.Search.Kinds[i] != want[i] {
			t.Errorf("kind %d: got %q, want %q", i, cfg.Search.Kinds[i], want[i])
		}
	}
}

func TestDecode_StrictRejectsUnknownSearchKind(t *testing.T) {
	settings := defaults(t)
	settings["validate"] = map[string]interface{}{"strict": true}
	settings["search"] = map[string]interface{}{"kinds": "gadget"}

	if _, err := decode(settings); err == nil {
		t.Fatal("expected error for unknown kind in strict mode")
	}
}

func TestDecode_TrimsBaseURLAndClampsConcurrency(t *testing.T) {
	settings := defaults(t)
	settings["docs_rs"] = map[string]interface{}{"base_url": "http://localhost:8080/", "timeout": "5s"}
	settings["fetch"] = map[string]interface{}{"concurrency": 0}

	cfg, err := decode(settings)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DocsRs.BaseURL != "http://localhost:8080" {
		t.Errorf("got %q", cfg.DocsRs.BaseURL)
	}
	if cfg.DocsRs.Timeout != 5*time.Second {
		t.Errorf("got %s", cfg.DocsRs.Timeout)
	}
	if cfg.Fetch.Concurrency != 1 {
		t.Errorf("got %d", cfg.Fetch.Concurrency)
	}
}
