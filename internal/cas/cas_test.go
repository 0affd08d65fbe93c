package cas

import (
	"errors"
	"os"
	"testing"

	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	src, ok := sidebar.BuiltinSource("clap::args")
	if !ok {
		t.Fatal("builtin page missing")
	}
	hash, err := Write(src)
	if err != nil {
		t.Fatal(err)
	}
	if hash != Hash(src) {
		t.Errorf("Write returned %s, Hash gives %s", hash, Hash(src))
	}
	if !Has(hash) {
		t.Error("expected Has=true after Write")
	}

	got, err := Read(hash)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(src) {
		t.Errorf("round-trip failed: got %q, want %q", got, src)
	}
}

func TestWrite_Dedup(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	content := []byte(`initSidebarItems({"fn":[["run",""]]});`)
	hash1, err := Write(content)
	if err != nil {
		t.Fatal(err)
	}
	hash2, err := Write(content)
	if err != nil {
		t.Fatal(err)
	}
	if hash1 != hash2 {
		t.Errorf("same content produced different hashes: %s vs %s", hash1, hash2)
	}
}

func TestWrite_DifferentContent(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	hash1, err := Write([]byte("content A"))
	if err != nil {
		t.Fatal(err)
	}
	hash2, err := Write([]byte("content B"))
	if err != nil {
		t.Fatal(err)
	}
	if hash1 == hash2 {
		t.Error("different content should produce different hashes")
	}
}

func TestRead_MissingHash(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	_, err := Read("0000000000000000000000000000000000000000000000000000000000000000")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if Has("0000000000000000000000000000000000000000000000000000000000000000") {
		t.Error("expected Has=false for missing hash")
	}
}

func TestRead_InvalidHash(t *testing.T) {
	if _, err := Read("ab"); err == nil {
		t.Fatal("expected error for short hash")
	}
}
