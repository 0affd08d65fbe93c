package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jcdickinson/sidebarfetch/internal/config"
	"github.com/klauspost/compress/zstd"
)

// Pages are small and repeat across versions; the shared encoder and
// decoder are safe for concurrent EncodeAll/DecodeAll calls.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil)
)

// Dir returns the CAS directory path.
func Dir() string {
	return config.CASDir()
}

// Hash returns the key a source is stored under.
func Hash(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// path returns the sharded file path for a hash: cas/<first2>/<rest>.js.zst
func path(hash string) string {
	return filepath.Join(Dir(), hash[:2], hash[2:]+".js.zst")
}

// Write stores a page source in the CAS, returning its SHA-256 hash.
// If the source already exists, this is a no-op.
func Write(src []byte) (string, error) {
	hash := Hash(src)

	p := path(hash)
	if _, err := os.Stat(p); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("creating CAS directory: %w", err)
	}

	// Write to a temp file first so a concurrent reader never sees a torn file.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating CAS temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(encoder.EncodeAll(src, nil)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing CAS file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing CAS file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("committing CAS file: %w", err)
	}

	return hash, nil
}

// Read retrieves a page source from the CAS by hash.
func Read(hash string) ([]byte, error) {
	if len(hash) < 3 {
		return nil, fmt.Errorf("invalid CAS hash %q", hash)
	}
	compressed, err := os.ReadFile(path(hash))
	if err != nil {
		return nil, fmt.Errorf("reading CAS file %s: %w", hash, err)
	}

	data, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing CAS file %s: %w", hash, err)
	}
	return data, nil
}

// Has reports whether hash is stored.
func Has(hash string) bool {
	if len(hash) < 3 {
		return false
	}
	_, err := os.Stat(path(hash))
	return err == nil
}
