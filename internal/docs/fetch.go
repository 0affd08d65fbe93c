package docs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxPageSize bounds a decoded sidebar script.
const maxPageSize = 16 << 20

var ErrPageNotFound = errors.New("page not found")

// Fetcher downloads sidebar scripts from docs.rs.
type Fetcher struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewFetcher(baseURL, userAgent string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// FetchResult is a downloaded page. Ref carries the concrete version when
// docs.rs redirected "latest".
type FetchResult struct {
	Ref    PageRef
	URL    string
	Source []byte
}

// Fetch downloads the sidebar script of ref.
func (f *Fetcher) Fetch(ctx context.Context, ref PageRef) (*FetchResult, error) {
	url := PageURL(f.baseURL, ref)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Encoding", "zstd, gzip")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, ref)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("docs.rs returned %d for %s: %s", resp.StatusCode, ref, string(body))
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}

	resolved := ref
	finalURL := resp.Request.URL.String()
	if final, err := ParsePageURL(finalURL); err == nil && final.Crate == ref.Crate {
		resolved.Version = final.Version
	}

	return &FetchResult{Ref: resolved, URL: finalURL, Source: body}, nil
}

func decodeBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "zstd":
		decoder, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer decoder.Close()
		r = decoder
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(io.LimitReader(r, maxPageSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading sidebar script: %w", err)
	}
	if len(data) > maxPageSize {
		return nil, fmt.Errorf("sidebar script exceeds %d bytes", maxPageSize)
	}
	return data, nil
}
