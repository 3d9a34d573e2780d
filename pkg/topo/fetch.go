package topo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher retrieves a raw topology document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches topology documents over HTTP, throttled by a limiter.
type HTTPFetcher struct {
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewHTTPFetcher creates a fetcher allowing rps requests per second.
// A non-positive rps disables throttling.
func NewHTTPFetcher(timeout time.Duration, rps float64) *HTTPFetcher {
	lim := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: timeout},
		Limiter: lim,
	}
}

// Fetch performs a GET and returns the body. Non-2xx responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

// FileFetcher reads bundled topology files relative to Root.
type FileFetcher struct {
	Root string
}

// Fetch reads the file named by url, which may carry a file:// prefix.
func (f FileFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(url, "file://")
	if !filepath.IsAbs(path) && f.Root != "" {
		path = filepath.Join(f.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology file: %w", err)
	}
	return data, nil
}

// SchemeFetcher dispatches http(s) URLs to Remote and everything else to Local.
type SchemeFetcher struct {
	Remote Fetcher
	Local  Fetcher
}

// NewFetcher builds the default fetcher: HTTP with throttling for remote
// documents, and files under root for bundled ones.
func NewFetcher(root string, timeout time.Duration, rps float64) *SchemeFetcher {
	return &SchemeFetcher{
		Remote: NewHTTPFetcher(timeout, rps),
		Local:  FileFetcher{Root: root},
	}
}

func (f *SchemeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return f.Remote.Fetch(ctx, url)
	}
	return f.Local.Fetch(ctx, url)
}
