// Package crawl provides implementations of the crawling collaborator:
// a client for the hosted scraping service and a self-hosted fallback
// built on colly with optional headless rendering.
package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openrec/reggie/internal/reggie"
)

// ErrSearchUnsupported marks a provider that cannot run free-text site
// search (the local provider).
var ErrSearchUnsupported = errors.New("site search is not supported by this crawl provider")

// FirecrawlConfig controls the hosted service client.
type FirecrawlConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Firecrawl calls the hosted crawling service's map, scrape and search
// endpoints.
type Firecrawl struct {
	cfg        FirecrawlConfig
	httpClient *http.Client
}

// NewFirecrawl builds a hosted-service client.
func NewFirecrawl(cfg FirecrawlConfig) *Firecrawl {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Firecrawl{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type mapResponse struct {
	Success bool     `json:"success"`
	Links   []string `json:"links"`
	Error   string   `json:"error"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error"`
}

type searchResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"data"`
	Error string `json:"error"`
}

// MapSite requests the full URL map of a site.
func (f *Firecrawl) MapSite(ctx context.Context, baseURL string) ([]string, error) {
	var out mapResponse
	if err := f.post(ctx, "/v1/map", map[string]any{"url": baseURL}, &out); err != nil {
		return nil, fmt.Errorf("map site: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("map site: service error: %s", out.Error)
	}
	return out.Links, nil
}

// FetchPage scrapes one URL and returns its text content.
func (f *Firecrawl) FetchPage(ctx context.Context, url string) (string, error) {
	payload := map[string]any{"url": url, "formats": []string{"markdown"}}
	var out scrapeResponse
	if err := f.post(ctx, "/v1/scrape", payload, &out); err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	if !out.Success {
		return "", fmt.Errorf("fetch page: service error: %s", out.Error)
	}
	return out.Data.Markdown, nil
}

// Search runs a free-text search and returns raw hits.
func (f *Firecrawl) Search(ctx context.Context, query string, limit int) ([]reggie.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	var out searchResponse
	if err := f.post(ctx, "/v1/search", map[string]any{"query": query, "limit": limit}, &out); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("search: service error: %s", out.Error)
	}
	hits := make([]reggie.SearchResult, 0, len(out.Data))
	for _, d := range out.Data {
		hits = append(hits, reggie.SearchResult{URL: d.URL, Title: d.Title, Description: d.Description})
	}
	return hits, nil
}

func (f *Firecrawl) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
