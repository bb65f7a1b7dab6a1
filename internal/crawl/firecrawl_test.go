package crawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newFirecrawlServer(t *testing.T, handler http.HandlerFunc) *Firecrawl {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFirecrawl(FirecrawlConfig{BaseURL: srv.URL, APIKey: "fc-test"})
}

func TestFirecrawlMapSite(t *testing.T) {
	t.Parallel()

	fc := newFirecrawlServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/map", r.URL.Path)
		require.Equal(t, "Bearer fc-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "https://city.example.com", body["url"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"links":   []string{"https://city.example.com/programs", "https://city.example.com/about"},
		})
	})

	links, err := fc.MapSite(context.Background(), "https://city.example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"https://city.example.com/programs", "https://city.example.com/about"}, links)
}

func TestFirecrawlFetchPage(t *testing.T) {
	t.Parallel()

	fc := newFirecrawlServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/scrape", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"markdown": "# Youth Soccer\nRegister now"},
		})
	})

	text, err := fc.FetchPage(context.Background(), "https://city.example.com/programs")
	require.NoError(t, err)
	require.Contains(t, text, "Youth Soccer")
}

func TestFirecrawlSearch(t *testing.T) {
	t.Parallel()

	fc := newFirecrawlServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/search", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]any{
				{"url": "https://city.example.com", "title": "City Recreation", "description": "Parks & rec"},
			},
		})
	})

	hits, err := fc.Search(context.Background(), "anytown recreation programs", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "City Recreation", hits[0].Title)
}

func TestFirecrawlServiceError(t *testing.T) {
	t.Parallel()

	fc := newFirecrawlServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "invalid api key"})
	})

	_, err := fc.MapSite(context.Background(), "https://city.example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid api key")
}

func TestFirecrawlHTTPError(t *testing.T) {
	t.Parallel()

	fc := newFirecrawlServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := fc.FetchPage(context.Background(), "https://city.example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
}
