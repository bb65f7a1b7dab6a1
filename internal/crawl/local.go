package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"

	"github.com/openrec/reggie/internal/reggie"
)

// LocalConfig controls the self-hosted crawl provider.
type LocalConfig struct {
	UserAgent string
	Timeout   time.Duration
	MapLimit  int
	Renderer  *Renderer // nil disables headless escalation
}

// Local is a self-hosted crawl provider: colly maps and fetches pages,
// goquery reduces HTML to text, and pages that look JS-gated escalate
// to a headless render when a Renderer is configured. Free-text search
// needs the hosted service and is unsupported here.
type Local struct {
	cfg LocalConfig
}

// NewLocal builds the self-hosted provider.
func NewLocal(cfg LocalConfig) *Local {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MapLimit <= 0 {
		cfg.MapLimit = 200
	}
	return &Local{cfg: cfg}
}

func (l *Local) newCollector(host string) *colly.Collector {
	opts := []colly.CollectorOption{colly.MaxDepth(2)}
	if host != "" {
		opts = append(opts, colly.AllowedDomains(host, "www."+host, strings.TrimPrefix(host, "www.")))
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(l.cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(l.cfg.Timeout)
	return c
}

// MapSite collects same-host links reachable from the base page, up to
// the configured limit. Order is discovery order; the discovery
// pipeline applies its own filtering and dedup on top.
func (l *Local) MapSite(ctx context.Context, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("map site: invalid base url %q", baseURL)
	}

	var (
		mu    sync.Mutex
		links []string
		seen  = map[string]struct{}{}
	)
	c := l.newCollector(base.Hostname())

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || strings.HasPrefix(link, "javascript:") {
			return
		}
		mu.Lock()
		if _, dup := seen[link]; dup || len(links) >= l.cfg.MapLimit {
			mu.Unlock()
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
		mu.Unlock()
		// In synchronous mode Visit fetches inline and re-enters this
		// callback, so the mutex must not be held across it. The
		// collector's MaxDepth bounds the walk.
		_ = e.Request.Visit(link)
	})

	if err := c.Visit(base.String()); err != nil {
		return nil, fmt.Errorf("map site: visit %s: %w", base.String(), err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("map site: %w", err)
	}
	return links, nil
}

// FetchPage fetches one URL and returns its visible text. A page that
// looks JS-gated is retried through the headless renderer when one is
// configured.
func (l *Local) FetchPage(ctx context.Context, pageURL string) (string, error) {
	var (
		body     []byte
		fetchErr error
	)
	c := l.newCollector("")
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})
	if err := c.Visit(pageURL); err != nil {
		return "", fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	c.Wait()
	if fetchErr != nil {
		return "", fmt.Errorf("fetch page %s: %w", pageURL, fetchErr)
	}

	if l.cfg.Renderer != nil && looksJSGated(body) {
		html, err := l.cfg.Renderer.Render(ctx, pageURL)
		if err != nil {
			// Fall back to whatever the static fetch produced.
			return extractText(body)
		}
		return extractText([]byte(html))
	}
	return extractText(body)
}

// Search is unsupported locally; callers surface this as a validation
// error rather than degrading.
func (l *Local) Search(context.Context, string, int) ([]reggie.SearchResult, error) {
	return nil, ErrSearchUnsupported
}

// extractText reduces an HTML document to whitespace-normalized
// visible text. Text nodes are collected individually so adjacent
// elements never fuse into one word.
func extractText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}

	var words []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			words = append(words, strings.Fields(n.Data)...)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(words, " "), nil
}
