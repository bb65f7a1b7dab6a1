// Package discovery crawls a site, reduces its program pages to text,
// and asks the extraction model for structured programs.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/openrec/reggie/internal/metrics"
	"github.com/openrec/reggie/internal/reggie"
)

// PipelineConfig bounds a discovery run.
type PipelineConfig struct {
	MaxCandidates    int
	MaxCombinedChars int
	ProgramKeywords  []string
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 15
	}
	if c.MaxCombinedChars <= 0 {
		c.MaxCombinedChars = 50000
	}
	if len(c.ProgramKeywords) == 0 {
		c.ProgramKeywords = reggie.DefaultProgramKeywords
	}
	return c
}

// Pipeline runs the map-fetch-extract sequence. It has no side
// effects; persistence belongs to the caller.
type Pipeline struct {
	crawler   reggie.CrawlClient
	extractor reggie.Extractor
	cfg       PipelineConfig
	log       *zap.Logger
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(crawler reggie.CrawlClient, extractor reggie.Extractor, cfg PipelineConfig, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{crawler: crawler, extractor: extractor, cfg: cfg.withDefaults(), log: log}
}

// BaseURL resolves a site URL to a fetchable form, defaulting the
// scheme to https.
func BaseURL(siteURL string) string {
	if strings.HasPrefix(siteURL, "http://") || strings.HasPrefix(siteURL, "https://") {
		return siteURL
	}
	return "https://" + siteURL
}

// SelectCandidates filters mapped URLs down to the fetch list:
// relevance-filtered, deduplicated by normalized URL with first
// occurrence winning, capped, and falling back to the base URL when
// nothing survives.
func SelectCandidates(urls []string, baseURL string, keywords []string, limit int) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, u := range urls {
		if len(out) >= limit {
			break
		}
		if !reggie.IsProgramURL(u, baseURL, keywords) {
			continue
		}
		key := reggie.NormalizeURL(u)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	if len(out) == 0 {
		out = []string{baseURL}
	}
	return out
}

// CombineCaptures concatenates successful page texts with boundary
// markers, truncated to the character budget.
func CombineCaptures(captures []reggie.PageCapture, maxChars int) string {
	parts := make([]string, 0, len(captures))
	for _, c := range captures {
		if c.Content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("\n\n--- Page: %s ---\n%s", c.URL, c.Content))
	}
	combined := strings.Join(parts, "\n")
	if len(combined) > maxChars {
		cut := maxChars
		// Back up to a rune boundary so the cut never leaves a
		// partial UTF-8 sequence at the tail.
		for cut > 0 && !utf8.RuneStart(combined[cut]) {
			cut--
		}
		combined = combined[:cut]
	}
	return combined
}

// Discover maps the site, fetches each candidate page in isolation,
// and extracts programs from the combined text. An extraction failure
// degrades the run to ParseSkipped instead of failing it; only a map
// failure is a hard error.
func (p *Pipeline) Discover(ctx context.Context, site reggie.Site) (reggie.DiscoveryResult, error) {
	baseURL := BaseURL(site.URL)

	urls, err := p.crawler.MapSite(ctx, baseURL)
	if err != nil {
		return reggie.DiscoveryResult{}, fmt.Errorf("map %s: %w", baseURL, err)
	}

	candidates := SelectCandidates(urls, baseURL, p.cfg.ProgramKeywords, p.cfg.MaxCandidates)
	p.log.Debug("selected discovery candidates",
		zap.Int64("site_id", site.ID),
		zap.Int("mapped", len(urls)),
		zap.Int("candidates", len(candidates)))

	captures := make([]reggie.PageCapture, 0, len(candidates))
	for _, u := range candidates {
		text, err := p.crawler.FetchPage(ctx, u)
		if err != nil {
			p.log.Warn("page fetch failed", zap.String("url", u), zap.Error(err))
			metrics.ObservePageFetch("error")
			captures = append(captures, reggie.PageCapture{URL: u, FetchError: err.Error()})
			continue
		}
		metrics.ObservePageFetch("ok")
		captures = append(captures, reggie.PageCapture{URL: u, Content: text})
	}

	combined := CombineCaptures(captures, p.cfg.MaxCombinedChars)

	extraction, err := p.extractor.ExtractPrograms(ctx, site.URL, combined)
	if err != nil {
		p.log.Warn("extraction skipped", zap.Int64("site_id", site.ID), zap.Error(err))
		return reggie.DiscoveryResult{
			RawScrapes:   captures,
			Programs:     []reggie.Program{},
			Errors:       []reggie.ExtractionError{{Reason: "Parse step unavailable: " + err.Error()}},
			ParseSkipped: true,
		}, nil
	}

	return reggie.DiscoveryResult{
		RawScrapes: captures,
		Programs:   extraction.Programs,
		Errors:     extraction.Errors,
	}, nil
}
