package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openrec/reggie/internal/crawl"
	"github.com/openrec/reggie/internal/metrics"
	"github.com/openrec/reggie/internal/reggie"
)

// Summary is the partial-success report of one discovery run.
type Summary struct {
	SiteID        int64                    `json:"site_id"`
	PagesCrawled  int                      `json:"pages_crawled"`
	PagesFailed   int                      `json:"pages_failed"`
	ScrapesSaved  int                      `json:"scrapes_saved"`
	ProgramsFound int                      `json:"programs_found"`
	ParseSkipped  bool                     `json:"parse_skipped"`
	Errors        []reggie.ExtractionError `json:"errors,omitempty"`
	Programs      []reggie.Program         `json:"programs"`
}

// Service orchestrates discovery runs: it owns the side effects the
// pipeline itself avoids (scrape persistence, program replacement,
// blob archival) and the site-search surface.
type Service struct {
	store      reggie.Store
	pipeline   *Pipeline
	crawler    reggie.CrawlClient
	archive    reggie.BlobStore
	denylist   *reggie.HostDenylist
	classifier *reggie.SiteTypeClassifier
	clock      reggie.Clock
	log        *zap.Logger
}

// NewService wires the discovery service. Archive may be nil to skip
// blob archival.
func NewService(store reggie.Store, pipeline *Pipeline, crawler reggie.CrawlClient,
	archive reggie.BlobStore, denylist *reggie.HostDenylist,
	classifier *reggie.SiteTypeClassifier, clock reggie.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:      store,
		pipeline:   pipeline,
		crawler:    crawler,
		archive:    archive,
		denylist:   denylist,
		classifier: classifier,
		clock:      clock,
		log:        log,
	}
}

// RunDiscovery executes the pipeline for one site and persists its
// output. Raw scrapes are saved even on a degraded run; the program
// set is replaced only when extraction actually ran, so a parse outage
// never wipes known programs.
func (s *Service) RunDiscovery(ctx context.Context, siteID int64) (Summary, error) {
	site, err := s.store.GetSite(ctx, siteID)
	if err != nil {
		return Summary{}, err
	}
	if site.Type == reggie.SiteTypePortal {
		return Summary{}, fmt.Errorf("%w: discovery is not supported for portal sites", reggie.ErrValidation)
	}

	result, err := s.pipeline.Discover(ctx, site)
	if err != nil {
		metrics.ObserveDiscoveryRun("error")
		return Summary{}, err
	}

	scrapes := make([]reggie.RawScrape, 0, len(result.RawScrapes))
	failed := 0
	for i, capture := range result.RawScrapes {
		scrape := reggie.RawScrape{
			SiteID:     siteID,
			URL:        capture.URL,
			Content:    capture.Content,
			FetchError: capture.FetchError,
		}
		if capture.FetchError != "" {
			failed++
		} else if s.archive != nil {
			uri, err := s.archive.PutObject(ctx, s.blobPath(siteID, i), "text/plain; charset=utf-8",
				strings.NewReader(capture.Content))
			if err != nil {
				s.log.Warn("scrape archive failed", zap.String("url", capture.URL), zap.Error(err))
			} else {
				scrape.BlobURI = uri
			}
		}
		scrapes = append(scrapes, scrape)
	}

	saved, err := s.store.InsertRawScrapes(ctx, scrapes)
	if err != nil {
		metrics.ObserveDiscoveryRun("error")
		return Summary{}, fmt.Errorf("persist raw scrapes: %w", err)
	}

	programs := result.Programs
	if !result.ParseSkipped {
		programs, err = s.store.ReplaceSitePrograms(ctx, siteID, result.Programs)
		if err != nil {
			metrics.ObserveDiscoveryRun("error")
			return Summary{}, fmt.Errorf("replace site programs: %w", err)
		}
	}

	outcome := "ok"
	if result.ParseSkipped {
		outcome = "degraded"
	}
	metrics.ObserveDiscoveryRun(outcome)
	metrics.ObserveProgramsExtracted(len(programs))
	s.log.Info("discovery run finished",
		zap.Int64("site_id", siteID),
		zap.Int("scrapes", len(saved)),
		zap.Int("programs", len(programs)),
		zap.Bool("parse_skipped", result.ParseSkipped))

	return Summary{
		SiteID:        siteID,
		PagesCrawled:  len(result.RawScrapes) - failed,
		PagesFailed:   failed,
		ScrapesSaved:  len(saved),
		ProgramsFound: len(programs),
		ParseSkipped:  result.ParseSkipped,
		Errors:        result.Errors,
		Programs:      programs,
	}, nil
}

// SearchSites runs a free-text site search and reduces the hits to
// addable candidates.
func (s *Service) SearchSites(ctx context.Context, query string, limit int) ([]reggie.SiteCandidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", reggie.ErrValidation)
	}
	if limit <= 0 {
		limit = 10
	}
	results, err := s.crawler.Search(ctx, query, limit)
	if err != nil {
		if errors.Is(err, crawl.ErrSearchUnsupported) {
			return nil, fmt.Errorf("%w: site search is not supported by the configured crawl provider", reggie.ErrValidation)
		}
		return nil, fmt.Errorf("site search: %w", err)
	}
	return DedupSearchResults(results, s.denylist, s.classifier), nil
}

func (s *Service) blobPath(siteID int64, page int) string {
	ts := s.clock.Now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("sites/%d/%s/page-%02d.txt", siteID, ts, page)
}
