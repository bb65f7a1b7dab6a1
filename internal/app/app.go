// Package app initializes and holds the long-lived services of the
// application, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/openrec/reggie/internal/api"
	archivegcs "github.com/openrec/reggie/internal/archive/gcs"
	archivelocal "github.com/openrec/reggie/internal/archive/local"
	archivenoop "github.com/openrec/reggie/internal/archive/noop"
	"github.com/openrec/reggie/internal/chat"
	"github.com/openrec/reggie/internal/clock/system"
	"github.com/openrec/reggie/internal/config"
	"github.com/openrec/reggie/internal/crawl"
	"github.com/openrec/reggie/internal/discovery"
	"github.com/openrec/reggie/internal/llm"
	pubmemory "github.com/openrec/reggie/internal/publisher/memory"
	pubnoop "github.com/openrec/reggie/internal/publisher/noop"
	pubpubsub "github.com/openrec/reggie/internal/publisher/pubsub"
	"github.com/openrec/reggie/internal/reggie"
	"github.com/openrec/reggie/internal/store/memory"
	"github.com/openrec/reggie/internal/store/postgres"
	"github.com/openrec/reggie/internal/watcher"
)

// App holds every shared service the binary needs: the store, the
// crawl provider, the blob archive, the event publisher, and the
// assembled HTTP server and scheduler. It is built once at startup
// and fails fast when any critical service cannot be initialized.
type App struct {
	cfg config.Config
	log *zap.Logger

	store     reggie.Store
	server    *api.Server
	scheduler *watcher.Scheduler

	closers []func()
}

// New assembles the application from its configuration.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}
	clock := system.New()

	store, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	crawler, err := a.buildCrawler()
	if err != nil {
		return nil, err
	}

	archive, err := a.buildArchive(ctx)
	if err != nil {
		return nil, err
	}

	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	extractor, chatSvc := a.buildModel()

	pipeline := discovery.NewPipeline(crawler, extractor, discovery.PipelineConfig{
		MaxCandidates:    cfg.Discovery.MaxCandidates,
		MaxCombinedChars: cfg.Discovery.MaxCombinedChars,
		ProgramKeywords:  cfg.Discovery.ProgramKeywords,
	}, log)

	denylist := cfg.Discovery.SearchDenylist
	if len(denylist) == 0 {
		denylist = reggie.DefaultSearchDenylist
	}
	signatures := cfg.Discovery.PortalSignatures
	if len(signatures) == 0 {
		signatures = reggie.DefaultPortalSignatures
	}

	disc := discovery.NewService(store, pipeline, crawler, archive,
		reggie.NewHostDenylist(denylist),
		reggie.NewSiteTypeClassifier(signatures),
		clock, log)

	matcher := watcher.NewMatcher(store, publisher, cfg.Publisher.Topic, clock, log)
	if cfg.Watcher.Enabled {
		a.scheduler = watcher.NewScheduler(matcher, cfg.WatchInterval(), log)
	}

	a.server = api.NewServer(store, disc, matcher, chatSvc, cfg.Auth, log)

	log.Info("application services initialized",
		zap.String("db", cfg.DB.Provider),
		zap.String("crawl", cfg.Crawl.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.String("publisher", cfg.Publisher.Provider),
		zap.Bool("watcher", cfg.Watcher.Enabled),
		zap.Bool("chat", chatSvc != nil))
	return a, nil
}

// Handler returns the assembled HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Scheduler returns the watch-rule scheduler, nil when disabled.
func (a *App) Scheduler() *watcher.Scheduler {
	return a.scheduler
}

func (a *App) buildStore(ctx context.Context) (reggie.Store, error) {
	switch a.cfg.DB.Provider {
	case "postgres":
		if a.cfg.DB.MigrateOnStart {
			version, err := postgres.RunMigrations(a.cfg.DB.DSN)
			if err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			a.log.Info("database schema current", zap.Uint("version", version))
		}
		store, err := postgres.New(ctx, postgres.Config{
			DSN:             a.cfg.DB.DSN,
			MaxConns:        a.cfg.DB.MaxConns,
			MinConns:        a.cfg.DB.MinConns,
			MaxConnLifetime: a.cfg.DB.ConnLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "memory":
		a.log.Warn("using in-memory store, data is lost on restart")
		return memory.New(system.New()), nil
	default:
		return nil, fmt.Errorf("unknown db provider: %s", a.cfg.DB.Provider)
	}
}

func (a *App) buildCrawler() (reggie.CrawlClient, error) {
	switch a.cfg.Crawl.Provider {
	case "firecrawl":
		return crawl.NewFirecrawl(crawl.FirecrawlConfig{
			BaseURL: a.cfg.Crawl.FirecrawlURL,
			APIKey:  a.cfg.Crawl.FirecrawlKey,
			Timeout: a.cfg.CrawlTimeout(),
		}), nil
	case "local":
		var renderer *crawl.Renderer
		if a.cfg.Crawl.Headless.Enabled {
			r, err := crawl.NewRenderer(crawl.RendererConfig{
				MaxParallel:       a.cfg.Crawl.Headless.MaxParallel,
				UserAgent:         a.cfg.Crawl.UserAgent,
				NavigationTimeout: a.cfg.Crawl.Headless.NavTimeout(),
			})
			if err != nil {
				return nil, fmt.Errorf("initialize headless renderer: %w", err)
			}
			a.closers = append(a.closers, r.Close)
			renderer = r
		}
		return crawl.NewLocal(crawl.LocalConfig{
			UserAgent: a.cfg.Crawl.UserAgent,
			Timeout:   a.cfg.CrawlTimeout(),
			MapLimit:  a.cfg.Crawl.MapLimit,
			Renderer:  renderer,
		}), nil
	default:
		return nil, fmt.Errorf("unknown crawl provider: %s", a.cfg.Crawl.Provider)
	}
}

func (a *App) buildArchive(ctx context.Context) (reggie.BlobStore, error) {
	switch a.cfg.Archive.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return archivegcs.New(client, archivegcs.Config{
			Bucket: a.cfg.Archive.GCSBucket,
			Prefix: a.cfg.Archive.Prefix,
		})
	case "local":
		return archivelocal.New(a.cfg.Archive.LocalDir)
	case "noop":
		return archivenoop.New(), nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", a.cfg.Archive.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context) (reggie.Publisher, error) {
	switch a.cfg.Publisher.Provider {
	case "pubsub":
		client, err := gpubsub.NewClient(ctx, a.cfg.Publisher.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("initialize pubsub client: %w", err)
		}
		p, err := pubpubsub.New(client)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = p.Close() })
		return p, nil
	case "memory":
		return pubmemory.New(), nil
	case "noop":
		return pubnoop.New(), nil
	default:
		return nil, fmt.Errorf("unknown publisher provider: %s", a.cfg.Publisher.Provider)
	}
}

// buildModel wires the text-understanding client. Without an API key
// the pipeline still runs in degraded mode and chat stays disabled.
func (a *App) buildModel() (reggie.Extractor, *chat.Service) {
	client := llm.NewClient(llm.Config{
		BaseURL:   a.cfg.LLM.BaseURL,
		APIKey:    a.cfg.LLM.APIKey,
		Model:     a.cfg.LLM.Model,
		MaxTokens: a.cfg.LLM.MaxTokens,
		Timeout:   a.cfg.LLMTimeout(),
	})
	extractor := llm.NewExtractor(client)
	if a.cfg.LLM.APIKey == "" {
		a.log.Warn("no model api key configured, extraction will be skipped and chat is disabled")
		return extractor, nil
	}
	return extractor, chat.NewService(client, a.store, a.log)
}

// Close shuts the shared services down in reverse initialization
// order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}
