package reggie

import (
	"context"
	"io"
	"time"
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// CrawlClient is the crawling collaborator: map a site to its URLs,
// fetch one page's text, and run a free-text site search. Providers:
// the hosted service client and the self-hosted colly/chromedp client.
type CrawlClient interface {
	MapSite(ctx context.Context, baseURL string) ([]string, error)
	FetchPage(ctx context.Context, url string) (string, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Extractor turns scraped free text into structured programs. Any
// error (unreachable service, unrecoverable output) degrades the
// discovery run; the pipeline never retries.
type Extractor interface {
	ExtractPrograms(ctx context.Context, sourceURL, text string) (Extraction, error)
}

// BlobStore archives raw page captures outside the relational store.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher emits notification events to an external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// SiteStore persists configured sites.
type SiteStore interface {
	ListSites(ctx context.Context) ([]Site, error)
	GetSite(ctx context.Context, id int64) (Site, error)
	CreateSite(ctx context.Context, site Site) (Site, error)
	UpdateSite(ctx context.Context, id int64, patch SitePatch) (Site, error)
	DeleteSite(ctx context.Context, id int64) error
}

// ProgramStore persists discovered programs. ReplaceSitePrograms must
// be atomic: a concurrent reader sees either the old set or the new
// set, never a partial replacement.
type ProgramStore interface {
	ListPrograms(ctx context.Context, filter ProgramFilter) ([]Program, error)
	SearchPrograms(ctx context.Context, filter ProgramFilter) ([]ProgramWithSite, error)
	ReplaceSitePrograms(ctx context.Context, siteID int64, programs []Program) ([]Program, error)
}

// ScrapeStore persists the append-only raw page audit trail.
type ScrapeStore interface {
	InsertRawScrapes(ctx context.Context, scrapes []RawScrape) ([]RawScrape, error)
	ListRawScrapes(ctx context.Context, siteID int64) ([]RawScrape, error)
}

// RuleStore persists watch rules and carries the matcher's two
// storage operations: the anti-join match query and the transactional
// notify-then-stamp write.
type RuleStore interface {
	ListRules(ctx context.Context) ([]WatchRule, error)
	ListActiveRuleIDs(ctx context.Context) ([]int64, error)
	GetRule(ctx context.Context, id int64) (WatchRule, error)
	CreateRule(ctx context.Context, rule WatchRule) (WatchRule, error)
	UpdateRule(ctx context.Context, id int64, patch RulePatch) (WatchRule, error)
	DeleteRule(ctx context.Context, id int64) error

	// FindUnnotifiedMatches returns programs in an actionable
	// registration state that satisfy every non-nil rule filter and
	// have no notification for this rule yet.
	FindUnnotifiedMatches(ctx context.Context, rule WatchRule) ([]Program, error)

	// CreateNotificationsAndStamp inserts the notifications and stamps
	// the rule's last_checked_at in one transaction. It returns the
	// number of notifications actually created (conflicting pairs are
	// skipped, keeping overlapping runs idempotent).
	CreateNotificationsAndStamp(ctx context.Context, ruleID int64, notifs []Notification, checkedAt time.Time) (int, error)
}

// NotificationStore reads and updates delivered alerts.
type NotificationStore interface {
	ListNotifications(ctx context.Context) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) (Notification, error)
}

// Store is the full persistence surface, constructed once at startup
// and passed to each component.
type Store interface {
	SiteStore
	ProgramStore
	ScrapeStore
	RuleStore
	NotificationStore
	Close()
}
