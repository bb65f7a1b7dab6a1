// Package reggie defines the core domain types and the interfaces the
// rest of the service is wired through.
package reggie

import "time"

// Site types.
const (
	SiteTypeDirect = "direct"
	SiteTypePortal = "portal"
)

// Registration statuses the matcher treats as actionable. Anything
// else stored on a program (including empty) never triggers a
// notification.
const (
	StatusOpen     = "open"
	StatusWaitlist = "waitlist"
	StatusClosed   = "closed"
)

// NotificationTypeOpening is the only notification type currently emitted.
const NotificationTypeOpening = "opening"

// Site is a configured external source of activity-program listings.
type Site struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	URL            string    `json:"url"`
	Type           string    `json:"type"`
	ScrapeInterval int       `json:"scrape_interval"`
	Profile        *string   `json:"profile"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SitePatch carries optional field updates for a site. Nil fields are
// left untouched.
type SitePatch struct {
	Name           *string `json:"name"`
	URL            *string `json:"url"`
	Type           *string `json:"type"`
	ScrapeInterval *int    `json:"scrape_interval"`
	Profile        *string `json:"profile"`
}

// RawScrape is one captured page belonging to a site. Rows are
// append-only; a failed fetch is recorded with empty content and the
// error text.
type RawScrape struct {
	ID         int64     `json:"id"`
	SiteID     int64     `json:"site_id"`
	URL        string    `json:"url"`
	Content    string    `json:"content"`
	FetchError string    `json:"fetch_error,omitempty"`
	BlobURI    string    `json:"blob_uri,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Program is one discovered activity listing.
type Program struct {
	ID                 int64     `json:"id"`
	SiteID             int64     `json:"site_id"`
	Name               string    `json:"name"`
	Type               string    `json:"type,omitempty"`
	AgeGroup           string    `json:"age_group,omitempty"`
	StartDate          string    `json:"start_date,omitempty"`
	EndDate            string    `json:"end_date,omitempty"`
	DayOfWeek          string    `json:"day_of_week,omitempty"`
	StartTime          string    `json:"start_time,omitempty"`
	EndTime            string    `json:"end_time,omitempty"`
	Location           string    `json:"location,omitempty"`
	Cost               string    `json:"cost,omitempty"`
	RegistrationStatus string    `json:"registration_status,omitempty"`
	SpotsAvailable     *int      `json:"spots_available"`
	SourceURL          string    `json:"source_url,omitempty"`
	RawContent         string    `json:"raw_content,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProgramFilter narrows program listings. Empty fields match any value.
type ProgramFilter struct {
	SiteID   int64
	Type     string
	AgeGroup string
	Status   string
}

// ProgramWithSite is a program joined with its site's display name,
// used by read-only query surfaces.
type ProgramWithSite struct {
	Program
	SiteName string `json:"site_name,omitempty"`
}

// WatchRule is a standing filter evaluated against programs. A nil
// field imposes no constraint on that dimension.
type WatchRule struct {
	ID            int64      `json:"id"`
	SiteID        *int64     `json:"site_id"`
	ProgramID     *int64     `json:"program_id"`
	ActivityType  *string    `json:"activity_type"`
	AgeGroup      *string    `json:"age_group"`
	Active        bool       `json:"active"`
	AutoRegister  bool       `json:"auto_register"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RulePatch carries optional field updates for a watch rule.
type RulePatch struct {
	SiteID       *int64  `json:"site_id"`
	ProgramID    *int64  `json:"program_id"`
	ActivityType *string `json:"activity_type"`
	AgeGroup     *string `json:"age_group"`
	Active       *bool   `json:"active"`
	AutoRegister *bool   `json:"auto_register"`
}

// Notification is a one-time alert tied to a (watch rule, program)
// pair. At most one row may exist per pair.
type Notification struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Body        *string   `json:"body"`
	ProgramID   int64     `json:"program_id"`
	WatchRuleID int64     `json:"watch_rule_id"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// PageCapture is one fetched page before persistence. A failed fetch
// keeps the URL with empty content and the error text.
type PageCapture struct {
	URL        string `json:"url"`
	Content    string `json:"content"`
	FetchError string `json:"fetch_error,omitempty"`
}

// ExtractionError is one structured error reported by the extraction
// service (or synthesized when extraction is skipped).
type ExtractionError struct {
	Reason string `json:"reason"`
}

// Extraction is the structured output of the extraction service.
type Extraction struct {
	Programs []Program         `json:"programs"`
	Errors   []ExtractionError `json:"errors"`
}

// DiscoveryResult is the outcome of one discovery run. ParseSkipped
// marks the degraded mode where pages were captured but the extraction
// service could not run.
type DiscoveryResult struct {
	RawScrapes   []PageCapture     `json:"raw_scrapes"`
	Programs     []Program         `json:"programs"`
	Errors       []ExtractionError `json:"errors"`
	ParseSkipped bool              `json:"parse_skipped"`
}

// SearchResult is one raw hit from the crawl collaborator's search.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SiteCandidate is a deduplicated, denoised search hit ready for
// one-click addition as a site.
type SiteCandidate struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}
