// Package main hosts the registration watch service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and the /v1 surface for sites, programs,
//     watch rules, notifications, discovery, site search, and chat. Store-backed routes run under a short
//     timeout; crawl and model routes get a generous one.
//   - Discovery pipeline: internal/discovery maps a site, filters candidate pages by a relevance heuristic,
//     fetches each in isolation, and hands the combined text to the extraction service. When extraction is
//     unavailable the run degrades: raw captures are still saved but the known program set is left untouched.
//   - Watcher: internal/watcher re-evaluates active watch rules on a fixed interval, creating at most one
//     notification per (rule, program) pair and stamping each rule's last check time. A failing rule never
//     blocks the others.
//   - Persistence & fanout: sites, programs, scrapes, rules, and notifications live in Postgres (or the
//     in-memory store for development). Raw page captures are archived to the configured blob store
//     (noop/local/GCS) and a compact Pub/Sub event is published when a check creates notifications.
//   - Configuration & plumbing: Viper populates config from env/files with the REGGIE_ prefix; zap provides
//     structured logging; Prometheus metrics are exported via /metrics; golang-migrate applies the schema
//     on startup when enabled.
//
// Operational notes:
//   - Crawl providers: "firecrawl" uses the hosted map/scrape/search API; "local" maps and fetches with
//     colly and goquery, escalating JS-gated pages to headless Chrome when enabled. Site search needs the
//     hosted provider.
//   - Shutdown: the process reacts to SIGINT/SIGTERM, drains the HTTP server, and stops the scheduler via
//     context cancellation.
//
// Run locally: go run ./cmd/reggie -config config.yaml (or rely solely on REGGIE_ env overrides, e.g.
// REGGIE_DB_PROVIDER=memory REGGIE_CRAWL_PROVIDER=local).
package main
