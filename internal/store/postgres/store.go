// Package postgres provides the Postgres-backed Store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openrec/reggie/internal/reggie"
)

// searchLimit caps SearchPrograms result sets.
const searchLimit = 50

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements reggie.Store on a pgx pool.
type Store struct {
	pool db
}

// New connects a pool from the config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool, primarily for
// tests.
func NewWithPool(pool db) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const siteCols = "id, name, url, type, scrape_interval, profile, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (reggie.Site, error) {
	var site reggie.Site
	err := row.Scan(&site.ID, &site.Name, &site.URL, &site.Type,
		&site.ScrapeInterval, &site.Profile, &site.CreatedAt, &site.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return reggie.Site{}, reggie.ErrNotFound
	}
	if err != nil {
		return reggie.Site{}, fmt.Errorf("scan site: %w", err)
	}
	return site, nil
}

func (s *Store) ListSites(ctx context.Context) ([]reggie.Site, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+siteCols+" FROM sites ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	out := []reggie.Site{}
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, site)
	}
	return out, rows.Err()
}

func (s *Store) GetSite(ctx context.Context, id int64) (reggie.Site, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+siteCols+" FROM sites WHERE id = $1", id)
	return scanSite(row)
}

func (s *Store) CreateSite(ctx context.Context, site reggie.Site) (reggie.Site, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sites (name, url, type, scrape_interval, profile)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+siteCols,
		site.Name, site.URL, site.Type, site.ScrapeInterval, site.Profile)
	return scanSite(row)
}

func (s *Store) UpdateSite(ctx context.Context, id int64, patch reggie.SitePatch) (reggie.Site, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sites SET
			name = COALESCE($2, name),
			url = COALESCE($3, url),
			type = COALESCE($4, type),
			scrape_interval = COALESCE($5, scrape_interval),
			profile = COALESCE($6, profile),
			updated_at = now()
		WHERE id = $1
		RETURNING `+siteCols,
		id, patch.Name, patch.URL, patch.Type, patch.ScrapeInterval, patch.Profile)
	return scanSite(row)
}

func (s *Store) DeleteSite(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM sites WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reggie.ErrNotFound
	}
	return nil
}

const programCols = `id, site_id, name, type, age_group, start_date, end_date,
	day_of_week, start_time, end_time, location, cost, registration_status,
	spots_available, source_url, raw_content, created_at, updated_at`

func scanProgram(row rowScanner) (reggie.Program, error) {
	var p reggie.Program
	err := row.Scan(&p.ID, &p.SiteID, &p.Name, &p.Type, &p.AgeGroup,
		&p.StartDate, &p.EndDate, &p.DayOfWeek, &p.StartTime, &p.EndTime,
		&p.Location, &p.Cost, &p.RegistrationStatus, &p.SpotsAvailable,
		&p.SourceURL, &p.RawContent, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return reggie.Program{}, reggie.ErrNotFound
	}
	if err != nil {
		return reggie.Program{}, fmt.Errorf("scan program: %w", err)
	}
	return p, nil
}

const programFilterClause = `
	($1 = 0 OR site_id = $1)
	AND ($2 = '' OR type = $2)
	AND ($3 = '' OR age_group = $3)
	AND ($4 = '' OR registration_status = $4)`

func (s *Store) ListPrograms(ctx context.Context, filter reggie.ProgramFilter) ([]reggie.Program, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+programCols+" FROM programs WHERE"+programFilterClause+" ORDER BY id",
		filter.SiteID, filter.Type, filter.AgeGroup, filter.Status)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	out := []reggie.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SearchPrograms matches filters as case-insensitive substrings and
// bounds the result set; it backs the chat tool, which feeds rows into
// a model context.
func (s *Store) SearchPrograms(ctx context.Context, filter reggie.ProgramFilter) ([]reggie.ProgramWithSite, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.site_id, p.name, p.type, p.age_group, p.start_date,
			p.end_date, p.day_of_week, p.start_time, p.end_time, p.location,
			p.cost, p.registration_status, p.spots_available, p.source_url,
			p.raw_content, p.created_at, p.updated_at, s.name AS site_name
		FROM programs p
		JOIN sites s ON s.id = p.site_id
		WHERE ($1 = 0 OR p.site_id = $1)
			AND ($2 = '' OR p.type ILIKE '%' || $2 || '%')
			AND ($3 = '' OR p.age_group ILIKE '%' || $3 || '%')
			AND ($4 = '' OR p.registration_status ILIKE '%' || $4 || '%')
		ORDER BY p.id
		LIMIT `+strconv.Itoa(searchLimit),
		filter.SiteID, filter.Type, filter.AgeGroup, filter.Status)
	if err != nil {
		return nil, fmt.Errorf("search programs: %w", err)
	}
	defer rows.Close()

	out := []reggie.ProgramWithSite{}
	for rows.Next() {
		var p reggie.ProgramWithSite
		err := rows.Scan(&p.ID, &p.SiteID, &p.Name, &p.Type, &p.AgeGroup,
			&p.StartDate, &p.EndDate, &p.DayOfWeek, &p.StartTime, &p.EndTime,
			&p.Location, &p.Cost, &p.RegistrationStatus, &p.SpotsAvailable,
			&p.SourceURL, &p.RawContent, &p.CreatedAt, &p.UpdatedAt, &p.SiteName)
		if err != nil {
			return nil, fmt.Errorf("scan program row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceSitePrograms swaps the site's program set inside one
// transaction, so readers never observe a partial replacement.
func (s *Store) ReplaceSitePrograms(ctx context.Context, siteID int64, programs []reggie.Program) ([]reggie.Program, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin replace programs: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM sites WHERE id = $1)", siteID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check site: %w", err)
	}
	if !exists {
		return nil, reggie.ErrNotFound
	}

	if _, err := tx.Exec(ctx, "DELETE FROM programs WHERE site_id = $1", siteID); err != nil {
		return nil, fmt.Errorf("clear site programs: %w", err)
	}

	out := make([]reggie.Program, 0, len(programs))
	for _, p := range programs {
		row := tx.QueryRow(ctx, `
			INSERT INTO programs (site_id, name, type, age_group, start_date,
				end_date, day_of_week, start_time, end_time, location, cost,
				registration_status, spots_available, source_url, raw_content)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING `+programCols,
			siteID, p.Name, p.Type, p.AgeGroup, p.StartDate, p.EndDate,
			p.DayOfWeek, p.StartTime, p.EndTime, p.Location, p.Cost,
			p.RegistrationStatus, p.SpotsAvailable, p.SourceURL, p.RawContent)
		inserted, err := scanProgram(row)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit replace programs: %w", err)
	}
	return out, nil
}

const scrapeCols = "id, site_id, url, content, fetch_error, blob_uri, created_at"

func scanScrape(row rowScanner) (reggie.RawScrape, error) {
	var sc reggie.RawScrape
	err := row.Scan(&sc.ID, &sc.SiteID, &sc.URL, &sc.Content, &sc.FetchError,
		&sc.BlobURI, &sc.CreatedAt)
	if err != nil {
		return reggie.RawScrape{}, fmt.Errorf("scan raw scrape: %w", err)
	}
	return sc, nil
}

func (s *Store) InsertRawScrapes(ctx context.Context, scrapes []reggie.RawScrape) ([]reggie.RawScrape, error) {
	out := make([]reggie.RawScrape, 0, len(scrapes))
	for _, sc := range scrapes {
		row := s.pool.QueryRow(ctx, `
			INSERT INTO raw_scrapes (site_id, url, content, fetch_error, blob_uri)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+scrapeCols,
			sc.SiteID, sc.URL, sc.Content, sc.FetchError, sc.BlobURI)
		inserted, err := scanScrape(row)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

func (s *Store) ListRawScrapes(ctx context.Context, siteID int64) ([]reggie.RawScrape, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+scrapeCols+" FROM raw_scrapes WHERE site_id = $1 ORDER BY id DESC", siteID)
	if err != nil {
		return nil, fmt.Errorf("list raw scrapes: %w", err)
	}
	defer rows.Close()

	out := []reggie.RawScrape{}
	for rows.Next() {
		sc, err := scanScrape(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

const ruleCols = `id, site_id, program_id, activity_type, age_group, active,
	auto_register, last_checked_at, created_at, updated_at`

func scanRule(row rowScanner) (reggie.WatchRule, error) {
	var r reggie.WatchRule
	err := row.Scan(&r.ID, &r.SiteID, &r.ProgramID, &r.ActivityType,
		&r.AgeGroup, &r.Active, &r.AutoRegister, &r.LastCheckedAt,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return reggie.WatchRule{}, reggie.ErrNotFound
	}
	if err != nil {
		return reggie.WatchRule{}, fmt.Errorf("scan watch rule: %w", err)
	}
	return r, nil
}

func (s *Store) ListRules(ctx context.Context) ([]reggie.WatchRule, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+ruleCols+" FROM watch_rules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list watch rules: %w", err)
	}
	defer rows.Close()

	out := []reggie.WatchRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveRuleIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, "SELECT id FROM watch_rules WHERE active ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list active rule ids: %w", err)
	}
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan rule id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) GetRule(ctx context.Context, id int64) (reggie.WatchRule, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+ruleCols+" FROM watch_rules WHERE id = $1", id)
	return scanRule(row)
}

func (s *Store) CreateRule(ctx context.Context, rule reggie.WatchRule) (reggie.WatchRule, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO watch_rules (site_id, program_id, activity_type, age_group, active, auto_register)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+ruleCols,
		rule.SiteID, rule.ProgramID, rule.ActivityType, rule.AgeGroup,
		rule.Active, rule.AutoRegister)
	return scanRule(row)
}

func (s *Store) UpdateRule(ctx context.Context, id int64, patch reggie.RulePatch) (reggie.WatchRule, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE watch_rules SET
			site_id = COALESCE($2, site_id),
			program_id = COALESCE($3, program_id),
			activity_type = COALESCE($4, activity_type),
			age_group = COALESCE($5, age_group),
			active = COALESCE($6, active),
			auto_register = COALESCE($7, auto_register),
			updated_at = now()
		WHERE id = $1
		RETURNING `+ruleCols,
		id, patch.SiteID, patch.ProgramID, patch.ActivityType, patch.AgeGroup,
		patch.Active, patch.AutoRegister)
	return scanRule(row)
}

func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM watch_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete watch rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reggie.ErrNotFound
	}
	return nil
}

// FindUnnotifiedMatches runs the match query: actionable status, every
// non-null rule filter satisfied, and an anti-join against existing
// notifications for this rule.
func (s *Store) FindUnnotifiedMatches(ctx context.Context, rule reggie.WatchRule) ([]reggie.Program, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+programCols+`
		FROM programs
		WHERE registration_status IN ($1, $2)
			AND ($3::bigint IS NULL OR site_id = $3)
			AND ($4::bigint IS NULL OR id = $4)
			AND ($5::text IS NULL OR type = $5)
			AND ($6::text IS NULL OR age_group = $6)
			AND NOT EXISTS (
				SELECT 1 FROM notifications n
				WHERE n.watch_rule_id = $7 AND n.program_id = programs.id
			)
		ORDER BY id`,
		reggie.StatusOpen, reggie.StatusWaitlist,
		rule.SiteID, rule.ProgramID, rule.ActivityType, rule.AgeGroup, rule.ID)
	if err != nil {
		return nil, fmt.Errorf("find unnotified matches: %w", err)
	}
	defer rows.Close()

	out := []reggie.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateNotificationsAndStamp inserts the batch and stamps the rule in
// one transaction. ON CONFLICT DO NOTHING absorbs pairs another run
// already notified.
func (s *Store) CreateNotificationsAndStamp(ctx context.Context, ruleID int64, notifs []reggie.Notification, checkedAt time.Time) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin notify: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created := 0
	for _, n := range notifs {
		tag, err := tx.Exec(ctx, `
			INSERT INTO notifications (type, title, body, program_id, watch_rule_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (watch_rule_id, program_id) DO NOTHING`,
			n.Type, n.Title, n.Body, n.ProgramID, ruleID)
		if err != nil {
			return 0, fmt.Errorf("insert notification: %w", err)
		}
		created += int(tag.RowsAffected())
	}

	tag, err := tx.Exec(ctx,
		"UPDATE watch_rules SET last_checked_at = $2, updated_at = now() WHERE id = $1",
		ruleID, checkedAt)
	if err != nil {
		return 0, fmt.Errorf("stamp rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, reggie.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit notify: %w", err)
	}
	return created, nil
}

const notifCols = "id, type, title, body, program_id, watch_rule_id, read, created_at"

func scanNotification(row rowScanner) (reggie.Notification, error) {
	var n reggie.Notification
	err := row.Scan(&n.ID, &n.Type, &n.Title, &n.Body, &n.ProgramID,
		&n.WatchRuleID, &n.Read, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return reggie.Notification{}, reggie.ErrNotFound
	}
	if err != nil {
		return reggie.Notification{}, fmt.Errorf("scan notification: %w", err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context) ([]reggie.Notification, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+notifCols+" FROM notifications ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []reggie.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, id int64) (reggie.Notification, error) {
	row := s.pool.QueryRow(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = $1 RETURNING "+notifCols, id)
	return scanNotification(row)
}

var _ reggie.Store = (*Store)(nil)
