// Package memory provides an in-memory Store for tests and single
// process development runs. All operations are guarded by one mutex,
// so replace-and-read sequences behave like the transactional
// Postgres implementation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openrec/reggie/internal/reggie"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Store keeps all rows in maps keyed by id.
type Store struct {
	mu    sync.Mutex
	clock reggie.Clock

	nextSiteID    int64
	nextProgramID int64
	nextScrapeID  int64
	nextRuleID    int64
	nextNotifID   int64

	sites         map[int64]reggie.Site
	programs      map[int64]reggie.Program
	scrapes       map[int64]reggie.RawScrape
	rules         map[int64]reggie.WatchRule
	notifications map[int64]reggie.Notification
}

// New builds an empty store. A nil clock falls back to wall time.
func New(clock reggie.Clock) *Store {
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{
		clock:         clock,
		sites:         map[int64]reggie.Site{},
		programs:      map[int64]reggie.Program{},
		scrapes:       map[int64]reggie.RawScrape{},
		rules:         map[int64]reggie.WatchRule{},
		notifications: map[int64]reggie.Notification{},
	}
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}

func (s *Store) ListSites(ctx context.Context) ([]reggie.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reggie.Site, 0, len(s.sites))
	for _, site := range s.sites {
		out = append(out, site)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetSite(ctx context.Context, id int64) (reggie.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[id]
	if !ok {
		return reggie.Site{}, reggie.ErrNotFound
	}
	return site, nil
}

func (s *Store) CreateSite(ctx context.Context, site reggie.Site) (reggie.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.nextSiteID++
	site.ID = s.nextSiteID
	site.CreatedAt = now
	site.UpdatedAt = now
	s.sites[site.ID] = site
	return site, nil
}

func (s *Store) UpdateSite(ctx context.Context, id int64, patch reggie.SitePatch) (reggie.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[id]
	if !ok {
		return reggie.Site{}, reggie.ErrNotFound
	}
	if patch.Name != nil {
		site.Name = *patch.Name
	}
	if patch.URL != nil {
		site.URL = *patch.URL
	}
	if patch.Type != nil {
		site.Type = *patch.Type
	}
	if patch.ScrapeInterval != nil {
		site.ScrapeInterval = *patch.ScrapeInterval
	}
	if patch.Profile != nil {
		site.Profile = patch.Profile
	}
	site.UpdatedAt = s.clock.Now()
	s.sites[id] = site
	return site, nil
}

// DeleteSite removes the site and everything hanging off it, the same
// cascade the relational schema enforces with foreign keys.
func (s *Store) DeleteSite(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[id]; !ok {
		return reggie.ErrNotFound
	}
	delete(s.sites, id)

	deletedPrograms := map[int64]struct{}{}
	for pid, p := range s.programs {
		if p.SiteID == id {
			deletedPrograms[pid] = struct{}{}
			delete(s.programs, pid)
		}
	}
	for sid, sc := range s.scrapes {
		if sc.SiteID == id {
			delete(s.scrapes, sid)
		}
	}
	deletedRules := map[int64]struct{}{}
	for rid, r := range s.rules {
		if r.SiteID != nil && *r.SiteID == id {
			deletedRules[rid] = struct{}{}
			delete(s.rules, rid)
		}
	}
	for nid, n := range s.notifications {
		_, progGone := deletedPrograms[n.ProgramID]
		_, ruleGone := deletedRules[n.WatchRuleID]
		if progGone || ruleGone {
			delete(s.notifications, nid)
		}
	}
	s.unpinRules(deletedPrograms)
	return nil
}

// unpinRules clears program references on rules whose program was
// deleted, mirroring the schema's ON DELETE SET NULL. Callers hold the
// mutex.
func (s *Store) unpinRules(deletedPrograms map[int64]struct{}) {
	for rid, r := range s.rules {
		if r.ProgramID == nil {
			continue
		}
		if _, gone := deletedPrograms[*r.ProgramID]; gone {
			r.ProgramID = nil
			s.rules[rid] = r
		}
	}
}

func matchesFilter(p reggie.Program, f reggie.ProgramFilter) bool {
	if f.SiteID != 0 && p.SiteID != f.SiteID {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.AgeGroup != "" && p.AgeGroup != f.AgeGroup {
		return false
	}
	if f.Status != "" && p.RegistrationStatus != f.Status {
		return false
	}
	return true
}

func (s *Store) ListPrograms(ctx context.Context, filter reggie.ProgramFilter) ([]reggie.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []reggie.Program{}
	for _, p := range s.programs {
		if matchesFilter(p, filter) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// searchLimit caps SearchPrograms result sets.
const searchLimit = 50

func containsFold(value, needle string) bool {
	return needle == "" || strings.Contains(strings.ToLower(value), strings.ToLower(needle))
}

func matchesSearch(p reggie.Program, f reggie.ProgramFilter) bool {
	if f.SiteID != 0 && p.SiteID != f.SiteID {
		return false
	}
	return containsFold(p.Type, f.Type) &&
		containsFold(p.AgeGroup, f.AgeGroup) &&
		containsFold(p.RegistrationStatus, f.Status)
}

// SearchPrograms matches filters as case-insensitive substrings and
// bounds the result set; it backs the chat tool, which feeds rows into
// a model context.
func (s *Store) SearchPrograms(ctx context.Context, filter reggie.ProgramFilter) ([]reggie.ProgramWithSite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []reggie.ProgramWithSite{}
	for _, p := range s.programs {
		if !matchesSearch(p, filter) {
			continue
		}
		row := reggie.ProgramWithSite{Program: p}
		if site, ok := s.sites[p.SiteID]; ok {
			row.SiteName = site.Name
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	return out, nil
}

// ReplaceSitePrograms swaps the site's whole program set. The single
// mutex makes the swap atomic with respect to readers.
func (s *Store) ReplaceSitePrograms(ctx context.Context, siteID int64, programs []reggie.Program) ([]reggie.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[siteID]; !ok {
		return nil, reggie.ErrNotFound
	}
	deleted := map[int64]struct{}{}
	for pid, p := range s.programs {
		if p.SiteID == siteID {
			deleted[pid] = struct{}{}
			delete(s.programs, pid)
		}
	}
	for nid, n := range s.notifications {
		if _, gone := deleted[n.ProgramID]; gone {
			delete(s.notifications, nid)
		}
	}
	s.unpinRules(deleted)

	now := s.clock.Now()
	out := make([]reggie.Program, 0, len(programs))
	for _, p := range programs {
		s.nextProgramID++
		p.ID = s.nextProgramID
		p.SiteID = siteID
		p.CreatedAt = now
		p.UpdatedAt = now
		s.programs[p.ID] = p
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) InsertRawScrapes(ctx context.Context, scrapes []reggie.RawScrape) ([]reggie.RawScrape, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	out := make([]reggie.RawScrape, 0, len(scrapes))
	for _, sc := range scrapes {
		s.nextScrapeID++
		sc.ID = s.nextScrapeID
		sc.CreatedAt = now
		s.scrapes[sc.ID] = sc
		out = append(out, sc)
	}
	return out, nil
}

func (s *Store) ListRawScrapes(ctx context.Context, siteID int64) ([]reggie.RawScrape, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []reggie.RawScrape{}
	for _, sc := range s.scrapes {
		if sc.SiteID == siteID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) ListRules(ctx context.Context) ([]reggie.WatchRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reggie.WatchRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActiveRuleIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []int64{}
	for _, r := range s.rules {
		if r.Active {
			out = append(out, r.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) GetRule(ctx context.Context, id int64) (reggie.WatchRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return reggie.WatchRule{}, reggie.ErrNotFound
	}
	return rule, nil
}

func (s *Store) CreateRule(ctx context.Context, rule reggie.WatchRule) (reggie.WatchRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.nextRuleID++
	rule.ID = s.nextRuleID
	rule.LastCheckedAt = nil
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *Store) UpdateRule(ctx context.Context, id int64, patch reggie.RulePatch) (reggie.WatchRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return reggie.WatchRule{}, reggie.ErrNotFound
	}
	if patch.SiteID != nil {
		rule.SiteID = patch.SiteID
	}
	if patch.ProgramID != nil {
		rule.ProgramID = patch.ProgramID
	}
	if patch.ActivityType != nil {
		rule.ActivityType = patch.ActivityType
	}
	if patch.AgeGroup != nil {
		rule.AgeGroup = patch.AgeGroup
	}
	if patch.Active != nil {
		rule.Active = *patch.Active
	}
	if patch.AutoRegister != nil {
		rule.AutoRegister = *patch.AutoRegister
	}
	rule.UpdatedAt = s.clock.Now()
	s.rules[id] = rule
	return rule, nil
}

func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return reggie.ErrNotFound
	}
	delete(s.rules, id)
	for nid, n := range s.notifications {
		if n.WatchRuleID == id {
			delete(s.notifications, nid)
		}
	}
	return nil
}

func ruleMatches(rule reggie.WatchRule, p reggie.Program) bool {
	if p.RegistrationStatus != reggie.StatusOpen && p.RegistrationStatus != reggie.StatusWaitlist {
		return false
	}
	if rule.SiteID != nil && p.SiteID != *rule.SiteID {
		return false
	}
	if rule.ProgramID != nil && p.ID != *rule.ProgramID {
		return false
	}
	if rule.ActivityType != nil && p.Type != *rule.ActivityType {
		return false
	}
	if rule.AgeGroup != nil && p.AgeGroup != *rule.AgeGroup {
		return false
	}
	return true
}

func (s *Store) FindUnnotifiedMatches(ctx context.Context, rule reggie.WatchRule) ([]reggie.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notified := map[int64]struct{}{}
	for _, n := range s.notifications {
		if n.WatchRuleID == rule.ID {
			notified[n.ProgramID] = struct{}{}
		}
	}
	out := []reggie.Program{}
	for _, p := range s.programs {
		if !ruleMatches(rule, p) {
			continue
		}
		if _, done := notified[p.ID]; done {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateNotificationsAndStamp(ctx context.Context, ruleID int64, notifs []reggie.Notification, checkedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return 0, reggie.ErrNotFound
	}

	existing := map[int64]struct{}{}
	for _, n := range s.notifications {
		if n.WatchRuleID == ruleID {
			existing[n.ProgramID] = struct{}{}
		}
	}

	created := 0
	now := s.clock.Now()
	for _, n := range notifs {
		if _, dup := existing[n.ProgramID]; dup {
			continue
		}
		existing[n.ProgramID] = struct{}{}
		s.nextNotifID++
		n.ID = s.nextNotifID
		n.WatchRuleID = ruleID
		n.CreatedAt = now
		s.notifications[n.ID] = n
		created++
	}

	stamped := checkedAt
	rule.LastCheckedAt = &stamped
	rule.UpdatedAt = now
	s.rules[ruleID] = rule
	return created, nil
}

func (s *Store) ListNotifications(ctx context.Context) ([]reggie.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reggie.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id int64) (reggie.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return reggie.Notification{}, reggie.ErrNotFound
	}
	n.Read = true
	s.notifications[id] = n
	return n, nil
}

var _ reggie.Store = (*Store)(nil)
