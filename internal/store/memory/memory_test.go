package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openrec/reggie/internal/reggie"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestStore() *Store {
	return New(fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)})
}

func TestSiteCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()

	site, err := s.CreateSite(ctx, reggie.Site{Name: "Anytown Rec", URL: "https://anytownrec.gov", Type: reggie.SiteTypeDirect})
	require.NoError(t, err)
	require.Equal(t, int64(1), site.ID)
	require.False(t, site.CreatedAt.IsZero())

	got, err := s.GetSite(ctx, site.ID)
	require.NoError(t, err)
	require.Equal(t, "Anytown Rec", got.Name)

	name := "Anytown Recreation"
	updated, err := s.UpdateSite(ctx, site.ID, reggie.SitePatch{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)
	require.Equal(t, site.URL, updated.URL)

	sites, err := s.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)

	require.NoError(t, s.DeleteSite(ctx, site.ID))
	_, err = s.GetSite(ctx, site.ID)
	require.True(t, errors.Is(err, reggie.ErrNotFound))
	require.True(t, errors.Is(s.DeleteSite(ctx, site.ID), reggie.ErrNotFound))
}

func TestReplaceSiteProgramsSwapsWholeSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()
	site, err := s.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)

	first, err := s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{
		{Name: "Swim Lessons", RegistrationStatus: reggie.StatusOpen},
		{Name: "Youth Soccer"},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{
		{Name: "Tennis Camp"},
	})
	require.NoError(t, err)
	require.Len(t, second, 1)

	programs, err := s.ListPrograms(ctx, reggie.ProgramFilter{SiteID: site.ID})
	require.NoError(t, err)
	require.Len(t, programs, 1)
	require.Equal(t, "Tennis Camp", programs[0].Name)
	require.Equal(t, site.ID, programs[0].SiteID)
}

func TestReplaceSiteProgramsEmptySetAndMissingSite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()
	site, err := s.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)

	_, err = s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{{Name: "Swim"}})
	require.NoError(t, err)

	out, err := s.ReplaceSitePrograms(ctx, site.ID, nil)
	require.NoError(t, err)
	require.Empty(t, out)

	programs, err := s.ListPrograms(ctx, reggie.ProgramFilter{SiteID: site.ID})
	require.NoError(t, err)
	require.Empty(t, programs)

	_, err = s.ReplaceSitePrograms(ctx, 999, nil)
	require.True(t, errors.Is(err, reggie.ErrNotFound))
}

func TestProgramFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()
	site, err := s.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)

	_, err = s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{
		{Name: "Swim Lessons", Type: "swimming", AgeGroup: "5-7", RegistrationStatus: reggie.StatusOpen},
		{Name: "Adult Swim", Type: "swimming", AgeGroup: "adult", RegistrationStatus: reggie.StatusClosed},
		{Name: "Soccer", Type: "soccer", AgeGroup: "5-7"},
	})
	require.NoError(t, err)

	byType, err := s.ListPrograms(ctx, reggie.ProgramFilter{Type: "swimming"})
	require.NoError(t, err)
	require.Len(t, byType, 2)

	byStatus, err := s.ListPrograms(ctx, reggie.ProgramFilter{Status: reggie.StatusOpen})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	require.Equal(t, "Swim Lessons", byStatus[0].Name)

	joined, err := s.SearchPrograms(ctx, reggie.ProgramFilter{AgeGroup: "5-7"})
	require.NoError(t, err)
	require.Len(t, joined, 2)
	require.Equal(t, "Rec", joined[0].SiteName)
}

func TestSearchProgramsSubstringAndLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()
	site, err := s.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)

	_, err = s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{
		{Name: "Youth Soccer", Type: "Youth Soccer", RegistrationStatus: "Open"},
		{Name: "Swim Lessons", Type: "swimming"},
	})
	require.NoError(t, err)

	// Filters match as case-insensitive substrings, not exact values.
	out, err := s.SearchPrograms(ctx, reggie.ProgramFilter{Type: "soccer"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Youth Soccer", out[0].Name)

	out, err = s.SearchPrograms(ctx, reggie.ProgramFilter{Status: "open"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	out, err = s.SearchPrograms(ctx, reggie.ProgramFilter{Type: "basket"})
	require.NoError(t, err)
	require.Empty(t, out)

	many := make([]reggie.Program, 0, 60)
	for i := 0; i < 60; i++ {
		many = append(many, reggie.Program{Name: fmt.Sprintf("Program %02d", i)})
	}
	_, err = s.ReplaceSitePrograms(ctx, site.ID, many)
	require.NoError(t, err)

	out, err = s.SearchPrograms(ctx, reggie.ProgramFilter{})
	require.NoError(t, err)
	require.Len(t, out, 50)
}

func TestReplaceSiteProgramsUnpinsRules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()
	site, err := s.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)

	first, err := s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{
		{Name: "Swim Lessons", RegistrationStatus: reggie.StatusOpen},
	})
	require.NoError(t, err)

	rule, err := s.CreateRule(ctx, reggie.WatchRule{ProgramID: &first[0].ID, Active: true})
	require.NoError(t, err)

	// A routine discovery run replaces the program set; the pinned
	// rule loses its reference but survives.
	_, err = s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{
		{Name: "Tennis Camp"},
	})
	require.NoError(t, err)

	got, err := s.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Nil(t, got.ProgramID)
	require.True(t, got.Active)
}

func TestRawScrapesNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()
	site, err := s.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)

	_, err = s.InsertRawScrapes(ctx, []reggie.RawScrape{
		{SiteID: site.ID, URL: "https://rec.example/a", Content: "a"},
		{SiteID: site.ID, URL: "https://rec.example/b", FetchError: "timeout"},
	})
	require.NoError(t, err)

	scrapes, err := s.ListRawScrapes(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, scrapes, 2)
	require.Equal(t, "https://rec.example/b", scrapes[0].URL)
	require.Equal(t, "timeout", scrapes[0].FetchError)
}

func TestRuleCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()

	activity := "swimming"
	rule, err := s.CreateRule(ctx, reggie.WatchRule{ActivityType: &activity, Active: true})
	require.NoError(t, err)
	require.Nil(t, rule.LastCheckedAt)

	inactive := false
	updated, err := s.UpdateRule(ctx, rule.ID, reggie.RulePatch{Active: &inactive})
	require.NoError(t, err)
	require.False(t, updated.Active)

	ids, err := s.ListActiveRuleIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, s.DeleteRule(ctx, rule.ID))
	_, err = s.GetRule(ctx, rule.ID)
	require.True(t, errors.Is(err, reggie.ErrNotFound))
}

func TestFindUnnotifiedMatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()
	site, err := s.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)

	programs, err := s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{
		{Name: "Swim Open", Type: "swimming", RegistrationStatus: reggie.StatusOpen},
		{Name: "Swim Waitlist", Type: "swimming", RegistrationStatus: reggie.StatusWaitlist},
		{Name: "Swim Closed", Type: "swimming", RegistrationStatus: reggie.StatusClosed},
		{Name: "Soccer Open", Type: "soccer", RegistrationStatus: reggie.StatusOpen},
	})
	require.NoError(t, err)

	activity := "swimming"
	rule, err := s.CreateRule(ctx, reggie.WatchRule{ActivityType: &activity, Active: true})
	require.NoError(t, err)

	matches, err := s.FindUnnotifiedMatches(ctx, rule)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "Swim Open", matches[0].Name)
	require.Equal(t, "Swim Waitlist", matches[1].Name)

	// A wildcard rule matches every actionable program.
	wild, err := s.CreateRule(ctx, reggie.WatchRule{Active: true})
	require.NoError(t, err)
	all, err := s.FindUnnotifiedMatches(ctx, wild)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// After notifying, the same programs stop matching.
	_, err = s.CreateNotificationsAndStamp(ctx, rule.ID, []reggie.Notification{
		{Type: reggie.NotificationTypeOpening, Title: "x", ProgramID: programs[0].ID},
	}, time.Now())
	require.NoError(t, err)

	matches, err = s.FindUnnotifiedMatches(ctx, rule)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "Swim Waitlist", matches[0].Name)
}

func TestCreateNotificationsAndStampIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()
	site, err := s.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)
	programs, err := s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{
		{Name: "Swim", RegistrationStatus: reggie.StatusOpen},
	})
	require.NoError(t, err)

	rule, err := s.CreateRule(ctx, reggie.WatchRule{Active: true})
	require.NoError(t, err)

	checkedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	notifs := []reggie.Notification{{Type: reggie.NotificationTypeOpening, Title: "Swim is open for registration", ProgramID: programs[0].ID}}

	created, err := s.CreateNotificationsAndStamp(ctx, rule.ID, notifs, checkedAt)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	// Re-running with the same pair creates nothing but still stamps.
	later := checkedAt.Add(5 * time.Minute)
	created, err = s.CreateNotificationsAndStamp(ctx, rule.ID, notifs, later)
	require.NoError(t, err)
	require.Equal(t, 0, created)

	got, err := s.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastCheckedAt)
	require.True(t, got.LastCheckedAt.Equal(later))

	all, err := s.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestMarkNotificationRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()
	site, err := s.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)
	programs, err := s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{{Name: "Swim"}})
	require.NoError(t, err)
	rule, err := s.CreateRule(ctx, reggie.WatchRule{Active: true})
	require.NoError(t, err)
	_, err = s.CreateNotificationsAndStamp(ctx, rule.ID, []reggie.Notification{
		{Type: reggie.NotificationTypeOpening, Title: "t", ProgramID: programs[0].ID},
	}, time.Now())
	require.NoError(t, err)

	all, err := s.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.False(t, all[0].Read)

	n, err := s.MarkNotificationRead(ctx, all[0].ID)
	require.NoError(t, err)
	require.True(t, n.Read)

	_, err = s.MarkNotificationRead(ctx, 999)
	require.True(t, errors.Is(err, reggie.ErrNotFound))
}

func TestDeleteSiteCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore()
	site, err := s.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)
	programs, err := s.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{{Name: "Swim", RegistrationStatus: reggie.StatusOpen}})
	require.NoError(t, err)
	_, err = s.InsertRawScrapes(ctx, []reggie.RawScrape{{SiteID: site.ID, URL: site.URL, Content: "x"}})
	require.NoError(t, err)
	rule, err := s.CreateRule(ctx, reggie.WatchRule{SiteID: &site.ID, Active: true})
	require.NoError(t, err)
	// Pinned to the doomed program but not scoped to the site, so it
	// outlives the delete.
	crossRule, err := s.CreateRule(ctx, reggie.WatchRule{ProgramID: &programs[0].ID, Active: true})
	require.NoError(t, err)
	_, err = s.CreateNotificationsAndStamp(ctx, rule.ID, []reggie.Notification{
		{Type: reggie.NotificationTypeOpening, Title: "t", ProgramID: programs[0].ID},
	}, time.Now())
	require.NoError(t, err)

	require.NoError(t, s.DeleteSite(ctx, site.ID))

	remaining, err := s.ListPrograms(ctx, reggie.ProgramFilter{})
	require.NoError(t, err)
	require.Empty(t, remaining)
	scrapes, err := s.ListRawScrapes(ctx, site.ID)
	require.NoError(t, err)
	require.Empty(t, scrapes)
	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, crossRule.ID, rules[0].ID)
	require.Nil(t, rules[0].ProgramID)
	notifs, err := s.ListNotifications(ctx)
	require.NoError(t, err)
	require.Empty(t, notifs)
}
