package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openrec/reggie/internal/reggie"
	"github.com/openrec/reggie/internal/store/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []any
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return "msg-1", nil
}

func newTestMatcher(t *testing.T) (*Matcher, *memory.Store, *recordingPublisher) {
	t.Helper()
	clock := fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New(clock)
	pub := &recordingPublisher{}
	return NewMatcher(store, pub, "reggie-notifications", clock, nil), store, pub
}

func seedProgram(t *testing.T, store *memory.Store, p reggie.Program) reggie.Program {
	t.Helper()
	ctx := context.Background()
	site, err := store.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example", Type: reggie.SiteTypeDirect})
	require.NoError(t, err)
	out, err := store.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{p})
	require.NoError(t, err)
	return out[0]
}

func TestCheckRuleCreatesNotificationOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, store, pub := newTestMatcher(t)

	spots := 3
	seedProgram(t, store, reggie.Program{
		Name:               "Youth Soccer",
		Type:               "soccer",
		Location:           "Memorial Field",
		StartDate:          "2026-04-01",
		SpotsAvailable:     &spots,
		RegistrationStatus: reggie.StatusOpen,
	})

	activity := "soccer"
	rule, err := store.CreateRule(ctx, reggie.WatchRule{ActivityType: &activity, Active: true})
	require.NoError(t, err)

	created, err := m.CheckRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	notifs, err := store.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	require.Equal(t, reggie.NotificationTypeOpening, notifs[0].Type)
	require.Equal(t, "Youth Soccer is open for registration", notifs[0].Title)
	require.NotNil(t, notifs[0].Body)
	require.Equal(t, "at Memorial Field · starting 2026-04-01 · 3 spots available", *notifs[0].Body)

	// Immediate re-check matches nothing new.
	created, err = m.CheckRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Zero(t, created)

	notifs, err = store.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, notifs, 1)

	// One event for the run that created something.
	require.Len(t, pub.payloads, 1)
	require.Equal(t, "reggie-notifications", pub.topics[0])
}

func TestCheckRuleWaitlistAndClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, store, _ := newTestMatcher(t)

	site, err := store.CreateSite(ctx, reggie.Site{Name: "Rec", URL: "https://rec.example"})
	require.NoError(t, err)
	_, err = store.ReplaceSitePrograms(ctx, site.ID, []reggie.Program{
		{Name: "Swim Lessons", RegistrationStatus: reggie.StatusWaitlist},
		{Name: "Tennis Camp", RegistrationStatus: reggie.StatusClosed},
		{Name: "Pottery", RegistrationStatus: ""},
	})
	require.NoError(t, err)

	rule, err := store.CreateRule(ctx, reggie.WatchRule{Active: true})
	require.NoError(t, err)

	created, err := m.CheckRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	notifs, err := store.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	require.Equal(t, "Swim Lessons is waitlist open", notifs[0].Title)
	require.Nil(t, notifs[0].Body)
}

func TestCheckRuleStampsEvenWithoutMatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, store, _ := newTestMatcher(t)

	rule, err := store.CreateRule(ctx, reggie.WatchRule{Active: true})
	require.NoError(t, err)
	require.Nil(t, rule.LastCheckedAt)

	created, err := m.CheckRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Zero(t, created)

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastCheckedAt)
}

func TestCheckRuleInactiveFailsClosed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, store, _ := newTestMatcher(t)

	seedProgram(t, store, reggie.Program{Name: "Swim", RegistrationStatus: reggie.StatusOpen})
	rule, err := store.CreateRule(ctx, reggie.WatchRule{Active: false})
	require.NoError(t, err)

	created, err := m.CheckRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Zero(t, created)

	// No writes at all: not even the checked stamp.
	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Nil(t, got.LastCheckedAt)
	notifs, err := store.ListNotifications(ctx)
	require.NoError(t, err)
	require.Empty(t, notifs)
}

func TestCheckRuleMissingFailsClosed(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestMatcher(t)

	created, err := m.CheckRule(context.Background(), 404)
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestCheckRuleConcurrentRunsStayIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, store, _ := newTestMatcher(t)

	seedProgram(t, store, reggie.Program{Name: "Swim", RegistrationStatus: reggie.StatusOpen})
	rule, err := store.CreateRule(ctx, reggie.WatchRule{Active: true})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := m.CheckRule(ctx, rule.ID)
			require.NoError(t, err)
			results[i] = created
		}(i)
	}
	wg.Wait()

	total := 0
	for _, c := range results {
		total += c
	}
	require.Equal(t, 1, total)

	notifs, err := store.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
}

// failingRuleStore makes one rule's match query fail, to prove fault
// isolation across rules.
type failingRuleStore struct {
	reggie.RuleStore
	failID int64
}

func (f *failingRuleStore) FindUnnotifiedMatches(ctx context.Context, rule reggie.WatchRule) ([]reggie.Program, error) {
	if rule.ID == f.failID {
		return nil, errors.New("dangling site reference")
	}
	return f.RuleStore.FindUnnotifiedMatches(ctx, rule)
}

func TestCheckAllRulesIsolatesFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New(clock)

	seedProgram(t, store, reggie.Program{Name: "Swim", RegistrationStatus: reggie.StatusOpen})
	broken, err := store.CreateRule(ctx, reggie.WatchRule{Active: true})
	require.NoError(t, err)
	healthy, err := store.CreateRule(ctx, reggie.WatchRule{Active: true})
	require.NoError(t, err)

	m := NewMatcher(&failingRuleStore{RuleStore: store, failID: broken.ID}, nil, "", clock, nil)
	total := m.CheckAllRules(ctx)
	require.Equal(t, 1, total)

	// The healthy rule was still checked and notified.
	got, err := store.GetRule(ctx, healthy.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastCheckedAt)
}

func TestNotificationBodySingularSpot(t *testing.T) {
	t.Parallel()

	one := 1
	body := NotificationBody(reggie.Program{SpotsAvailable: &one})
	require.NotNil(t, body)
	require.Equal(t, "1 spot available", *body)

	require.Nil(t, NotificationBody(reggie.Program{Name: "No facts"}))
}

func TestCheckRulePublishFailureDoesNotFailCheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New(clock)
	pub := &recordingPublisher{err: errors.New("topic unavailable")}
	m := NewMatcher(store, pub, "reggie-notifications", clock, nil)

	seedProgram(t, store, reggie.Program{Name: "Swim", RegistrationStatus: reggie.StatusOpen})
	rule, err := store.CreateRule(ctx, reggie.WatchRule{Active: true})
	require.NoError(t, err)

	created, err := m.CheckRule(ctx, rule.ID)
	require.NoError(t, err)
	require.Equal(t, 1, created)
}
