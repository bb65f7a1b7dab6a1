// Package watcher evaluates watch rules against the program catalog
// and turns new matches into notifications.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openrec/reggie/internal/metrics"
	"github.com/openrec/reggie/internal/reggie"
)

// Matcher runs watch-rule checks. Publishing is best effort; the
// store writes are the source of truth.
type Matcher struct {
	store     reggie.RuleStore
	publisher reggie.Publisher
	topic     string
	clock     reggie.Clock
	log       *zap.Logger
}

// NewMatcher wires a matcher. Publisher may be nil to skip event
// emission.
func NewMatcher(store reggie.RuleStore, publisher reggie.Publisher, topic string, clock reggie.Clock, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{store: store, publisher: publisher, topic: topic, clock: clock, log: log}
}

// NotificationTitle renders the human-readable alert title for a
// matched program.
func NotificationTitle(p reggie.Program) string {
	label := "open for registration"
	if p.RegistrationStatus == reggie.StatusWaitlist {
		label = "waitlist open"
	}
	return fmt.Sprintf("%s is %s", p.Name, label)
}

// NotificationBody joins the program's present optional facts, or
// returns nil when there are none.
func NotificationBody(p reggie.Program) *string {
	parts := []string{}
	if p.Location != "" {
		parts = append(parts, "at "+p.Location)
	}
	if p.StartDate != "" {
		parts = append(parts, "starting "+p.StartDate)
	}
	if p.SpotsAvailable != nil {
		noun := "spots"
		if *p.SpotsAvailable == 1 {
			noun = "spot"
		}
		parts = append(parts, fmt.Sprintf("%d %s available", *p.SpotsAvailable, noun))
	}
	if len(parts) == 0 {
		return nil
	}
	body := strings.Join(parts, " · ")
	return &body
}

// CheckRule evaluates one rule and returns the number of notifications
// created. A missing or inactive rule fails closed: zero matches and
// no writes, not even the checked stamp.
func (m *Matcher) CheckRule(ctx context.Context, ruleID int64) (int, error) {
	rule, err := m.store.GetRule(ctx, ruleID)
	if errors.Is(err, reggie.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load rule %d: %w", ruleID, err)
	}
	if !rule.Active {
		return 0, nil
	}

	matches, err := m.store.FindUnnotifiedMatches(ctx, rule)
	if err != nil {
		metrics.ObserveRuleCheck("error")
		return 0, fmt.Errorf("match rule %d: %w", ruleID, err)
	}

	notifs := make([]reggie.Notification, 0, len(matches))
	for _, p := range matches {
		notifs = append(notifs, reggie.Notification{
			Type:      reggie.NotificationTypeOpening,
			Title:     NotificationTitle(p),
			Body:      NotificationBody(p),
			ProgramID: p.ID,
		})
	}

	created, err := m.store.CreateNotificationsAndStamp(ctx, ruleID, notifs, m.clock.Now())
	if err != nil {
		metrics.ObserveRuleCheck("error")
		return 0, fmt.Errorf("notify rule %d: %w", ruleID, err)
	}

	metrics.ObserveRuleCheck("ok")
	if created > 0 {
		metrics.ObserveNotificationsCreated(created)
		m.log.Info("watch rule matched",
			zap.Int64("rule_id", ruleID),
			zap.Int("notifications", created))
		m.publishCreated(ctx, ruleID, created)
	}
	return created, nil
}

type notificationsCreatedEvent struct {
	Event       string `json:"event"`
	WatchRuleID int64  `json:"watch_rule_id"`
	Created     int    `json:"created"`
	CheckedAt   string `json:"checked_at"`
}

func (m *Matcher) publishCreated(ctx context.Context, ruleID int64, created int) {
	if m.publisher == nil {
		return
	}
	_, err := m.publisher.Publish(ctx, m.topic, notificationsCreatedEvent{
		Event:       "notifications.created",
		WatchRuleID: ruleID,
		Created:     created,
		CheckedAt:   m.clock.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		m.log.Warn("notification event publish failed",
			zap.Int64("rule_id", ruleID), zap.Error(err))
	}
}

// CheckAllRules checks every active rule and returns the total number
// of notifications created. One rule's failure is logged and does not
// stop the others.
func (m *Matcher) CheckAllRules(ctx context.Context) int {
	ids, err := m.store.ListActiveRuleIDs(ctx)
	if err != nil {
		m.log.Error("list active watch rules failed", zap.Error(err))
		return 0
	}

	total := 0
	for _, id := range ids {
		created, err := m.CheckRule(ctx, id)
		if err != nil {
			m.log.Error("watch rule check failed", zap.Int64("rule_id", id), zap.Error(err))
			continue
		}
		total += created
	}
	return total
}
