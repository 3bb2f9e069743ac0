package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/aman-churiwal/ringhub-gateway/internal/events"
	"github.com/aman-churiwal/ringhub-gateway/internal/idgen"
	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"golang.org/x/sync/errgroup"
)

// Policy configures how one action is limited.
type Policy struct {
	Limits TierLimits

	// QualityGate requires engagement on the actor's latest ring
	QualityGate bool

	// ReviewMonitor flags high-volume actors after each recorded action
	ReviewMonitor bool
}

// DefaultPolicies covers every action the gateway limits.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		models.ActionFork: {
			Limits:        DefaultForkLimits(),
			QualityGate:   true,
			ReviewMonitor: true,
		},
	}
}

type Stores struct {
	Counters    CounterStore
	Reputations ReputationStore
	Actors      ActorDirectory
	Rings       RingDirectory
}

type Config struct {
	Policies map[string]Policy

	// StoreTimeout bounds every individual store call
	StoreTimeout time.Duration

	Clock     clock.Clock
	Logger    *slog.Logger
	Publisher events.Publisher
}

// Engine composes the cooldown tracker, quality gate, tier classifier and
// counter store into a single allow/deny decision.
type Engine struct {
	policies     map[string]Policy
	counters     CounterStore
	reputations  ReputationStore
	actors       ActorDirectory
	classifier   *TierClassifier
	gate         *QualityGate
	violations   *ViolationTracker
	monitor      *ReviewMonitor
	publisher    events.Publisher
	clock        clock.Clock
	logger       *slog.Logger
	storeTimeout time.Duration
}

func New(cfg Config, stores Stores) (*Engine, error) {
	if stores.Counters == nil || stores.Reputations == nil || stores.Actors == nil || stores.Rings == nil {
		return nil, errors.New("ratelimit: all stores are required")
	}
	if cfg.Policies == nil {
		cfg.Policies = DefaultPolicies()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NoopPublisher{}
	}

	policies := make(map[string]Policy, len(cfg.Policies))
	for action, p := range cfg.Policies {
		limits, err := p.Limits.Normalize()
		if err != nil {
			return nil, fmt.Errorf("ratelimit: policy %q: %w", action, err)
		}
		p.Limits = limits
		policies[action] = p
	}

	logger := cfg.Logger.With("component", "ratelimit")

	return &Engine{
		policies:     policies,
		counters:     stores.Counters,
		reputations:  stores.Reputations,
		actors:       stores.Actors,
		classifier:   NewTierClassifier(stores.Actors, stores.Rings, stores.Reputations, cfg.Clock, logger, cfg.StoreTimeout),
		gate:         NewQualityGate(stores.Rings, cfg.Clock, logger, cfg.StoreTimeout),
		violations:   NewViolationTracker(stores.Reputations, cfg.Publisher, cfg.Clock, logger, cfg.StoreTimeout),
		monitor:      NewReviewMonitor(stores.Counters, stores.Reputations, cfg.Publisher, cfg.Clock, logger, cfg.StoreTimeout),
		publisher:    cfg.Publisher,
		clock:        cfg.Clock,
		logger:       logger,
		storeTimeout: cfg.StoreTimeout,
	}, nil
}

// CheckLimit decides whether actorID may perform action now. It does not
// record anything; callers report success through RecordAction.
//
// Two concurrent checks for the same actor can both observe usage below the
// cap and both be allowed. That race is accepted: MaxHourly bounds how far
// an actor can overshoot, and no lock spans the check and the record.
func (e *Engine) CheckLimit(ctx context.Context, actorID, action string) (Decision, error) {
	policy, ok := e.policies[action]
	if !ok {
		return Decision{}, unknownAction(action)
	}

	d := e.decide(ctx, actorID, action, policy)

	outcome := "allowed"
	if !d.Allowed {
		outcome = string(d.Reason)
		e.logger.Info("action denied",
			"actor_id", actorID,
			"action", action,
			"reason", d.Reason,
			"tier", d.Tier,
			"window", d.Window,
			"retry_at", d.RetryAt(),
		)
		if err := e.publisher.Publish(ctx, events.TopicForkDenied, events.ForkDenied{
			ActorID: actorID,
			Action:  action,
			Reason:  string(d.Reason),
			Tier:    d.Tier.String(),
			RetryAt: d.RetryAt(),
		}); err != nil {
			e.logger.Warn("failed to publish event", "topic", events.TopicForkDenied, "error", err)
		}
	}
	decisionCount.WithLabelValues(action, d.Tier.String(), outcome).Inc()

	return d, nil
}

func (e *Engine) decide(ctx context.Context, actorID, action string, policy Policy) Decision {
	now := e.clock.Now()

	if e.isAdmin(ctx, actorID) {
		return adminDecision(now)
	}

	if rep, in := e.violations.ActiveCooldown(ctx, actorID); in {
		return cooldownDecision(rep)
	}

	if policy.QualityGate {
		if res := e.gate.Check(ctx, actorID); !res.Passed {
			tier := e.classifier.ResolveTier(ctx, actorID)
			return gateDecision(now, tier, res.Reason)
		}
	}

	tier := e.classifier.ResolveTier(ctx, actorID)
	caps := policy.Limits.For(tier)
	used := e.usage(ctx, actorID, action, now)

	return quotaDecision(tier, caps, used)
}

func (e *Engine) isAdmin(ctx context.Context, actorID string) bool {
	ctx, cancel := bounded(ctx, e.storeTimeout)
	defer cancel()

	actor, err := e.actors.GetActor(ctx, actorID)
	if err != nil {
		storeErrors.WithLabelValues("actor_get").Inc()
		e.logger.Warn("admin check failed, treating as regular actor", "actor_id", actorID, "error", err)
		return false
	}
	return actor != nil && actor.IsAdmin
}

type windowUsage struct {
	used  int
	reset time.Time
}

type usageSet struct {
	hourly, daily, weekly windowUsage
}

// usage counts the three rolling windows concurrently. A failed count is
// treated as zero usage for that window.
func (e *Engine) usage(ctx context.Context, actorID, action string, now time.Time) usageSet {
	var u usageSet

	var g errgroup.Group
	for _, w := range []struct {
		length time.Duration
		out    *windowUsage
	}{
		{HourWindow, &u.hourly},
		{DayWindow, &u.daily},
		{WeekWindow, &u.weekly},
	} {
		g.Go(func() error {
			*w.out = e.window(ctx, actorID, action, now, w.length)
			return nil
		})
	}
	_ = g.Wait()

	return u
}

// window returns usage in [now-length, now] and the time the oldest counted
// record leaves the window. An empty window resets a full length from now.
func (e *Engine) window(ctx context.Context, actorID, action string, now time.Time, length time.Duration) windowUsage {
	since := now.Add(-length)
	wu := windowUsage{reset: now.Add(length)}

	cctx, cancel := bounded(ctx, e.storeTimeout)
	count, err := e.counters.CountSince(cctx, actorID, action, since)
	cancel()
	if err != nil {
		storeErrors.WithLabelValues("counter_count").Inc()
		e.logger.Warn("usage count failed, failing open", "actor_id", actorID, "action", action, "window", length, "error", err)
		return wu
	}
	wu.used = count
	if count == 0 {
		return wu
	}

	octx, cancel := bounded(ctx, e.storeTimeout)
	oldest, ok, err := e.counters.OldestSince(octx, actorID, action, since)
	cancel()
	if err != nil {
		storeErrors.WithLabelValues("counter_oldest").Inc()
		e.logger.Warn("oldest record lookup failed", "actor_id", actorID, "action", action, "window", length, "error", err)
		return wu
	}
	if ok {
		wu.reset = oldest.Add(length)
	}
	return wu
}

func adminDecision(now time.Time) Decision {
	return Decision{
		Allowed:   true,
		Remaining: Counts{Hourly: AdminRemaining, Daily: AdminRemaining, Weekly: AdminRemaining},
		ResetTimes: ResetTimes{
			Hourly: now.Add(HourWindow),
			Daily:  now.Add(DayWindow),
			Weekly: now.Add(WeekWindow),
		},
		Tier: models.TierAdmin,
	}
}

func cooldownDecision(rep *models.Reputation) Decision {
	until := *rep.CooldownUntil
	tier := rep.Tier
	if !tier.IsStored() {
		tier = models.TierNew
	}
	return Decision{
		Allowed:    false,
		ResetTimes: ResetTimes{Hourly: until, Daily: until, Weekly: until},
		Tier:       tier,
		Reason:     ReasonCooldown,
		Message:    "actor is in cooldown",
	}
}

func gateDecision(now time.Time, tier models.Tier, reason string) Decision {
	reset := now.Add(DayWindow)
	return Decision{
		Allowed: false,
		ResetTimes: ResetTimes{
			Hourly: reset,
			Daily:  reset,
			Weekly: now.Add(WeekWindow),
		},
		Tier:    tier,
		Reason:  ReasonQualityGate,
		Message: reason,
	}
}

func quotaDecision(tier models.Tier, caps WindowCaps, u usageSet) Decision {
	d := Decision{
		Allowed: u.hourly.used < caps.Hourly && u.daily.used < caps.Daily && u.weekly.used < caps.Weekly,
		Remaining: Counts{
			Hourly: max(0, caps.Hourly-u.hourly.used),
			Daily:  max(0, caps.Daily-u.daily.used),
			Weekly: max(0, caps.Weekly-u.weekly.used),
		},
		ResetTimes: ResetTimes{
			Hourly: u.hourly.reset,
			Daily:  u.daily.reset,
			Weekly: u.weekly.reset,
		},
		Tier: tier,
	}
	if d.Allowed {
		return d
	}

	d.Reason = ReasonRateLimit
	switch {
	case u.hourly.used >= caps.Hourly:
		d.Window = WindowHourly
	case u.daily.used >= caps.Daily:
		d.Window = WindowDaily
	default:
		d.Window = WindowWeekly
	}
	d.Message = fmt.Sprintf("%s limit reached for tier %s", d.Window, tier)
	return d
}

// RecordAction appends an accepted action and runs the review monitor. Store
// failures are logged and swallowed so they never break the upstream action
// that already succeeded; only an unknown action is returned as an error.
func (e *Engine) RecordAction(ctx context.Context, actorID, action string, metadata map[string]any) error {
	policy, ok := e.policies[action]
	if !ok {
		return unknownAction(action)
	}

	id, err := idgen.NewActionID()
	if err != nil {
		e.logger.Error("failed to generate action id", "actor_id", actorID, "action", action, "error", err)
		return nil
	}

	record := &models.ActionRecord{
		ID:          id,
		ActorID:     actorID,
		Action:      action,
		PerformedAt: e.clock.Now(),
		Metadata:    metadata,
	}

	actx, cancel := bounded(ctx, e.storeTimeout)
	err = e.counters.Append(actx, record)
	cancel()
	if err != nil {
		storeErrors.WithLabelValues("counter_append").Inc()
		e.logger.Error("failed to record action", "actor_id", actorID, "action", action, "error", err)
	} else {
		recordedActions.WithLabelValues(action).Inc()
	}

	if policy.ReviewMonitor {
		e.monitor.Observe(ctx, actorID, action)
	}

	return nil
}

// ResolveTier exposes the classifier for callers that only need the tier.
func (e *Engine) ResolveTier(ctx context.Context, actorID string) models.Tier {
	return e.classifier.ResolveTier(ctx, actorID)
}

func (e *Engine) IsInCooldown(ctx context.Context, actorID string) bool {
	return e.violations.IsInCooldown(ctx, actorID)
}

// profilePurger is implemented by actor directories that cache profiles.
type profilePurger interface {
	Purge(actorID string)
}

// purgeProfile makes the next decision re-read the actor's profile.
func (e *Engine) purgeProfile(actorID string) {
	if p, ok := e.actors.(profilePurger); ok {
		p.Purge(actorID)
	}
}

// ApplyCooldown is admin-only.
func (e *Engine) ApplyCooldown(ctx context.Context, actorID string, hours int) (time.Time, error) {
	until, err := e.violations.ApplyCooldown(ctx, actorID, hours)
	if err != nil {
		return until, err
	}
	e.purgeProfile(actorID)
	return until, nil
}

// ClearViolations is admin-only.
func (e *Engine) ClearViolations(ctx context.Context, actorID string) error {
	if err := e.violations.ClearViolations(ctx, actorID); err != nil {
		return err
	}
	e.purgeProfile(actorID)
	return nil
}

// ListFlaggedActors is admin-only.
func (e *Engine) ListFlaggedActors(ctx context.Context) ([]models.Reputation, error) {
	ctx, cancel := bounded(ctx, e.storeTimeout)
	defer cancel()

	reps, err := e.reputations.ListFlagged(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing flagged actors: %w", err)
	}
	return reps, nil
}

// Reputation returns the stored record, nil when the actor has none.
func (e *Engine) Reputation(ctx context.Context, actorID string) (*models.Reputation, error) {
	ctx, cancel := bounded(ctx, e.storeTimeout)
	defer cancel()
	return e.reputations.Get(ctx, actorID)
}

// PruneOlderThan drops counter records older than horizon.
func (e *Engine) PruneOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	return e.counters.PruneOlderThan(ctx, horizon)
}

// Actions lists the actions the engine has policies for, sorted.
func (e *Engine) Actions() []string {
	return slices.Sorted(maps.Keys(e.policies))
}
