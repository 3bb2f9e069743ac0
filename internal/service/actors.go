package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/ratelimit"
)

// Enforcer is the part of the rate limit engine the admin surface drives.
type Enforcer interface {
	Reputation(ctx context.Context, actorID string) (*models.Reputation, error)
	ResolveTier(ctx context.Context, actorID string) models.Tier
	IsInCooldown(ctx context.Context, actorID string) bool
	ApplyCooldown(ctx context.Context, actorID string, hours int) (time.Time, error)
	ClearViolations(ctx context.Context, actorID string) error
	ListFlaggedActors(ctx context.Context) ([]models.Reputation, error)
	CheckLimit(ctx context.Context, actorID, action string) (ratelimit.Decision, error)
}

// RingLister lists the rings an actor owns.
type RingLister interface {
	ListOwnedBy(ctx context.Context, actorID string) ([]models.Ring, error)
}

// ActionLister reads an actor's recorded actions, newest first.
type ActionLister interface {
	FindByActor(ctx context.Context, actorID string, from, to time.Time, limit int) ([]models.ActionRecord, error)
}

const (
	recentActionsWindow = 7 * 24 * time.Hour
	recentActionsLimit  = 20
)

// ActorReport is everything an operator sees about one actor.
type ActorReport struct {
	ActorID    string             `json:"actor_id"`
	Tier       models.Tier        `json:"tier"`
	InCooldown bool               `json:"in_cooldown"`
	Reputation *models.Reputation `json:"reputation"`
	Rings      []models.Ring      `json:"rings"`

	// RecentActions is omitted when the counter backend keeps no durable
	// history.
	RecentActions []models.ActionRecord `json:"recent_actions,omitempty"`
}

// ActorService backs the admin endpoints and the CLI.
type ActorService struct {
	enforcer Enforcer
	rings    RingLister
	actions  ActionLister
	clock    clock.Clock
}

// NewActorService builds the admin service. actions may be nil.
func NewActorService(enforcer Enforcer, rings RingLister, actions ActionLister, clk clock.Clock) *ActorService {
	if clk == nil {
		clk = clock.Real()
	}

	return &ActorService{
		enforcer: enforcer,
		rings:    rings,
		actions:  actions,
		clock:    clk,
	}
}

// Builds the admin view of an actor
func (s *ActorService) Report(ctx context.Context, actorID string) (*ActorReport, error) {
	// resolving first persists a fresh tier for known actors
	tier := s.enforcer.ResolveTier(ctx, actorID)

	rep, err := s.enforcer.Reputation(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("loading reputation: %w", err)
	}

	rings, err := s.rings.ListOwnedBy(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("listing rings: %w", err)
	}

	report := &ActorReport{
		ActorID:    actorID,
		Tier:       tier,
		InCooldown: s.enforcer.IsInCooldown(ctx, actorID),
		Reputation: rep,
		Rings:      rings,
	}

	if s.actions != nil {
		now := s.clock.Now()
		recent, err := s.actions.FindByActor(ctx, actorID, now.Add(-recentActionsWindow), now, recentActionsLimit)
		if err != nil {
			return nil, fmt.Errorf("listing recent actions: %w", err)
		}
		report.RecentActions = recent
	}

	return report, nil
}

func (s *ActorService) ApplyCooldown(ctx context.Context, actorID string, hours int) (time.Time, error) {
	return s.enforcer.ApplyCooldown(ctx, actorID, hours)
}

func (s *ActorService) ClearViolations(ctx context.Context, actorID string) error {
	return s.enforcer.ClearViolations(ctx, actorID)
}

func (s *ActorService) ListFlagged(ctx context.Context) ([]models.Reputation, error) {
	return s.enforcer.ListFlaggedActors(ctx)
}

func (s *ActorService) Check(ctx context.Context, actorID, action string) (ratelimit.Decision, error) {
	return s.enforcer.CheckLimit(ctx, actorID, action)
}
