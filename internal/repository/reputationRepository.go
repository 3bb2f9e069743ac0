package repository

import (
	"context"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReputationRepository persists per-actor enforcement state. Every mutation
// is one INSERT ... ON CONFLICT statement so concurrent writers merge at the
// database.
type ReputationRepository struct {
	db *storage.Postgres
}

func NewReputationRepository(db *storage.Postgres) *ReputationRepository {
	return &ReputationRepository{db: db}
}

var actorConflict = []clause.Column{{Name: "actor_id"}}

// Retrieves the reputation record of an actor
func (r *ReputationRepository) Get(ctx context.Context, actorID string) (*models.Reputation, error) {
	var rep models.Reputation
	err := r.db.DB.WithContext(ctx).
		Where("actor_id = ?", actorID).
		First(&rep).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rep, nil
}

func (r *ReputationRepository) UpsertTier(ctx context.Context, actorID string, tier models.Tier, score int, calculatedAt time.Time) error {
	rep := &models.Reputation{
		ActorID:          actorID,
		Tier:             tier,
		ReputationScore:  score,
		LastCalculatedAt: &calculatedAt,
		UpdatedAt:        calculatedAt,
	}

	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   actorConflict,
			DoUpdates: clause.AssignmentColumns([]string{"tier", "reputation_score", "last_calculated_at", "updated_at"}),
		}).
		Create(rep).Error
}

func (r *ReputationRepository) RecordViolation(ctx context.Context, actorID string, at, cooldownUntil, pinnedUntil time.Time) error {
	rep := &models.Reputation{
		ActorID:          actorID,
		Tier:             models.TierNew,
		LastCalculatedAt: &pinnedUntil,
		ViolationCount:   1,
		LastViolationAt:  &at,
		CooldownUntil:    &cooldownUntil,
		UpdatedAt:        at,
	}

	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: actorConflict,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"violation_count":    gorm.Expr("reputations.violation_count + 1"),
				"last_violation_at":  at,
				"cooldown_until":     cooldownUntil,
				"tier":               models.TierNew,
				"last_calculated_at": pinnedUntil,
				"updated_at":         at,
			}),
		}).
		Create(rep).Error
}

func (r *ReputationRepository) SetFlagged(ctx context.Context, actorID string, flagged bool) error {
	rep := &models.Reputation{
		ActorID:          actorID,
		Tier:             models.TierNew,
		FlaggedForReview: flagged,
	}

	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: actorConflict,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"flagged_for_review": flagged,
			}),
		}).
		Create(rep).Error
}

// Resets violation state; the tier is recomputed on next use
func (r *ReputationRepository) ClearViolations(ctx context.Context, actorID string) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.Reputation{}).
		Where("actor_id = ?", actorID).
		Updates(map[string]interface{}{
			"flagged_for_review": false,
			"violation_count":    0,
			"last_violation_at":  nil,
			"cooldown_until":     nil,
			"last_calculated_at": nil,
		}).Error
}

// Retrieves every actor flagged for review
func (r *ReputationRepository) ListFlagged(ctx context.Context) ([]models.Reputation, error) {
	reps := []models.Reputation{}
	err := r.db.DB.WithContext(ctx).
		Where("flagged_for_review = ?", true).
		Order("actor_id ASC").
		Find(&reps).Error

	return reps, err
}
