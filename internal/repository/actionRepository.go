package repository

import (
	"context"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/storage"
	"gorm.io/gorm"
)

// ActionRepository is the durable counter store: one row per accepted
// action.
type ActionRepository struct {
	db *storage.Postgres
}

func NewActionRepository(db *storage.Postgres) *ActionRepository {
	return &ActionRepository{db: db}
}

// Inserts a new action record
func (r *ActionRepository) Append(ctx context.Context, record *models.ActionRecord) error {
	return r.db.DB.WithContext(ctx).Create(record).Error
}

// Counts records for actor/action performed at or after since
func (r *ActionRepository) CountSince(ctx context.Context, actorID, action string, since time.Time) (int, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.ActionRecord{}).
		Where("actor_id = ? AND action = ? AND performed_at >= ?", actorID, action, since).
		Count(&count).Error

	return int(count), err
}

// Finds the oldest record for actor/action performed at or after since
func (r *ActionRepository) OldestSince(ctx context.Context, actorID, action string, since time.Time) (time.Time, bool, error) {
	var record models.ActionRecord

	err := r.db.DB.WithContext(ctx).
		Select("performed_at").
		Where("actor_id = ? AND action = ? AND performed_at >= ?", actorID, action, since).
		Order("performed_at ASC").
		Take(&record).Error

	if err == gorm.ErrRecordNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	return record.PerformedAt, true, nil
}

// Retrieves an actor's records within a time range, newest first
func (r *ActionRepository) FindByActor(ctx context.Context, actorID string, from, to time.Time, limit int) ([]models.ActionRecord, error) {
	var records []models.ActionRecord

	err := r.db.DB.WithContext(ctx).
		Where("actor_id = ? AND performed_at BETWEEN ? AND ?", actorID, from, to).
		Order("performed_at DESC").
		Limit(limit).
		Find(&records).Error

	return records, err
}

// Deletes records older than the horizon
func (r *ActionRepository) PruneOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("performed_at < ?", horizon).
		Delete(&models.ActionRecord{})

	return result.RowsAffected, result.Error
}
