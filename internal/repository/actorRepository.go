package repository

import (
	"context"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActorRepository reads actor profiles from the hub database.
type ActorRepository struct {
	db *storage.Postgres
}

func NewActorRepository(db *storage.Postgres) *ActorRepository {
	return &ActorRepository{db: db}
}

// Retrieves actor by id
func (r *ActorRepository) GetActor(ctx context.Context, actorID string) (*models.Actor, error) {
	var actor models.Actor
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", actorID).
		First(&actor).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &actor, nil
}

// Inserts or replaces an actor profile
func (r *ActorRepository) Save(ctx context.Context, actor *models.Actor) error {
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(actor).Error
}
