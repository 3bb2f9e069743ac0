package repository

import (
	"context"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/storage"
	"gorm.io/gorm"
)

// RingRepository answers ownership and engagement questions about rings.
type RingRepository struct {
	db *storage.Postgres
}

func NewRingRepository(db *storage.Postgres) *RingRepository {
	return &RingRepository{db: db}
}

// Counts rings owned by an actor
func (r *RingRepository) CountRingsOwnedBy(ctx context.Context, actorID string) (int, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.Ring{}).
		Where("owner_id = ?", actorID).
		Count(&count).Error

	return int(count), err
}

// Retrieves the actor's most recently created ring
func (r *RingRepository) MostRecentRingOwnedBy(ctx context.Context, actorID string) (*models.RingSummary, error) {
	var ring models.Ring
	err := r.db.DB.WithContext(ctx).
		Select("id", "created_at").
		Where("owner_id = ?", actorID).
		Order("created_at DESC").
		Take(&ring).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &models.RingSummary{ID: ring.ID, CreatedAt: ring.CreatedAt}, nil
}

// Counts a ring's accepted posts. Fork notifications are recognised by their
// metadata, which is decoded here rather than queried so the same code runs
// on every dialect.
func (r *RingRepository) CountAcceptedPosts(ctx context.Context, ringID string, excludeNotifications bool) (int, error) {
	query := r.db.DB.WithContext(ctx).
		Model(&models.Post{}).
		Where("ring_id = ? AND status = ?", ringID, models.PostStatusAccepted)

	if excludeNotifications {
		postType := r.postTypeExpr()
		query = query.Where("("+postType+" IS NULL OR "+postType+" <> ?)", models.PostTypeNotification)
	}

	var count int64
	err := query.Count(&count).Error
	return int(count), err
}

// postTypeExpr extracts metadata.type in the connected database's JSON
// dialect. Metadata is stored as JSON text.
func (r *RingRepository) postTypeExpr() string {
	if r.db.DB.Dialector.Name() == "sqlite" {
		return "json_extract(metadata, '$.type')"
	}
	return "(CAST(metadata AS jsonb) ->> 'type')"
}

// Counts the actor's active rings that have at least one accepted post
func (r *RingRepository) CountActiveRingsWithAcceptedPosts(ctx context.Context, actorID string) (int, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.Ring{}).
		Where("owner_id = ? AND status = ?", actorID, models.RingStatusActive).
		Where("EXISTS (SELECT 1 FROM posts WHERE posts.ring_id = rings.id AND posts.status = ?)", models.PostStatusAccepted).
		Count(&count).Error

	return int(count), err
}

// Counts accepted posts authored by the actor
func (r *RingRepository) CountAcceptedPostsByAuthor(ctx context.Context, actorID string) (int, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.Post{}).
		Where("author_id = ? AND status = ?", actorID, models.PostStatusAccepted).
		Count(&count).Error

	return int(count), err
}

// Counts the actor's active memberships
func (r *RingRepository) CountActiveMemberships(ctx context.Context, actorID string) (int, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.Membership{}).
		Where("actor_id = ? AND status = ?", actorID, models.MembershipActive).
		Count(&count).Error

	return int(count), err
}

// Lists rings owned by an actor, newest first
func (r *RingRepository) ListOwnedBy(ctx context.Context, actorID string) ([]models.Ring, error) {
	rings := []models.Ring{}
	err := r.db.DB.WithContext(ctx).
		Where("owner_id = ?", actorID).
		Order("created_at DESC").
		Find(&rings).Error

	return rings, err
}
