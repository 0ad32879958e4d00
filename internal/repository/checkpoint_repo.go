package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenlms/pocketsync/internal/models"
)

// CheckpointRepository defines persistence operations for per-category
// freshness timestamps. A missing row reads as the zero time.
type CheckpointRepository interface {
	LastSynced(ctx context.Context, userEmail, category string) (time.Time, error)
	Stamp(ctx context.Context, userEmail, category string, at time.Time) error
	Clear(ctx context.Context, userEmail, category string) error
}

type checkpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository instantiates a GORM-backed repository.
func NewCheckpointRepository(db *gorm.DB) CheckpointRepository {
	return &checkpointRepository{db: db}
}

func (r *checkpointRepository) LastSynced(ctx context.Context, userEmail, category string) (time.Time, error) {
	var checkpoint models.SyncCheckpoint
	err := r.db.WithContext(ctx).
		First(&checkpoint, "user_email = ? AND category = ?", userEmail, category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	if checkpoint.LastSyncedAtMs == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(checkpoint.LastSyncedAtMs), nil
}

func (r *checkpointRepository) Stamp(ctx context.Context, userEmail, category string, at time.Time) error {
	checkpoint := models.SyncCheckpoint{
		UserEmail:      userEmail,
		Category:       category,
		LastSyncedAtMs: at.UnixMilli(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_email"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_synced_at_ms", "updated_at"}),
	}).Create(&checkpoint).Error
}

func (r *checkpointRepository) Clear(ctx context.Context, userEmail, category string) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncCheckpoint{}).
		Where("user_email = ? AND category = ?", userEmail, category).
		Update("last_synced_at_ms", 0).Error
}
