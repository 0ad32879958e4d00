package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenlms/pocketsync/internal/models"
)

// ClockStateRepository defines persistence operations for the per-user
// clock-integrity baseline.
type ClockStateRepository interface {
	Get(ctx context.Context, userEmail string) (models.UserClockState, error)
	Save(ctx context.Context, state *models.UserClockState) error
	Delete(ctx context.Context, userEmail string) error
}

type clockStateRepository struct {
	db *gorm.DB
}

// NewClockStateRepository instantiates a GORM-backed repository.
func NewClockStateRepository(db *gorm.DB) ClockStateRepository {
	return &clockStateRepository{db: db}
}

func (r *clockStateRepository) Get(ctx context.Context, userEmail string) (models.UserClockState, error) {
	var state models.UserClockState
	if err := r.db.WithContext(ctx).First(&state, "user_email = ?", userEmail).Error; err != nil {
		return models.UserClockState{}, err
	}

	return state, nil
}

func (r *clockStateRepository) Save(ctx context.Context, state *models.UserClockState) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"server_time_offset_ms",
			"last_checked_device_time_ms",
			"check_sequence",
			"updated_at",
		}),
	}).Create(state).Error
}

func (r *clockStateRepository) Delete(ctx context.Context, userEmail string) error {
	return r.db.WithContext(ctx).Delete(&models.UserClockState{}, "user_email = ?", userEmail).Error
}
