package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/models"
)

// AttemptRepository defines persistence operations for attempt records.
type AttemptRepository interface {
	Get(ctx context.Context, id string) (models.AttemptRecord, error)
	// FindUnsynced returns the in-progress or pending-sync record for the
	// (user, assessment) pair, if one exists.
	FindUnsynced(ctx context.Context, userEmail string, assessmentID uint) (models.AttemptRecord, error)
	ListByState(ctx context.Context, userEmail, state string) ([]models.AttemptRecord, error)
	Create(ctx context.Context, record *models.AttemptRecord) error
	Save(ctx context.Context, record *models.AttemptRecord) error
	Delete(ctx context.Context, id string) error
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository instantiates a GORM-backed repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Get(ctx context.Context, id string) (models.AttemptRecord, error) {
	var record models.AttemptRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return models.AttemptRecord{}, err
	}

	return record, nil
}

func (r *attemptRepository) FindUnsynced(ctx context.Context, userEmail string, assessmentID uint) (models.AttemptRecord, error) {
	var record models.AttemptRecord
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND assessment_id = ? AND state IN ?",
			userEmail, assessmentID,
			[]string{models.AttemptStateInProgress, models.AttemptStatePendingSync}).
		First(&record).Error
	if err != nil {
		return models.AttemptRecord{}, err
	}

	return record, nil
}

func (r *attemptRepository) ListByState(ctx context.Context, userEmail, state string) ([]models.AttemptRecord, error) {
	var records []models.AttemptRecord
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND state = ?", userEmail, state).
		Order("started_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *attemptRepository) Create(ctx context.Context, record *models.AttemptRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *attemptRepository) Save(ctx context.Context, record *models.AttemptRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *attemptRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.AttemptRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
