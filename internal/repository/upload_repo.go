package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/models"
)

// UploadRepository defines persistence operations for the queued offline
// file submissions.
type UploadRepository interface {
	Enqueue(ctx context.Context, upload *models.PendingUpload) error
	List(ctx context.Context, userEmail string) ([]models.PendingUpload, error)
	FindByAssessment(ctx context.Context, userEmail string, assessmentID uint) (models.PendingUpload, error)
	Save(ctx context.Context, upload *models.PendingUpload) error
	Delete(ctx context.Context, id uint) error
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository instantiates a GORM-backed repository.
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Enqueue(ctx context.Context, upload *models.PendingUpload) error {
	return r.db.WithContext(ctx).Create(upload).Error
}

func (r *uploadRepository) List(ctx context.Context, userEmail string) ([]models.PendingUpload, error) {
	var uploads []models.PendingUpload
	err := r.db.WithContext(ctx).
		Where("user_email = ?", userEmail).
		Order("submitted_at ASC").
		Find(&uploads).Error
	if err != nil {
		return nil, err
	}

	return uploads, nil
}

func (r *uploadRepository) FindByAssessment(ctx context.Context, userEmail string, assessmentID uint) (models.PendingUpload, error) {
	var upload models.PendingUpload
	err := r.db.WithContext(ctx).
		First(&upload, "user_email = ? AND assessment_id = ?", userEmail, assessmentID).Error
	if err != nil {
		return models.PendingUpload{}, err
	}

	return upload, nil
}

func (r *uploadRepository) Save(ctx context.Context, upload *models.PendingUpload) error {
	return r.db.WithContext(ctx).Save(upload).Error
}

func (r *uploadRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.PendingUpload{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
