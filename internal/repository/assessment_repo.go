package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenlms/pocketsync/internal/models"
)

// AssessmentRepository defines persistence operations for cached assessment
// snapshots.
type AssessmentRepository interface {
	Get(ctx context.Context, userEmail string, assessmentID uint) (models.Assessment, error)
	ListByCourse(ctx context.Context, userEmail string, courseID uint) ([]models.Assessment, error)
	Upsert(ctx context.Context, assessment *models.Assessment) error
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository instantiates a GORM-backed repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) Get(ctx context.Context, userEmail string, assessmentID uint) (models.Assessment, error) {
	var assessment models.Assessment
	err := r.db.WithContext(ctx).
		First(&assessment, "user_email = ? AND assessment_id = ?", userEmail, assessmentID).Error
	if err != nil {
		return models.Assessment{}, err
	}

	return assessment, nil
}

func (r *assessmentRepository) ListByCourse(ctx context.Context, userEmail string, courseID uint) ([]models.Assessment, error) {
	var assessments []models.Assessment
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND course_id = ?", userEmail, courseID).
		Order("assessment_id ASC").
		Find(&assessments).Error
	if err != nil {
		return nil, err
	}

	return assessments, nil
}

func (r *assessmentRepository) Upsert(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_email"}, {Name: "assessment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"course_id",
			"title",
			"kind",
			"duration_minutes",
			"available_at",
			"unavailable_at",
			"max_points",
			"max_attempts",
			"questions",
			"updated_at",
		}),
	}).Create(assessment).Error
}
