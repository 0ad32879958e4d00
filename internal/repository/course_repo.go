package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenlms/pocketsync/internal/models"
)

// CourseRepository defines persistence operations for cached courses and
// course detail blobs.
type CourseRepository interface {
	List(ctx context.Context, userEmail string) ([]models.Course, error)
	ReplaceAll(ctx context.Context, userEmail string, courses []models.Course) error
	GetDetail(ctx context.Context, userEmail string, courseID uint) (models.CourseDetail, error)
	SaveDetail(ctx context.Context, detail *models.CourseDetail, materials []models.Material) error
	ListMaterials(ctx context.Context, userEmail string, courseID uint) ([]models.Material, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates a GORM-backed repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) List(ctx context.Context, userEmail string) ([]models.Course, error) {
	var courses []models.Course
	err := r.db.WithContext(ctx).
		Where("user_email = ?", userEmail).
		Order("name ASC").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}

	return courses, nil
}

// ReplaceAll swaps the cached course list wholesale; the server copy is
// authoritative so partial merges are never attempted.
func (r *courseRepository) ReplaceAll(ctx context.Context, userEmail string, courses []models.Course) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Course{}, "user_email = ?", userEmail).Error; err != nil {
			return err
		}
		if len(courses) == 0 {
			return nil
		}
		for i := range courses {
			courses[i].UserEmail = userEmail
		}
		return tx.Create(&courses).Error
	})
}

func (r *courseRepository) GetDetail(ctx context.Context, userEmail string, courseID uint) (models.CourseDetail, error) {
	var detail models.CourseDetail
	err := r.db.WithContext(ctx).
		First(&detail, "user_email = ? AND course_id = ?", userEmail, courseID).Error
	if err != nil {
		return models.CourseDetail{}, err
	}

	return detail, nil
}

func (r *courseRepository) SaveDetail(ctx context.Context, detail *models.CourseDetail, materials []models.Material) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_email"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).Create(detail).Error
		if err != nil {
			return err
		}

		if err := tx.Delete(&models.Material{}, "user_email = ? AND course_id = ?", detail.UserEmail, detail.CourseID).Error; err != nil {
			return err
		}
		if len(materials) == 0 {
			return nil
		}
		for i := range materials {
			materials[i].UserEmail = detail.UserEmail
			materials[i].CourseID = detail.CourseID
		}
		return tx.Create(&materials).Error
	})
}

func (r *courseRepository) ListMaterials(ctx context.Context, userEmail string, courseID uint) ([]models.Material, error) {
	var materials []models.Material
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND course_id = ?", userEmail, courseID).
		Order("title ASC").
		Find(&materials).Error
	if err != nil {
		return nil, err
	}

	return materials, nil
}
