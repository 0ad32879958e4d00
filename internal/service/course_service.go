package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/connectivity"
	"github.com/lumenlms/pocketsync/internal/models"
	"github.com/lumenlms/pocketsync/internal/remote"
	"github.com/lumenlms/pocketsync/internal/repository"
)

// ErrCourseNotFound indicates the course is not in the local cache.
var ErrCourseNotFound = errors.New("course not cached")

// ErrReviewUnavailableOffline indicates graded feedback lives server-side
// only and the device is unreachable.
var ErrReviewUnavailableOffline = errors.New("graded review requires connectivity")

// CourseService serves the locally-cached course catalog. Reads hit the
// local store first; a network round trip happens only when the cached
// category is past its freshness budget and the device is reachable. A
// failed refresh falls back to the stale copy, which is still the
// last-known-good view.
type CourseService interface {
	List(ctx context.Context, userEmail string) ([]models.Course, error)
	Detail(ctx context.Context, userEmail string, courseID uint) (models.CourseDetail, []models.Material, error)
	Assessments(ctx context.Context, userEmail string, courseID uint) ([]models.Assessment, error)
	GetAssessment(ctx context.Context, userEmail string, assessmentID uint) (models.Assessment, error)
	// Review fetches the server-graded view of the latest submitted attempt.
	// Grading authority stays server-side, so this never serves from cache.
	Review(ctx context.Context, userEmail string, assessmentID uint) (remote.SubmittedAssessmentInfo, error)
}

type courseService struct {
	courses     repository.CourseRepository
	assessments repository.AssessmentRepository
	gateway     Gateway
	fresh       FreshnessService
	watcher     connectivity.Watcher
	logger      zerolog.Logger
}

// NewCourseService builds the cache-first catalog reader.
func NewCourseService(
	courses repository.CourseRepository,
	assessments repository.AssessmentRepository,
	gateway Gateway,
	fresh FreshnessService,
	watcher connectivity.Watcher,
	logger zerolog.Logger,
) CourseService {
	return &courseService{
		courses:     courses,
		assessments: assessments,
		gateway:     gateway,
		fresh:       fresh,
		watcher:     watcher,
		logger:      logger.With().Str("component", "course_service").Logger(),
	}
}

func (s *courseService) List(ctx context.Context, userEmail string) ([]models.Course, error) {
	stale, err := s.fresh.Stale(ctx, userEmail, models.CategoryCourses)
	if err != nil {
		return nil, err
	}

	if stale && s.watcher.Online() {
		if err := s.refresh(ctx, userEmail); err != nil {
			// Stale-but-present beats an error page; the reconciler
			// retries on the next cycle.
			s.logger.Warn().Err(err).Str("user", userEmail).Msg("course refresh failed, serving cache")
		}
	}

	courses, err := s.courses.List(ctx, userEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached courses: %w", err)
	}
	return courses, nil
}

func (s *courseService) refresh(ctx context.Context, userEmail string) error {
	summaries, err := s.gateway.MyCourses(ctx)
	if err != nil {
		return err
	}

	courses := make([]models.Course, len(summaries))
	for i, summary := range summaries {
		courses[i] = models.Course{
			UserEmail:  userEmail,
			CourseID:   summary.ID,
			Name:       summary.Name,
			Code:       summary.Code,
			Teacher:    summary.Teacher,
			EnrolledAt: summary.EnrolledAt,
		}
	}

	if err := s.courses.ReplaceAll(ctx, userEmail, courses); err != nil {
		return err
	}
	return s.fresh.MarkFresh(ctx, userEmail, models.CategoryCourses)
}

func (s *courseService) Detail(ctx context.Context, userEmail string, courseID uint) (models.CourseDetail, []models.Material, error) {
	detail, err := s.courses.GetDetail(ctx, userEmail, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CourseDetail{}, nil, ErrCourseNotFound
		}
		return models.CourseDetail{}, nil, fmt.Errorf("failed to read course detail: %w", err)
	}

	materials, err := s.courses.ListMaterials(ctx, userEmail, courseID)
	if err != nil {
		return models.CourseDetail{}, nil, fmt.Errorf("failed to list materials: %w", err)
	}
	return detail, materials, nil
}

func (s *courseService) Assessments(ctx context.Context, userEmail string, courseID uint) ([]models.Assessment, error) {
	assessments, err := s.assessments.ListByCourse(ctx, userEmail, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached assessments: %w", err)
	}
	return assessments, nil
}

func (s *courseService) Review(ctx context.Context, userEmail string, assessmentID uint) (remote.SubmittedAssessmentInfo, error) {
	if !s.watcher.Online() {
		return remote.SubmittedAssessmentInfo{}, ErrReviewUnavailableOffline
	}

	// The assessment must at least be known locally; an id the catalog has
	// never seen is a caller bug, not a network condition.
	if _, err := s.assessments.Get(ctx, userEmail, assessmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return remote.SubmittedAssessmentInfo{}, ErrAssessmentNotFound
		}
		return remote.SubmittedAssessmentInfo{}, fmt.Errorf("failed to read cached assessment: %w", err)
	}

	info, err := s.gateway.SubmittedAssessment(ctx, assessmentID)
	if err != nil {
		return remote.SubmittedAssessmentInfo{}, fmt.Errorf("failed to fetch graded review: %w", err)
	}
	return info, nil
}

func (s *courseService) GetAssessment(ctx context.Context, userEmail string, assessmentID uint) (models.Assessment, error) {
	assessment, err := s.assessments.Get(ctx, userEmail, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assessment{}, ErrAssessmentNotFound
		}
		return models.Assessment{}, fmt.Errorf("failed to read cached assessment: %w", err)
	}
	return assessment, nil
}
