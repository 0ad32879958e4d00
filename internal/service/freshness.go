package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenlms/pocketsync/internal/models"
	"github.com/lumenlms/pocketsync/internal/repository"
)

// FreshnessBudgets holds the per-category maximum cache age.
type FreshnessBudgets struct {
	Courses          time.Duration
	AssessmentDetail time.Duration
	QuestionSets     time.Duration
}

// FreshnessService decides whether a cached category may be served without a
// network round trip. It is a pure invalidation policy: stale copies are
// never evicted, so a stale copy still serves as last-known-good when the
// network is unreachable.
type FreshnessService interface {
	Stale(ctx context.Context, userEmail, category string) (bool, error)
	MarkFresh(ctx context.Context, userEmail, category string) error
	Invalidate(ctx context.Context, userEmail, category string) error
}

type freshnessService struct {
	repo    repository.CheckpointRepository
	budgets FreshnessBudgets
	logger  zerolog.Logger
	now     func() time.Time
}

// NewFreshnessService builds the staleness policy.
func NewFreshnessService(repo repository.CheckpointRepository, budgets FreshnessBudgets, logger zerolog.Logger) FreshnessService {
	return &freshnessService{
		repo:    repo,
		budgets: budgets,
		logger:  logger.With().Str("component", "freshness_service").Logger(),
		now:     time.Now,
	}
}

func (s *freshnessService) budget(category string) (time.Duration, error) {
	switch category {
	case models.CategoryCourses:
		return s.budgets.Courses, nil
	case models.CategoryAssessmentDetail:
		return s.budgets.AssessmentDetail, nil
	case models.CategoryQuestionSets:
		return s.budgets.QuestionSets, nil
	default:
		return 0, fmt.Errorf("unknown freshness category %q", category)
	}
}

func (s *freshnessService) Stale(ctx context.Context, userEmail, category string) (bool, error) {
	budget, err := s.budget(category)
	if err != nil {
		return false, err
	}

	last, err := s.repo.LastSynced(ctx, userEmail, category)
	if err != nil {
		return false, fmt.Errorf("failed to read sync checkpoint: %w", err)
	}

	// Never synced is always stale, regardless of budget.
	if last.IsZero() {
		return true, nil
	}

	return s.now().Sub(last) > budget, nil
}

func (s *freshnessService) MarkFresh(ctx context.Context, userEmail, category string) error {
	if _, err := s.budget(category); err != nil {
		return err
	}
	return s.repo.Stamp(ctx, userEmail, category, s.now())
}

func (s *freshnessService) Invalidate(ctx context.Context, userEmail, category string) error {
	if _, err := s.budget(category); err != nil {
		return err
	}
	return s.repo.Clear(ctx, userEmail, category)
}
