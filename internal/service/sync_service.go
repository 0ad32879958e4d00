package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/connectivity"
	"github.com/lumenlms/pocketsync/internal/models"
	"github.com/lumenlms/pocketsync/internal/observability"
	"github.com/lumenlms/pocketsync/internal/remote"
	"github.com/lumenlms/pocketsync/internal/repository"
)

var (
	// ErrSyncInFlight indicates a reconciliation cycle is already running;
	// the second trigger is a no-op.
	ErrSyncInFlight = errors.New("sync already in flight")
	// ErrSyncCooldown indicates the previous cycle finished too recently.
	ErrSyncCooldown = errors.New("sync cooldown active")
	// ErrSessionExpired indicates the stored session token lapsed; the
	// server would reject every push, so the cycle never starts.
	ErrSessionExpired = errors.New("session expired, re-login required")
)

// SyncOutcome classifies a finished reconciliation cycle for reporting.
type SyncOutcome string

const (
	// SyncOutcomeSuccess means student work synced with no errors.
	SyncOutcomeSuccess SyncOutcome = "success"
	// SyncOutcomePartial means some student work synced but errors occurred.
	SyncOutcomePartial SyncOutcome = "partial"
	// SyncOutcomeError means only errors occurred, no student work synced.
	SyncOutcomeError SyncOutcome = "error"
	// SyncOutcomeSilent means only background refreshes happened.
	SyncOutcomeSilent SyncOutcome = "silent"
)

// SyncReport summarises one reconciliation cycle.
type SyncReport struct {
	UserEmail      string    `json:"user_email"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	SyncedAttempts int       `json:"synced_attempts"`
	SyncedUploads  int       `json:"synced_uploads"`
	Refreshed      []string  `json:"refreshed,omitempty"`
	Errors         []string  `json:"errors,omitempty"`
}

// Outcome derives the reporting class: synced work with no errors is a
// success, synced work plus errors is partial, errors alone recommend a
// connectivity retry, and pure background refreshes stay silent.
func (r SyncReport) Outcome() SyncOutcome {
	synced := r.SyncedAttempts + r.SyncedUploads
	switch {
	case synced > 0 && len(r.Errors) == 0:
		return SyncOutcomeSuccess
	case synced > 0:
		return SyncOutcomePartial
	case len(r.Errors) > 0:
		return SyncOutcomeError
	default:
		return SyncOutcomeSilent
	}
}

// SyncService drains locally-completed work to the server on reconnect and
// refreshes locally-cached server-derived state.
type SyncService interface {
	// Run executes one full reconciliation cycle. It is guarded by a
	// single-flight flag and a cooldown; re-running a drained queue is safe.
	Run(ctx context.Context, userEmail string) (SyncReport, error)
	// Watch consumes the reachability stream and fires Run on each
	// offline-to-online edge.
	Watch(ctx context.Context, userEmail string, watcher connectivity.Watcher)
	// LastReport returns the most recent cycle's report, if any.
	LastReport() (SyncReport, bool)
}

type syncService struct {
	clock       ClockService
	gateway     Gateway
	attempts    repository.AttemptRepository
	uploads     repository.UploadRepository
	statuses    repository.StatusRepository
	courses     repository.CourseRepository
	assessments repository.AssessmentRepository
	fresh       FreshnessService
	cooldown    time.Duration
	logger      zerolog.Logger
	now         func() time.Time

	inFlight atomic.Bool
	mu       sync.Mutex
	lastRun  time.Time
	lastRep  *SyncReport
}

// NewSyncService builds the reconciler.
func NewSyncService(
	clock ClockService,
	gateway Gateway,
	attempts repository.AttemptRepository,
	uploads repository.UploadRepository,
	statuses repository.StatusRepository,
	courses repository.CourseRepository,
	assessments repository.AssessmentRepository,
	fresh FreshnessService,
	cooldown time.Duration,
	logger zerolog.Logger,
) SyncService {
	return &syncService{
		clock:       clock,
		gateway:     gateway,
		attempts:    attempts,
		uploads:     uploads,
		statuses:    statuses,
		courses:     courses,
		assessments: assessments,
		fresh:       fresh,
		cooldown:    cooldown,
		logger:      logger.With().Str("component", "sync_service").Logger(),
		now:         time.Now,
	}
}

func (s *syncService) LastReport() (SyncReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRep == nil {
		return SyncReport{}, false
	}
	return *s.lastRep, true
}

func (s *syncService) Run(ctx context.Context, userEmail string) (SyncReport, error) {
	if s.gateway.SessionExpired(s.now()) {
		return SyncReport{}, ErrSessionExpired
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return SyncReport{}, ErrSyncInFlight
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	if !s.lastRun.IsZero() && s.now().Sub(s.lastRun) < s.cooldown {
		s.mu.Unlock()
		return SyncReport{}, ErrSyncCooldown
	}
	s.lastRun = s.now()
	s.mu.Unlock()

	report := SyncReport{UserEmail: userEmail, StartedAt: s.now()}

	// Phase 1: re-baseline the clock first so every later time-sensitive
	// decision in this session uses a trusted offset.
	s.rebaseline(ctx, userEmail, &report)

	// Phase 2: drain pending work. Items are independent; one failure does
	// not block the rest.
	touched := s.drain(ctx, userEmail, &report)

	// Phase 3: the drain only pushed the work; the student-facing
	// categorisation depends on the server's acknowledged state, so each
	// touched assessment gets its derived status re-fetched.
	s.refreshStatuses(ctx, userEmail, touched, &report)

	// Phase 4: opportunistic refresh of stale categories, independent of the
	// drain outcome.
	s.refreshStale(ctx, userEmail, &report)

	report.FinishedAt = s.now()

	s.mu.Lock()
	s.lastRep = &report
	s.mu.Unlock()

	outcome := report.Outcome()
	observability.SyncCycles().WithLabelValues(string(outcome)).Inc()

	if outcome != SyncOutcomeSilent {
		event := s.logger.Info()
		if outcome == SyncOutcomeError {
			event = s.logger.Error()
		}
		event.
			Str("user", userEmail).
			Str("outcome", string(outcome)).
			Int("synced_attempts", report.SyncedAttempts).
			Int("synced_uploads", report.SyncedUploads).
			Int("errors", len(report.Errors)).
			Msg("sync cycle finished")
	}

	return report, nil
}

func (s *syncService) rebaseline(ctx context.Context, userEmail string, report *SyncReport) {
	deviceTime := s.now()
	serverTime, err := s.gateway.ServerTime(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("server time fetch: %v", err))
		return
	}

	if err := s.clock.SaveServerTime(ctx, userEmail, serverTime, deviceTime); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("clock re-baseline: %v", err))
	}
}

// drain pushes every queued upload and completed attempt, deleting each local
// row only after the server acknowledged it. Returns the assessment ids whose
// work was accepted, mapped to whether they are file-based.
func (s *syncService) drain(ctx context.Context, userEmail string, report *SyncReport) map[uint]bool {
	touched := make(map[uint]bool)

	uploads, err := s.uploads.List(ctx, userEmail)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list pending uploads: %v", err))
	}
	for _, upload := range uploads {
		meta := remote.FileSubmissionMeta{
			AssessmentID:     upload.AssessmentID,
			FilePath:         upload.FilePath,
			OriginalFilename: upload.OriginalFilename,
			SubmittedAt:      upload.SubmittedAt,
		}

		if err := s.gateway.SyncFileSubmission(ctx, meta); err != nil && !isDuplicate(err) {
			report.Errors = append(report.Errors, fmt.Sprintf("upload %s: %v", upload.OriginalFilename, err))
			upload.UploadAttempts++
			upload.LastError = err.Error()
			if serr := s.uploads.Save(ctx, &upload); serr != nil {
				s.logger.Error().Err(serr).Uint("upload_id", upload.ID).Msg("failed to record upload failure")
			}
			continue
		}

		if err := s.uploads.Delete(ctx, upload.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			report.Errors = append(report.Errors, fmt.Sprintf("dequeue upload %d: %v", upload.ID, err))
			continue
		}
		report.SyncedUploads++
		touched[upload.AssessmentID] = true
		observability.SyncedWork().WithLabelValues("upload").Inc()
	}

	attempts, err := s.attempts.ListByState(ctx, userEmail, models.AttemptStatePendingSync)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list pending attempts: %v", err))
	}
	for _, attempt := range attempts {
		payload, err := s.buildQuizPayload(ctx, attempt)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("attempt %s: %v", attempt.ID, err))
			continue
		}

		if err := s.gateway.SyncQuizAttempt(ctx, payload); err != nil && !isDuplicate(err) {
			report.Errors = append(report.Errors, fmt.Sprintf("attempt %s: %v", attempt.ID, err))
			continue
		}

		if err := s.attempts.Delete(ctx, attempt.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			report.Errors = append(report.Errors, fmt.Sprintf("dequeue attempt %s: %v", attempt.ID, err))
			continue
		}
		report.SyncedAttempts++
		touched[attempt.AssessmentID] = false
		observability.SyncedWork().WithLabelValues("attempt").Inc()
	}

	return touched
}

// buildQuizPayload reconstructs the graded answer set from the stored record,
// preserving the original start and finalize timestamps.
func (s *syncService) buildQuizPayload(ctx context.Context, attempt models.AttemptRecord) (remote.QuizSyncPayload, error) {
	answers, err := attempt.DecodeAnswers()
	if err != nil {
		return remote.QuizSyncPayload{}, fmt.Errorf("decode answers: %w", err)
	}

	var results []QuestionResult
	assessment, err := s.assessments.Get(ctx, attempt.UserEmail, attempt.AssessmentID)
	if err == nil {
		if questions, derr := assessment.DecodeQuestions(); derr == nil {
			results, _ = GradeAttempt(questions, answers)
		}
	}
	if results == nil {
		// Question set no longer cached; push raw answers and let the
		// server grade.
		for key, answer := range answers {
			var id uint
			if _, serr := fmt.Sscanf(key, "%d", &id); serr != nil {
				continue
			}
			results = append(results, QuestionResult{
				QuestionID:        id,
				SelectedOptionIDs: answer.SelectedOptionIDs,
				Text:              answer.Text,
			})
		}
	}

	finalizedAt := attempt.StartedAt
	if attempt.FinalizedAt != nil {
		finalizedAt = *attempt.FinalizedAt
	}

	return remote.QuizSyncPayload{
		AssessmentID: attempt.AssessmentID,
		Answers:      toResultPayloads(results),
		StartedAt:    attempt.StartedAt,
		FinalizedAt:  finalizedAt,
		Reason:       attempt.FinalizeReason,
	}, nil
}

func (s *syncService) refreshStatuses(ctx context.Context, userEmail string, touched map[uint]bool, report *SyncReport) {
	if len(touched) == 0 {
		return
	}

	for assessmentID, fileBased := range touched {
		var (
			status models.AssessmentStatus
			err    error
		)

		if fileBased {
			var info remote.SubmissionStatusInfo
			info, err = s.gateway.LatestAssignmentSubmission(ctx, assessmentID)
			if err == nil {
				status, err = models.NewSubmissionStatus(userEmail, assessmentID, models.SubmissionStatusPayload{
					HasFile:     info.HasFile,
					SubmittedAt: info.SubmittedAt,
					Status:      info.Status,
				})
			}
		} else {
			var info remote.AttemptStatusInfo
			info, err = s.gateway.AttemptStatus(ctx, assessmentID)
			if err == nil {
				status, err = models.NewAttemptStatus(userEmail, assessmentID, models.AttemptStatusPayload{
					AttemptCount:  info.AttemptCount,
					LastAttemptAt: info.LastAttemptAt,
					BestScore:     info.BestScore,
				})
			}
		}

		if err == nil {
			err = s.statuses.Put(ctx, &status)
		}
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("status refresh %d: %v", assessmentID, err))
		}
	}

	// The detail cache now disagrees with the acknowledged server state;
	// force the next read to repopulate.
	if err := s.fresh.Invalidate(ctx, userEmail, models.CategoryAssessmentDetail); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("invalidate detail cache: %v", err))
	}
}

func (s *syncService) refreshStale(ctx context.Context, userEmail string, report *SyncReport) {
	if stale, err := s.fresh.Stale(ctx, userEmail, models.CategoryCourses); err == nil && stale {
		if err := s.refreshCourses(ctx, userEmail); err != nil {
			s.logger.Warn().Err(err).Str("user", userEmail).Msg("course refresh failed")
		} else {
			report.Refreshed = append(report.Refreshed, models.CategoryCourses)
		}
	}

	detailStale, derr := s.fresh.Stale(ctx, userEmail, models.CategoryAssessmentDetail)
	questionsStale, qerr := s.fresh.Stale(ctx, userEmail, models.CategoryQuestionSets)
	if derr != nil || qerr != nil {
		return
	}
	if !detailStale && !questionsStale {
		return
	}

	if err := s.refreshCourseData(ctx, userEmail); err != nil {
		s.logger.Warn().Err(err).Str("user", userEmail).Msg("course data refresh failed")
		return
	}
	if detailStale {
		report.Refreshed = append(report.Refreshed, models.CategoryAssessmentDetail)
	}
	if questionsStale {
		report.Refreshed = append(report.Refreshed, models.CategoryQuestionSets)
	}
}

func (s *syncService) refreshCourses(ctx context.Context, userEmail string) error {
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

// refreshCourseData re-fetches every cached course's detail, updating the
// detail blob, materials and assessment snapshots (including question sets).
func (s *syncService) refreshCourseData(ctx context.Context, userEmail string) error {
	cached, err := s.courses.List(ctx, userEmail)
	if err != nil {
		return err
	}

	for _, course := range cached {
		detail, err := s.gateway.CourseDetail(ctx, course.CourseID)
		if err != nil {
			return err
		}

		row := models.CourseDetail{
			UserEmail: userEmail,
			CourseID:  course.CourseID,
			Payload:   []byte(detail.Payload),
		}
		materials := make([]models.Material, len(detail.Materials))
		for i, m := range detail.Materials {
			materials[i] = models.Material{
				Title:    m.Title,
				FileURL:  m.FileURL,
				MimeType: m.MimeType,
			}
		}
		if err := s.courses.SaveDetail(ctx, &row, materials); err != nil {
			return err
		}

		for _, info := range detail.Assessments {
			assessment := models.Assessment{
				UserEmail:       userEmail,
				AssessmentID:    info.ID,
				CourseID:        course.CourseID,
				Title:           info.Title,
				Kind:            info.Kind,
				DurationMinutes: info.DurationMinutes,
				AvailableAt:     info.AvailableAt,
				UnavailableAt:   info.UnavailableAt,
				MaxPoints:       info.MaxPoints,
				MaxAttempts:     info.MaxAttempts,
				Questions:       []byte(info.Questions),
			}
			if err := s.assessments.Upsert(ctx, &assessment); err != nil {
				return err
			}
		}
	}

	if err := s.fresh.MarkFresh(ctx, userEmail, models.CategoryAssessmentDetail); err != nil {
		return err
	}
	return s.fresh.MarkFresh(ctx, userEmail, models.CategoryQuestionSets)
}

// Watch fires a reconciliation cycle on every offline-to-online transition.
// The trigger is edge-based: staying online never re-fires, and flapping is
// absorbed by the cooldown inside Run.
func (s *syncService) Watch(ctx context.Context, userEmail string, watcher connectivity.Watcher) {
	previous := watcher.Online()

	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-watcher.Changes():
			if !ok {
				return
			}
			if online && !previous {
				if _, err := s.Run(ctx, userEmail); err != nil {
					if errors.Is(err, ErrSyncInFlight) || errors.Is(err, ErrSyncCooldown) {
						s.logger.Debug().Err(err).Msg("sync trigger skipped")
					} else if errors.Is(err, ErrSessionExpired) {
						s.logger.Warn().Str("user", userEmail).Msg("sync skipped, session expired")
					} else {
						s.logger.Error().Err(err).Msg("sync trigger failed")
					}
				}
			}
			previous = online
		}
	}
}

func isDuplicate(err error) bool {
	var apiErr *remote.APIError
	return errors.As(err, &apiErr) && apiErr.IsDuplicate()
}
