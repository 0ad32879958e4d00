package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/models"
	"github.com/lumenlms/pocketsync/internal/remote"
	"github.com/lumenlms/pocketsync/internal/repository"
)

var (
	// ErrAttemptNotFound indicates no attempt record exists for the id.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAssessmentNotFound indicates the assessment is not cached locally.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrAttemptNotActive indicates the attempt is no longer editable.
	ErrAttemptNotActive = errors.New("attempt is not in progress")
	// ErrNotAvailableOffline indicates the question set was never downloaded.
	ErrNotAvailableOffline = errors.New("assessment not available offline")
	// ErrNotQuizKind indicates a file-based assessment cannot host an attempt.
	ErrNotQuizKind = errors.New("assessment does not have a question set")
	// ErrNotFileKind indicates a quiz-kind assessment cannot take a file
	// submission.
	ErrNotFileKind = errors.New("assessment is not file-based")
	// ErrFinalizeInFlight indicates a concurrent finalize is already running.
	ErrFinalizeInFlight = errors.New("finalize already in flight")
	// ErrNoTimeLimit indicates the assessment has neither a duration nor a
	// hard deadline, so no countdown runs.
	ErrNoTimeLimit = errors.New("assessment has no time limit")
)

// PendingWorkError rejects a new attempt while unsynced work exists for the
// same (assessment, user) pair. It carries the pending item so the caller can
// surface it instead of the new attempt.
type PendingWorkError struct {
	Attempt *models.AttemptRecord
	Upload  *models.PendingUpload
}

func (e *PendingWorkError) Error() string {
	return "unsynced work already exists for this assessment"
}

// UnansweredError rejects a manual finalize while questions remain blank.
// Indices are 1-based question positions.
type UnansweredError struct {
	Indices []int
}

func (e *UnansweredError) Error() string {
	parts := make([]string, len(e.Indices))
	for i, idx := range e.Indices {
		parts[i] = fmt.Sprintf("Q%d", idx)
	}
	return "unanswered questions: " + strings.Join(parts, ", ")
}

// FinalizeResult reports the outcome of finalizing an attempt.
type FinalizeResult struct {
	Attempt models.AttemptRecord
	Results []QuestionResult
	Score   float64
	Synced  bool
	// RestartRequired is set when the attempt fell back to the offline
	// queue; the next launch re-evaluates connectivity cleanly.
	RestartRequired bool
}

// AttemptService governs one assessment attempt's lifecycle from start
// through answer editing, timeout and finalization, online and offline.
type AttemptService interface {
	Start(ctx context.Context, userEmail string, assessmentID uint, online bool) (models.AttemptRecord, error)
	SaveAnswer(ctx context.Context, attemptID string, questionID uint, answer models.Answer) error
	Remaining(ctx context.Context, attemptID string) (Countdown, error)
	Finalize(ctx context.Context, attemptID string) (FinalizeResult, error)
	StartCountdown(ctx context.Context, attemptID string) (*AttemptTimer, error)
	SubmitFile(ctx context.Context, userEmail string, assessmentID uint, filePath, originalFilename string, online bool) (FinalizeResult, error)
	Get(ctx context.Context, attemptID string) (models.AttemptRecord, error)
}

type activeAttempt struct {
	record     models.AttemptRecord
	assessment models.Assessment
	questions  []models.Question
	answers    map[string]models.Answer
	online     bool
	finalizing bool
	debounces  map[uint]*time.Timer
}

type attemptService struct {
	attempts    repository.AttemptRepository
	uploads     repository.UploadRepository
	assessments repository.AssessmentRepository
	clock       ClockService
	gateway     Gateway
	debounce    time.Duration
	recheck     time.Duration
	logger      zerolog.Logger
	now         func() time.Time

	mu     sync.Mutex
	active map[string]*activeAttempt
}

// NewAttemptService builds the attempt state machine.
func NewAttemptService(
	attempts repository.AttemptRepository,
	uploads repository.UploadRepository,
	assessments repository.AssessmentRepository,
	clock ClockService,
	gateway Gateway,
	debounce time.Duration,
	recheck time.Duration,
	logger zerolog.Logger,
) AttemptService {
	return &attemptService{
		attempts:    attempts,
		uploads:     uploads,
		assessments: assessments,
		clock:       clock,
		gateway:     gateway,
		debounce:    debounce,
		recheck:     recheck,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
		active:      make(map[string]*activeAttempt),
	}
}

func (s *attemptService) Start(ctx context.Context, userEmail string, assessmentID uint, online bool) (models.AttemptRecord, error) {
	if upload, err := s.uploads.FindByAssessment(ctx, userEmail, assessmentID); err == nil {
		return models.AttemptRecord{}, &PendingWorkError{Upload: &upload}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AttemptRecord{}, fmt.Errorf("failed to check pending uploads: %w", err)
	}

	existing, err := s.attempts.FindUnsynced(ctx, userEmail, assessmentID)
	switch {
	case err == nil && existing.State == models.AttemptStatePendingSync:
		return models.AttemptRecord{}, &PendingWorkError{Attempt: &existing}
	case err == nil:
		// Resume the in-progress record.
		return s.resume(ctx, existing, online)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.AttemptRecord{}, fmt.Errorf("failed to check pending attempts: %w", err)
	}

	verdict, err := s.clock.Commit(ctx, userEmail)
	if err != nil {
		return models.AttemptRecord{}, err
	}
	if !verdict.Valid {
		return models.AttemptRecord{}, fmt.Errorf("%w: %s", ErrClockTampered, verdict.Reason)
	}

	assessment, err := s.assessments.Get(ctx, userEmail, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AttemptRecord{}, ErrAssessmentNotFound
		}
		return models.AttemptRecord{}, fmt.Errorf("failed to load assessment: %w", err)
	}

	if assessment.IsFileKind() {
		return models.AttemptRecord{}, ErrNotQuizKind
	}
	if !assessment.HasQuestionSet() {
		return models.AttemptRecord{}, ErrNotAvailableOffline
	}

	startedAt := s.now()
	if !online {
		startedAt, err = s.clock.ServerNow(ctx, userEmail)
		if err != nil {
			return models.AttemptRecord{}, err
		}
	}

	record := models.AttemptRecord{
		ID:           uuid.NewString(),
		UserEmail:    userEmail,
		AssessmentID: assessmentID,
		State:        models.AttemptStateInProgress,
		StartedAt:    startedAt,
		Answers:      []byte("{}"),
	}

	if err := s.attempts.Create(ctx, &record); err != nil {
		return models.AttemptRecord{}, fmt.Errorf("failed to persist attempt: %w", err)
	}

	questions, err := assessment.DecodeQuestions()
	if err != nil {
		return models.AttemptRecord{}, fmt.Errorf("failed to decode question set: %w", err)
	}

	s.mu.Lock()
	s.active[record.ID] = &activeAttempt{
		record:     record,
		assessment: assessment,
		questions:  questions,
		answers:    make(map[string]models.Answer),
		online:     online,
		debounces:  make(map[uint]*time.Timer),
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("attempt_id", record.ID).
		Uint("assessment_id", assessmentID).
		Bool("online", online).
		Msg("attempt started")
	return record, nil
}

func (s *attemptService) resume(ctx context.Context, record models.AttemptRecord, online bool) (models.AttemptRecord, error) {
	verdict, err := s.clock.Commit(ctx, record.UserEmail)
	if err != nil {
		return models.AttemptRecord{}, err
	}
	if !verdict.Valid {
		return models.AttemptRecord{}, fmt.Errorf("%w: %s", ErrClockTampered, verdict.Reason)
	}

	if _, err := s.load(ctx, record, online); err != nil {
		return models.AttemptRecord{}, err
	}
	return record, nil
}

// load caches the record and its question set in memory. Callers must not
// hold s.mu.
func (s *attemptService) load(ctx context.Context, record models.AttemptRecord, online bool) (*activeAttempt, error) {
	s.mu.Lock()
	if state, ok := s.active[record.ID]; ok {
		state.online = online
		s.mu.Unlock()
		return state, nil
	}
	s.mu.Unlock()

	assessment, err := s.assessments.Get(ctx, record.UserEmail, record.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assessment: %w", err)
	}
	questions, err := assessment.DecodeQuestions()
	if err != nil {
		return nil, fmt.Errorf("failed to decode question set: %w", err)
	}
	answers, err := record.DecodeAnswers()
	if err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}

	state := &activeAttempt{
		record:     record,
		assessment: assessment,
		questions:  questions,
		answers:    answers,
		online:     online,
		debounces:  make(map[uint]*time.Timer),
	}

	s.mu.Lock()
	s.active[record.ID] = state
	s.mu.Unlock()
	return state, nil
}

func (s *attemptService) lookup(ctx context.Context, attemptID string) (*activeAttempt, error) {
	s.mu.Lock()
	state, ok := s.active[attemptID]
	s.mu.Unlock()
	if ok {
		return state, nil
	}

	record, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}

	return s.load(ctx, record, false)
}

func (s *attemptService) Get(ctx context.Context, attemptID string) (models.AttemptRecord, error) {
	state, err := s.lookup(ctx, attemptID)
	if err != nil {
		return models.AttemptRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return state.record, nil
}

func (s *attemptService) SaveAnswer(ctx context.Context, attemptID string, questionID uint, answer models.Answer) error {
	state, err := s.lookup(ctx, attemptID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if state.record.State != models.AttemptStateInProgress {
		s.mu.Unlock()
		return ErrAttemptNotActive
	}
	userEmail := state.record.UserEmail
	s.mu.Unlock()

	verdict, err := s.clock.Commit(ctx, userEmail)
	if err != nil {
		return err
	}
	if !verdict.Valid {
		// Tampering is fatal for the timed action: the attempt is force
		// finalized before the error surfaces.
		if _, ferr := s.finalize(ctx, attemptID, true, models.FinalizeReasonManipulation); ferr != nil && !errors.Is(ferr, ErrFinalizeInFlight) {
			s.logger.Error().Err(ferr).Str("attempt_id", attemptID).Msg("forced finalize failed")
		}
		return fmt.Errorf("%w: %s", ErrClockTampered, verdict.Reason)
	}

	answer.Dirty = true

	s.mu.Lock()
	if state.record.State != models.AttemptStateInProgress {
		s.mu.Unlock()
		return ErrAttemptNotActive
	}
	state.answers[questionKey(questionID)] = answer

	// Coalesce rapid edits of the same question into one persist; the last
	// edit wins.
	if timer, ok := state.debounces[questionID]; ok {
		timer.Stop()
	}
	state.debounces[questionID] = time.AfterFunc(s.debounce, func() {
		s.flushAnswer(attemptID, questionID)
	})
	s.mu.Unlock()

	return nil
}

// flushAnswer persists the in-memory answer map and, when online, mirrors the
// single answer to the server best-effort. Network failures here are logged
// and swallowed: the authoritative save happens at finalize.
func (s *attemptService) flushAnswer(attemptID string, questionID uint) {
	s.mu.Lock()
	state, ok := s.active[attemptID]
	if !ok || state.finalizing || state.record.State != models.AttemptStateInProgress {
		s.mu.Unlock()
		return
	}
	delete(state.debounces, questionID)

	if err := state.record.EncodeAnswers(state.answers); err != nil {
		s.mu.Unlock()
		s.logger.Error().Err(err).Str("attempt_id", attemptID).Msg("failed to encode answers")
		return
	}
	record := state.record
	answer := state.answers[questionKey(questionID)]
	online := state.online
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.attempts.Save(ctx, &record); err != nil {
		// A lost local write risks data loss with no server copy to fall
		// back on, so it is surfaced loudly even though the caller is gone.
		s.logger.Error().Err(err).Str("attempt_id", attemptID).Msg("failed to persist answer")
		return
	}

	if online {
		payload := remote.AnswerPayload{
			SelectedOptionIDs: answer.SelectedOptionIDs,
			Text:              answer.Text,
		}
		if err := s.gateway.SaveQuestionAnswer(ctx, questionID, payload); err != nil {
			s.logger.Warn().Err(err).
				Str("attempt_id", attemptID).
				Uint("question_id", questionID).
				Msg("online answer save failed, keeping local copy")
		}
	}
}

func (s *attemptService) Finalize(ctx context.Context, attemptID string) (FinalizeResult, error) {
	return s.finalize(ctx, attemptID, false, models.FinalizeReasonManual)
}

func (s *attemptService) finalize(ctx context.Context, attemptID string, auto bool, reason string) (FinalizeResult, error) {
	state, err := s.lookup(ctx, attemptID)
	if err != nil {
		return FinalizeResult{}, err
	}

	s.mu.Lock()
	if state.finalizing {
		s.mu.Unlock()
		return FinalizeResult{}, ErrFinalizeInFlight
	}
	if state.record.State != models.AttemptStateInProgress {
		s.mu.Unlock()
		return FinalizeResult{}, ErrAttemptNotActive
	}
	state.finalizing = true
	questions := state.questions
	answers := make(map[string]models.Answer, len(state.answers))
	for k, v := range state.answers {
		answers[k] = v
	}
	record := state.record
	online := state.online
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		state.finalizing = false
		s.mu.Unlock()
	}

	if !auto {
		if missing := unansweredIndices(questions, answers); len(missing) > 0 {
			release()
			return FinalizeResult{}, &UnansweredError{Indices: missing}
		}

		verdict, err := s.clock.Commit(ctx, record.UserEmail)
		if err != nil {
			release()
			return FinalizeResult{}, err
		}
		if !verdict.Valid {
			release()
			return FinalizeResult{}, fmt.Errorf("%w: %s", ErrClockTampered, verdict.Reason)
		}
	}

	finalizedAt := s.now()
	if !online {
		if serverNow, err := s.clock.ServerNow(ctx, record.UserEmail); err == nil {
			finalizedAt = serverNow
		}
		// An untrusted clock cannot block an automatic finalize; the device
		// reading is recorded as-is and the server arbitrates on sync.
	}

	results, score := GradeAttempt(questions, answers)

	record.FinalizedAt = &finalizedAt
	record.FinalizeReason = reason
	record.Score = &score
	if err := record.EncodeAnswers(answers); err != nil {
		release()
		return FinalizeResult{}, fmt.Errorf("failed to encode answers: %w", err)
	}

	result := FinalizeResult{Results: results, Score: score}

	if online {
		payload := remote.FinalizePayload{
			Answers:     toResultPayloads(results),
			StartedAt:   record.StartedAt,
			FinalizedAt: finalizedAt,
			Reason:      reason,
		}
		if err := s.gateway.FinalizeQuiz(ctx, record.AssessmentID, payload); err == nil {
			record.State = models.AttemptStateSynced
			if derr := s.attempts.Delete(ctx, record.ID); derr != nil && !errors.Is(derr, gorm.ErrRecordNotFound) {
				s.logger.Error().Err(derr).Str("attempt_id", record.ID).Msg("failed to remove synced attempt record")
			}
			s.drop(attemptID)
			result.Attempt = record
			result.Synced = true
			s.logger.Info().Str("attempt_id", record.ID).Str("reason", reason).Msg("attempt finalized online")
			return result, nil
		} else {
			s.logger.Warn().Err(err).Str("attempt_id", record.ID).Msg("online finalize failed, falling back to offline queue")
		}
	}

	// Offline, or the online submit failed: queue the completed attempt.
	// This fallback must never lose the student's work.
	record.State = models.AttemptStatePendingSync
	if err := s.attempts.Save(ctx, &record); err != nil {
		release()
		return FinalizeResult{}, fmt.Errorf("failed to queue completed attempt: %w", err)
	}

	s.drop(attemptID)
	result.Attempt = record
	result.RestartRequired = true
	s.logger.Info().Str("attempt_id", record.ID).Str("reason", reason).Msg("attempt queued for sync")
	return result, nil
}

// drop removes the attempt from memory and releases its timers.
func (s *attemptService) drop(attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.active[attemptID]
	if !ok {
		return
	}
	for _, timer := range state.debounces {
		timer.Stop()
	}
	delete(s.active, attemptID)
}

// SubmitFile captures a file-based submission. Online it uploads directly;
// offline (or on upload failure) it joins the pending queue.
func (s *attemptService) SubmitFile(ctx context.Context, userEmail string, assessmentID uint, filePath, originalFilename string, online bool) (FinalizeResult, error) {
	if upload, err := s.uploads.FindByAssessment(ctx, userEmail, assessmentID); err == nil {
		return FinalizeResult{}, &PendingWorkError{Upload: &upload}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return FinalizeResult{}, fmt.Errorf("failed to check pending uploads: %w", err)
	}

	if attempt, err := s.attempts.FindUnsynced(ctx, userEmail, assessmentID); err == nil {
		return FinalizeResult{}, &PendingWorkError{Attempt: &attempt}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return FinalizeResult{}, fmt.Errorf("failed to check pending attempts: %w", err)
	}

	assessment, err := s.assessments.Get(ctx, userEmail, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FinalizeResult{}, ErrAssessmentNotFound
		}
		return FinalizeResult{}, fmt.Errorf("failed to load assessment: %w", err)
	}
	if !assessment.IsFileKind() {
		return FinalizeResult{}, ErrNotFileKind
	}

	submittedAt := s.now()
	if !online {
		if serverNow, err := s.clock.ServerNow(ctx, userEmail); err == nil {
			submittedAt = serverNow
		}
	}

	meta := remote.FileSubmissionMeta{
		AssessmentID:     assessmentID,
		FilePath:         filePath,
		OriginalFilename: originalFilename,
		SubmittedAt:      submittedAt,
	}

	if online {
		if err := s.gateway.SyncFileSubmission(ctx, meta); err == nil {
			s.logger.Info().Uint("assessment_id", assessmentID).Msg("file submitted online")
			return FinalizeResult{Synced: true}, nil
		} else {
			s.logger.Warn().Err(err).Uint("assessment_id", assessmentID).Msg("online file submit failed, queueing")
		}
	}

	upload := models.PendingUpload{
		UserEmail:        userEmail,
		AssessmentID:     assessmentID,
		FilePath:         filePath,
		OriginalFilename: originalFilename,
		SubmittedAt:      submittedAt,
	}
	if err := s.uploads.Enqueue(ctx, &upload); err != nil {
		return FinalizeResult{}, fmt.Errorf("failed to queue file submission: %w", err)
	}

	return FinalizeResult{RestartRequired: true}, nil
}

// unansweredIndices returns the 1-based positions of blank answers. A choice
// question needs a non-empty selection; anything else needs non-empty text.
func unansweredIndices(questions []models.Question, answers map[string]models.Answer) []int {
	var missing []int
	for i, question := range questions {
		answer := answers[questionKey(question.ID)]
		if question.IsChoiceKind() {
			if len(answer.SelectedOptionIDs) == 0 {
				missing = append(missing, i+1)
			}
			continue
		}
		if strings.TrimSpace(answer.Text) == "" {
			missing = append(missing, i+1)
		}
	}
	sort.Ints(missing)
	return missing
}

func toResultPayloads(results []QuestionResult) []remote.QuestionResultPayload {
	payloads := make([]remote.QuestionResultPayload, len(results))
	for i, r := range results {
		payloads[i] = remote.QuestionResultPayload{
			QuestionID:        r.QuestionID,
			SelectedOptionIDs: r.SelectedOptionIDs,
			Text:              r.Text,
			Score:             r.Score,
			Correct:           r.Correct,
		}
	}
	return payloads
}
