package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lumenlms/pocketsync/internal/models"
	"github.com/lumenlms/pocketsync/internal/observability"
	"github.com/lumenlms/pocketsync/internal/repository"
)

// ErrClockTampered indicates the device clock failed an integrity check and
// no time-sensitive decision may trust it.
var ErrClockTampered = errors.New("device clock integrity check failed")

// Integrity failure reasons.
const (
	ClockReasonBackward    = "device time moved backward"
	ClockReasonForwardJump = "device time jumped forward excessively"
)

// ClockVerdict is the outcome of a single integrity check.
type ClockVerdict struct {
	Valid  bool
	Reason string
}

// ClockService detects device-clock tampering relative to its own prior
// observations and maintains the server-time offset. Without network access
// there is no ground truth, so the monitor can only compare readings against
// the watermark it committed last.
type ClockService interface {
	// Check is read-only and idempotent; committing the watermark is the
	// caller's responsibility via Commit.
	Check(ctx context.Context, userEmail string) (ClockVerdict, error)
	// Commit re-runs the check and, when valid, advances the watermark and
	// increments the sequence. An invalid check leaves state untouched so
	// the failure stays detectable.
	Commit(ctx context.Context, userEmail string) (ClockVerdict, error)
	// SaveServerTime re-baselines from a trusted server reading. Online only.
	SaveServerTime(ctx context.Context, userEmail string, serverTime, deviceTime time.Time) error
	// ServerNow returns the simulated server time (device now + offset).
	// It re-runs the integrity check and returns ErrClockTampered when the
	// local clock cannot be trusted.
	ServerNow(ctx context.Context, userEmail string) (time.Time, error)
	// Reset wipes the baseline, e.g. on logout.
	Reset(ctx context.Context, userEmail string) error
}

type clockService struct {
	repo             repository.ClockStateRepository
	forwardTolerance time.Duration
	logger           zerolog.Logger
	now              func() time.Time
}

// NewClockService builds the clock-integrity monitor.
func NewClockService(repo repository.ClockStateRepository, forwardTolerance time.Duration, logger zerolog.Logger) ClockService {
	return &clockService{
		repo:             repo,
		forwardTolerance: forwardTolerance,
		logger:           logger.With().Str("component", "clock_service").Logger(),
		now:              time.Now,
	}
}

func (s *clockService) Check(ctx context.Context, userEmail string) (ClockVerdict, error) {
	state, err := s.repo.Get(ctx, userEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No baseline yet: first run after a fresh login.
			return ClockVerdict{Valid: true}, nil
		}
		return ClockVerdict{}, fmt.Errorf("failed to load clock state: %w", err)
	}

	return s.evaluate(state), nil
}

func (s *clockService) evaluate(state models.UserClockState) ClockVerdict {
	if !state.HasBaseline() {
		return ClockVerdict{Valid: true}
	}

	nowMs := s.now().UnixMilli()

	if nowMs < state.LastCheckedDeviceTimeMs {
		return ClockVerdict{Valid: false, Reason: ClockReasonBackward}
	}

	elapsed := time.Duration(nowMs-state.LastCheckedDeviceTimeMs) * time.Millisecond
	if elapsed > s.forwardTolerance && state.CheckSequence > 0 {
		return ClockVerdict{Valid: false, Reason: ClockReasonForwardJump}
	}

	return ClockVerdict{Valid: true}
}

func (s *clockService) Commit(ctx context.Context, userEmail string) (ClockVerdict, error) {
	state, err := s.repo.Get(ctx, userEmail)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return ClockVerdict{}, fmt.Errorf("failed to load clock state: %w", err)
		}
		state = models.UserClockState{UserEmail: userEmail}
	}

	verdict := s.evaluate(state)
	if !verdict.Valid {
		observability.IntegrityFailures().WithLabelValues(verdict.Reason).Inc()
		s.logger.Warn().
			Str("user", userEmail).
			Str("reason", verdict.Reason).
			Msg("clock integrity check failed")
		return verdict, nil
	}

	state.LastCheckedDeviceTimeMs = s.now().UnixMilli()
	state.CheckSequence++
	if err := s.repo.Save(ctx, &state); err != nil {
		return ClockVerdict{}, fmt.Errorf("failed to persist clock state: %w", err)
	}

	return verdict, nil
}

func (s *clockService) SaveServerTime(ctx context.Context, userEmail string, serverTime, deviceTime time.Time) error {
	state := models.UserClockState{
		UserEmail:               userEmail,
		ServerTimeOffsetMs:      serverTime.UnixMilli() - deviceTime.UnixMilli(),
		LastCheckedDeviceTimeMs: deviceTime.UnixMilli(),
		CheckSequence:           1,
	}

	if err := s.repo.Save(ctx, &state); err != nil {
		return fmt.Errorf("failed to persist server time baseline: %w", err)
	}

	s.logger.Debug().
		Str("user", userEmail).
		Int64("offset_ms", state.ServerTimeOffsetMs).
		Msg("clock re-baselined from server time")
	return nil
}

func (s *clockService) ServerNow(ctx context.Context, userEmail string) (time.Time, error) {
	state, err := s.repo.Get(ctx, userEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, fmt.Errorf("%w: no server time baseline", ErrClockTampered)
		}
		return time.Time{}, fmt.Errorf("failed to load clock state: %w", err)
	}

	verdict := s.evaluate(state)
	if !verdict.Valid {
		return time.Time{}, fmt.Errorf("%w: %s", ErrClockTampered, verdict.Reason)
	}

	return s.now().Add(time.Duration(state.ServerTimeOffsetMs) * time.Millisecond), nil
}

func (s *clockService) Reset(ctx context.Context, userEmail string) error {
	return s.repo.Delete(ctx, userEmail)
}
