package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/lumenlms/pocketsync/internal/models"
)

// Countdown is the remaining time of a running attempt, floored to whole
// seconds. Unavailable means the remaining time cannot be trusted or has
// already run out.
type Countdown struct {
	Remaining   time.Duration
	Unavailable bool
}

// DisplayMinutes renders the countdown for the UI: minutes round up, so one
// second remaining still reads "1 min" until the hard zero cutoff.
func (c Countdown) DisplayMinutes() string {
	if c.Unavailable {
		return "unavailable"
	}
	if c.Remaining <= 0 {
		return "0 min"
	}
	minutes := int(math.Ceil(c.Remaining.Seconds() / 60))
	return fmt.Sprintf("%d min", minutes)
}

// Remaining computes the countdown for an attempt, clamped by the
// assessment's hard availability deadline when that bound is tighter.
func (s *attemptService) Remaining(ctx context.Context, attemptID string) (Countdown, error) {
	state, err := s.lookup(ctx, attemptID)
	if err != nil {
		return Countdown{}, err
	}

	s.mu.Lock()
	record := state.record
	assessment := state.assessment
	online := state.online
	s.mu.Unlock()

	return s.remaining(ctx, record, assessment, online)
}

func (s *attemptService) remaining(ctx context.Context, record models.AttemptRecord, assessment models.Assessment, online bool) (Countdown, error) {
	if assessment.DurationMinutes <= 0 && assessment.UnavailableAt == nil {
		return Countdown{Unavailable: true}, nil
	}

	now, err := s.effectiveNow(ctx, record.UserEmail, online)
	if err != nil {
		return Countdown{Unavailable: true}, err
	}

	remaining := time.Duration(math.MaxInt64)
	if assessment.DurationMinutes > 0 {
		end := record.StartedAt.Add(time.Duration(assessment.DurationMinutes) * time.Minute)
		remaining = end.Sub(now)
	}

	// Whichever bound is tighter wins.
	if assessment.UnavailableAt != nil {
		if deadline := assessment.UnavailableAt.Sub(now); deadline < remaining {
			remaining = deadline
		}
	}

	remaining = remaining.Truncate(time.Second)
	if remaining < 0 {
		return Countdown{Unavailable: true}, nil
	}
	return Countdown{Remaining: remaining}, nil
}

// effectiveNow picks the time source countdown decisions run on: the device
// clock while online, the simulated server clock while offline.
func (s *attemptService) effectiveNow(ctx context.Context, userEmail string, online bool) (time.Time, error) {
	if online {
		return s.now(), nil
	}
	return s.clock.ServerNow(ctx, userEmail)
}

// AttemptTimer drives the countdown of one in-progress attempt. Stop must be
// called on every exit path, including navigation-away, so no orphaned tick
// mutates state after teardown.
type AttemptTimer struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Stop cancels the timer and waits for the tick loop to exit.
func (t *AttemptTimer) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

// Done is closed when the tick loop has exited, whether by Stop or by
// auto-finalize.
func (t *AttemptTimer) Done() <-chan struct{} {
	return t.done
}

// StartCountdown launches the countdown loop for an attempt. Every tick
// recomputes remaining time; reaching zero, crossing the availability
// deadline, losing the server-time baseline or failing an integrity re-check
// all force an automatic finalize with the matching reason tag.
func (s *attemptService) StartCountdown(ctx context.Context, attemptID string) (*AttemptTimer, error) {
	state, err := s.lookup(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	record := state.record
	assessment := state.assessment
	online := state.online
	s.mu.Unlock()

	if record.State != models.AttemptStateInProgress {
		return nil, ErrAttemptNotActive
	}
	if assessment.DurationMinutes <= 0 && assessment.UnavailableAt == nil {
		return nil, ErrNoTimeLimit
	}

	timer := &AttemptTimer{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go s.runCountdown(timer, record, assessment, online)
	return timer, nil
}

func (s *attemptService) runCountdown(timer *AttemptTimer, record models.AttemptRecord, assessment models.Assessment, online bool) {
	defer close(timer.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	lastIntegrityCheck := s.now()

	for {
		select {
		case <-timer.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		reason, finished := s.tick(ctx, record, assessment, online, &lastIntegrityCheck)
		cancel()
		if !finished {
			continue
		}

		s.autoFinalize(record.ID, reason)
		return
	}
}

// tick evaluates one countdown step and reports whether the attempt must be
// auto-finalized, with the reason tag.
func (s *attemptService) tick(ctx context.Context, record models.AttemptRecord, assessment models.Assessment, online bool, lastCheck *time.Time) (string, bool) {
	if s.now().Sub(*lastCheck) >= s.recheck {
		*lastCheck = s.now()
		verdict, err := s.clock.Commit(ctx, record.UserEmail)
		if err != nil {
			s.logger.Error().Err(err).Str("attempt_id", record.ID).Msg("integrity re-check errored")
			return models.FinalizeReasonTimerError, true
		}
		if !verdict.Valid {
			return models.FinalizeReasonManipulation, true
		}
	}

	countdown, err := s.remaining(ctx, record, assessment, online)
	if err != nil {
		if errors.Is(err, ErrClockTampered) {
			if !online {
				return models.FinalizeReasonNoServerTime, true
			}
			return models.FinalizeReasonManipulation, true
		}
		s.logger.Error().Err(err).Str("attempt_id", record.ID).Msg("countdown tick errored")
		return models.FinalizeReasonTimerError, true
	}

	if countdown.Unavailable || countdown.Remaining <= 0 {
		// Same clock source the countdown ran on, so a skewed device clock
		// cannot flip the reason between deadline and duration expiry.
		now, nerr := s.effectiveNow(ctx, record.UserEmail, online)
		if nerr != nil {
			now = s.now()
		}
		if assessment.UnavailableAt != nil && !now.Before(*assessment.UnavailableAt) {
			return models.FinalizeReasonUnavailable, true
		}
		return models.FinalizeReasonTimeUp, true
	}

	return "", false
}

func (s *attemptService) autoFinalize(attemptID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.finalize(ctx, attemptID, true, reason); err != nil {
		if errors.Is(err, ErrFinalizeInFlight) || errors.Is(err, ErrAttemptNotActive) {
			// A manual finalize won the race; nothing left to do.
			return
		}
		s.logger.Error().Err(err).
			Str("attempt_id", attemptID).
			Str("reason", reason).
			Msg("auto finalize failed")
	}
}
