package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SessionService manages the upstream login session. Logout also wipes the
// local clock baseline: the offset belonged to that session, and the next
// login re-baselines from scratch.
type SessionService interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context, userEmail string) error
	// Verified fetches the account verification flag. Online only.
	Verified(ctx context.Context) (bool, error)
	// Expired reports whether the stored session token has lapsed.
	Expired() bool
}

type sessionService struct {
	gateway Gateway
	clock   ClockService
	logger  zerolog.Logger
	now     func() time.Time
}

// NewSessionService builds the session manager.
func NewSessionService(gateway Gateway, clock ClockService, logger zerolog.Logger) SessionService {
	return &sessionService{
		gateway: gateway,
		clock:   clock,
		logger:  logger.With().Str("component", "session_service").Logger(),
		now:     time.Now,
	}
}

func (s *sessionService) Login(ctx context.Context, email, password string) error {
	deviceTime := s.now()
	if _, err := s.gateway.Login(ctx, email, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	// A fresh session is the one moment the server is known-reachable;
	// baseline the clock immediately rather than waiting for a sync cycle.
	serverTime, err := s.gateway.ServerTime(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("user", email).Msg("server time fetch failed after login")
		return nil
	}
	if err := s.clock.SaveServerTime(ctx, email, serverTime, deviceTime); err != nil {
		s.logger.Warn().Err(err).Str("user", email).Msg("clock baseline failed after login")
	}

	s.logger.Info().Str("user", email).Msg("session established")
	return nil
}

func (s *sessionService) Logout(ctx context.Context, userEmail string) error {
	// Revoking the token upstream is best-effort: a logout must succeed
	// locally even when the device is unreachable.
	if err := s.gateway.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Str("user", userEmail).Msg("remote logout failed, clearing local session anyway")
	}

	if err := s.clock.Reset(ctx, userEmail); err != nil {
		return fmt.Errorf("failed to reset clock baseline: %w", err)
	}

	s.logger.Info().Str("user", userEmail).Msg("session ended")
	return nil
}

func (s *sessionService) Verified(ctx context.Context) (bool, error) {
	verified, err := s.gateway.UserVerified(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fetch verification status: %w", err)
	}
	return verified, nil
}

func (s *sessionService) Expired() bool {
	return s.gateway.SessionExpired(s.now())
}
