package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// AuditService periodically verifies that stored active sessions still hold
// remote authorization, deactivating the ones Telegram no longer accepts.
type AuditService struct {
	dialer Dialer
	store  SessionStore
	logger zerolog.Logger
}

func NewAuditService(dialer Dialer, store SessionStore, logger zerolog.Logger) *AuditService {
	return &AuditService{
		dialer: dialer,
		store:  store,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Run checks every active session across owners. Only sessions whose
// authorization is confirmed dead are deactivated; transient failures are
// logged and left alone for the next pass.
func (s *AuditService) Run(ctx context.Context) (checked, lost int, err error) {
	sessions, err := s.store.ListAllActive(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for _, session := range sessions {
		select {
		case <-ctx.Done():
			return checked, lost, ctx.Err()
		default:
		}

		checked++
		client, dialErr := s.dialer.DialSession(ctx, session.SessionToken)
		if dialErr != nil {
			if errors.Is(dialErr, ErrSessionRevoked) {
				lost += s.deactivate(ctx, session.ID)
				continue
			}
			s.logger.Warn().Err(dialErr).Uint("session_id", session.ID).Msg("audit dial failed")
			continue
		}

		pingErr := client.Ping(ctx)
		_ = client.Close()
		if pingErr == nil {
			continue
		}
		if errors.Is(pingErr, ErrSessionRevoked) {
			lost += s.deactivate(ctx, session.ID)
			continue
		}
		s.logger.Warn().Err(pingErr).Uint("session_id", session.ID).Msg("audit ping failed")
	}

	s.logger.Info().Int("checked", checked).Int("lost", lost).Msg("session audit done")
	return checked, lost, nil
}

func (s *AuditService) deactivate(ctx context.Context, id uint) int {
	if err := s.store.DeactivateByID(ctx, id); err != nil {
		s.logger.Error().Err(err).Uint("session_id", id).Msg("deactivate dead session")
		return 0
	}
	s.logger.Info().Uint("session_id", id).Msg("session no longer authorized, deactivated")
	return 1
}
