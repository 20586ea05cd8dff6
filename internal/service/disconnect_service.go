package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// DisconnectService logs stored sessions out of Telegram in bulk.
type DisconnectService struct {
	dialer Dialer
	store  SessionStore
	logger zerolog.Logger
}

func NewDisconnectService(dialer Dialer, store SessionStore, logger zerolog.Logger) *DisconnectService {
	return &DisconnectService{
		dialer: dialer,
		store:  store,
		logger: logger.With().Str("component", "disconnect").Logger(),
	}
}

// DisconnectAll attempts a remote logout for every active session of the
// owner. Per-record failures are counted, not surfaced. Whatever the remote
// outcomes, all records of the owner end up inactive locally: the intent is
// "stop treating these as usable". Returns confirmed logouts and the total
// attempted.
func (s *DisconnectService) DisconnectAll(ctx context.Context, ownerID int64) (confirmed, attempted int, err error) {
	sessions, err := s.store.ListActiveForDisconnect(ctx, ownerID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for _, session := range sessions {
		attempted++
		client, dialErr := s.dialer.DialSession(ctx, session.SessionToken)
		if dialErr != nil {
			s.logger.Warn().Err(dialErr).Uint("session_id", session.ID).Msg("dial for logout failed")
			continue
		}
		if logoutErr := client.LogOut(ctx); logoutErr != nil {
			s.logger.Warn().Err(logoutErr).Uint("session_id", session.ID).Msg("remote logout failed")
		} else {
			confirmed++
		}
		_ = client.Close()
	}

	if err := s.store.DeactivateAllForOwner(ctx, ownerID); err != nil {
		return confirmed, attempted, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Info().Int64("owner", ownerID).Int("confirmed", confirmed).Int("attempted", attempted).Msg("bulk disconnect done")
	return confirmed, attempted, nil
}
