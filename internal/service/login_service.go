package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"session-manager/internal/model"
)

// State tracks which input the bot expects next from an owner.
type State int

const (
	StateIdle State = iota
	StateAwaitingPhone
	StateCollectingCode
)

// minPhoneDigits is the shortest phone number accepted after normalization.
const minPhoneDigits = 7

// loginAttempt is the transient per-owner login in flight. It is never
// persisted: a process restart loses it, together with its connection.
type loginAttempt struct {
	phone    string
	codeHash string
	code     CodeInput
	client   AuthClient
}

// LoginService drives the phone-entry, code-entry and sign-in sequence.
// At most one attempt exists per owner; starting over tears the previous
// connection down before a new one is opened.
type LoginService struct {
	dialer Dialer
	store  SessionStore
	device string
	logger zerolog.Logger

	mu       sync.Mutex
	states   map[int64]State
	attempts map[int64]*loginAttempt
}

func NewLoginService(dialer Dialer, store SessionStore, device string, logger zerolog.Logger) *LoginService {
	return &LoginService{
		dialer:   dialer,
		store:    store,
		device:   device,
		logger:   logger.With().Str("component", "login").Logger(),
		states:   make(map[int64]State),
		attempts: make(map[int64]*loginAttempt),
	}
}

// Begin starts a fresh login for the owner, discarding any attempt in flight.
func (s *LoginService) Begin(owner int64) {
	s.discardAttempt(owner)
	s.setState(owner, StateAwaitingPhone)
	s.logger.Info().Int64("owner", owner).Msg("login started")
}

// Cancel drops the owner's attempt and returns to idle.
func (s *LoginService) Cancel(owner int64) {
	s.discardAttempt(owner)
	s.setState(owner, StateIdle)
}

// State reports which input the owner is expected to send next.
func (s *LoginService) State(owner int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[owner]
}

// SubmitPhone validates the phone number, opens a connection and requests a
// login code. On success the owner moves to code collection. A flood wait
// from the send-code call is waited out and retried once.
func (s *LoginService) SubmitPhone(ctx context.Context, owner int64, text string) (string, error) {
	if s.State(owner) != StateAwaitingPhone {
		return "", ErrNoActiveAttempt
	}

	phone := normalizePhone(text)
	if len(phone) < minPhoneDigits {
		return "", ErrInvalidPhoneFormat
	}

	client, err := s.dialer.Dial(ctx)
	if err != nil {
		s.setState(owner, StateIdle)
		return "", fmt.Errorf("%w: %v", ErrCodeSendFailed, err)
	}

	codeHash, err := client.SendCode(ctx, phone)
	var rateLimited *RateLimitedError
	if errors.As(err, &rateLimited) {
		s.logger.Warn().Int64("owner", owner).Dur("wait", rateLimited.Wait).Msg("flood wait on send code, retrying once")
		if waitErr := sleep(ctx, rateLimited.Wait); waitErr != nil {
			_ = client.Close()
			s.setState(owner, StateIdle)
			return "", fmt.Errorf("%w: %v", ErrCodeSendFailed, waitErr)
		}
		codeHash, err = client.SendCode(ctx, phone)
	}
	if err != nil {
		_ = client.Close()
		s.setState(owner, StateIdle)
		return "", fmt.Errorf("%w: %v", ErrCodeSendFailed, err)
	}

	s.setAttempt(owner, &loginAttempt{phone: phone, codeHash: codeHash, client: client})
	s.setState(owner, StateCollectingCode)
	s.logger.Info().Int64("owner", owner).Str("phone", maskPhone(phone)).Msg("code sent")
	return phone, nil
}

// PressDigit appends one keypad digit and returns the current accumulator.
func (s *LoginService) PressDigit(owner int64, d rune) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[owner]
	if !ok {
		return "", ErrNoActiveAttempt
	}
	attempt.code.Append(d)
	return attempt.code.Value(), nil
}

// DeleteDigit removes the last entered digit and returns the accumulator.
func (s *LoginService) DeleteDigit(owner int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[owner]
	if !ok {
		return "", ErrNoActiveAttempt
	}
	attempt.code.DeleteLast()
	return attempt.code.Value(), nil
}

// SetCode replaces the accumulator with a code read from a forwarded message.
func (s *LoginService) SetCode(owner int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[owner]
	if !ok {
		return ErrNoActiveAttempt
	}
	attempt.code.Set(code)
	return nil
}

// Code returns the accumulator for rendering.
func (s *LoginService) Code(owner int64) (CodeInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[owner]
	if !ok {
		return CodeInput{}, ErrNoActiveAttempt
	}
	return attempt.code, nil
}

// SubmitCode signs in with the collected code. On success the exported
// session is persisted and returned; the attempt is gone afterwards. An
// invalid code keeps the attempt alive with a cleared accumulator so the
// user may retry without a new code being sent.
func (s *LoginService) SubmitCode(ctx context.Context, owner int64) (*model.Session, error) {
	attempt, ok := s.getAttempt(owner)
	if !ok {
		return nil, ErrNoActiveAttempt
	}
	if attempt.code.Len() < CodeLength {
		return nil, ErrIncompleteCode
	}

	identity, err := attempt.client.SignIn(ctx, attempt.phone, attempt.code.Value(), attempt.codeHash)
	if err != nil {
		return nil, s.handleSignInError(ctx, owner, attempt, err)
	}

	token, err := attempt.client.ExportSession(ctx)
	if err != nil {
		s.Cancel(owner)
		return nil, fmt.Errorf("export session: %w", err)
	}

	record := &model.Session{
		OwnerID:      owner,
		Phone:        attempt.phone,
		SessionToken: token,
		RemoteUserID: identity.UserID,
		Username:     identity.Username,
		DisplayName:  identity.DisplayName,
		Device:       s.device,
		IsActive:     true,
	}
	if err := s.store.Create(ctx, record); err != nil {
		s.logger.Error().Err(err).Int64("owner", owner).Msg("store session")
		s.Cancel(owner)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.Cancel(owner)
	s.logger.Info().Int64("owner", owner).Str("phone", maskPhone(record.Phone)).
		Int64("remote_user", record.RemoteUserID).Msg("login complete")
	return record, nil
}

func (s *LoginService) handleSignInError(ctx context.Context, owner int64, attempt *loginAttempt, err error) error {
	var rateLimited *RateLimitedError
	switch {
	case errors.Is(err, ErrInvalidCode):
		// The correlation hash is still valid: keep the attempt, clear the digits.
		s.mu.Lock()
		if current, ok := s.attempts[owner]; ok && current == attempt {
			current.code.Reset()
		}
		s.mu.Unlock()
		return ErrInvalidCode
	case errors.Is(err, ErrTwoFactorRequired):
		s.Cancel(owner)
		return ErrTwoFactorRequired
	case errors.As(err, &rateLimited):
		// Wait out the mandated delay, then hand control back. The attempt
		// survives; the user resubmits manually.
		s.logger.Warn().Int64("owner", owner).Dur("wait", rateLimited.Wait).Msg("flood wait on sign in")
		if waitErr := sleep(ctx, rateLimited.Wait); waitErr != nil {
			return waitErr
		}
		return err
	default:
		s.Cancel(owner)
		return err
	}
}

func (s *LoginService) setState(owner int64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == StateIdle {
		delete(s.states, owner)
		return
	}
	s.states[owner] = state
}

func (s *LoginService) getAttempt(owner int64) (*loginAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[owner]
	return attempt, ok
}

func (s *LoginService) setAttempt(owner int64, attempt *loginAttempt) {
	s.mu.Lock()
	previous := s.attempts[owner]
	s.attempts[owner] = attempt
	s.mu.Unlock()
	if previous != nil && previous.client != nil {
		_ = previous.client.Close()
	}
}

// discardAttempt removes the owner's attempt and closes its connection.
func (s *LoginService) discardAttempt(owner int64) {
	s.mu.Lock()
	attempt := s.attempts[owner]
	delete(s.attempts, owner)
	s.mu.Unlock()
	if attempt != nil && attempt.client != nil {
		_ = attempt.client.Close()
	}
}

// normalizePhone strips everything but digits.
func normalizePhone(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// maskPhone keeps the first two and last two digits for logging.
func maskPhone(phone string) string {
	if len(phone) < 4 {
		return "***"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
