package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidPhoneFormat is returned when a submitted phone number keeps
	// fewer than 7 digits after normalization.
	ErrInvalidPhoneFormat = errors.New("phone number must contain at least 7 digits")
	// ErrCodeSendFailed is returned when Telegram refused to send a login code.
	ErrCodeSendFailed = errors.New("failed to send confirmation code")
	// ErrIncompleteCode is returned when the code is submitted before all digits are entered.
	ErrIncompleteCode = errors.New("confirmation code is incomplete")
	// ErrInvalidCode is returned when Telegram rejected the entered code.
	ErrInvalidCode = errors.New("confirmation code is invalid")
	// ErrTwoFactorRequired is returned for accounts protected by a two-step password.
	ErrTwoFactorRequired = errors.New("account requires a two-step verification password")
	// ErrNoActiveAttempt is returned when a code-entry action arrives without a login in progress.
	ErrNoActiveAttempt = errors.New("no login attempt in progress")
	// ErrStoreUnavailable is returned when the session store failed to read or write.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrSessionRevoked is returned when a stored session is no longer authorized remotely.
	ErrSessionRevoked = errors.New("session has been revoked")
)

// RateLimitedError carries the wait Telegram mandated before the call may be repeated.
type RateLimitedError struct {
	Wait time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.Wait)
}
