package telegram

import (
	"errors"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"

	"session-manager/internal/service"
)

// deadSessionErrors are RPC errors meaning the stored authorization is gone
// for good and the local record should stop being treated as usable.
var deadSessionErrors = []string{
	"SESSION_REVOKED",
	"SESSION_EXPIRED",
	"AUTH_KEY_UNREGISTERED",
	"AUTH_KEY_INVALID",
	"USER_DEACTIVATED",
}

// translate maps gotd errors onto the service error taxonomy. Errors with
// no mapping pass through unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &service.RateLimitedError{Wait: wait}
	}
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return service.ErrTwoFactorRequired
	}
	if tgerr.Is(err, "PHONE_CODE_INVALID") {
		return service.ErrInvalidCode
	}
	if tgerr.Is(err, deadSessionErrors...) {
		return service.ErrSessionRevoked
	}
	return err
}
