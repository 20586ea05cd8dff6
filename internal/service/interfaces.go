package service

import (
	"context"

	"session-manager/internal/model"
)

// Identity describes the remote account that completed a login.
type Identity struct {
	UserID      int64
	Username    string
	DisplayName string
}

// AuthClient is a connected MTProto session that has not signed in yet.
// Implementations translate protocol failures into the error taxonomy of
// this package (ErrInvalidCode, ErrTwoFactorRequired, RateLimitedError).
type AuthClient interface {
	SendCode(ctx context.Context, phone string) (codeHash string, err error)
	SignIn(ctx context.Context, phone, code, codeHash string) (*Identity, error)
	ExportSession(ctx context.Context) (string, error)
	Close() error
}

// SessionClient is a connection restored from a stored session token.
type SessionClient interface {
	Ping(ctx context.Context) error
	LogOut(ctx context.Context) error
	Close() error
}

// Dialer opens MTProto connections.
type Dialer interface {
	// Dial opens a fresh, unauthenticated connection for a new login.
	Dial(ctx context.Context) (AuthClient, error)
	// DialSession opens a credential-bearing connection from an exported token.
	DialSession(ctx context.Context, token string) (SessionClient, error)
}

// SessionStore persists exported account sessions.
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Session, error)
	ListAll(ctx context.Context) ([]model.Session, error)
	DeleteByOwner(ctx context.Context, ownerID int64) (int64, error)
	DeactivateAllForOwner(ctx context.Context, ownerID int64) error
	DeactivateByID(ctx context.Context, id uint) error
	ListActiveForDisconnect(ctx context.Context, ownerID int64) ([]model.Session, error)
	ListAllActive(ctx context.Context) ([]model.Session, error)
}
