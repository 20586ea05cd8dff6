package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"session-manager/internal/service"
)

// Dialer opens gotd/td connections for logins and for stored sessions.
type Dialer struct {
	apiID   int
	apiHash string
	device  string
	logger  zerolog.Logger
}

func NewDialer(apiID int, apiHash, device string, logger zerolog.Logger) *Dialer {
	return &Dialer{
		apiID:   apiID,
		apiHash: apiHash,
		device:  device,
		logger:  logger.With().Str("component", "mtproto").Logger(),
	}
}

// Dial opens a fresh connection with an empty in-memory session.
func (d *Dialer) Dial(ctx context.Context) (service.AuthClient, error) {
	return d.start(ctx, &session.StorageMemory{})
}

// DialSession opens a connection restored from an exported session token.
func (d *Dialer) DialSession(ctx context.Context, token string) (service.SessionClient, error) {
	storage, err := storageFromToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return d.start(ctx, storage)
}

// client runs a telegram.Client in its own goroutine so the connection
// outlives the bot update that opened it. API calls are made from outside
// the Run callback while it blocks on the run context.
type client struct {
	tg      *telegram.Client
	storage *session.StorageMemory
	cancel  context.CancelFunc
	done    chan struct{}
	logger  zerolog.Logger
}

func (d *Dialer) start(ctx context.Context, storage *session.StorageMemory) (*client, error) {
	tgClient := telegram.NewClient(d.apiID, d.apiHash, telegram.Options{
		SessionStorage: storage,
		Device: telegram.DeviceConfig{
			DeviceModel: d.device,
		},
	})

	// The run context is detached from the caller's: a login attempt keeps
	// its connection alive across bot updates until Close.
	runCtx, cancel := context.WithCancel(context.Background())
	c := &client{
		tg:      tgClient,
		storage: storage,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  d.logger,
	}

	ready := make(chan struct{})
	runErr := make(chan error, 1)
	go func() {
		defer close(c.done)
		runErr <- tgClient.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		return c, nil
	case err := <-runErr:
		cancel()
		return nil, fmt.Errorf("connect: %w", translate(err))
	case <-ctx.Done():
		cancel()
		<-c.done
		return nil, ctx.Err()
	}
}

// Close tears the connection down and waits for the run loop to finish.
func (c *client) Close() error {
	c.cancel()
	<-c.done
	return nil
}

// SendCode asks Telegram to deliver a login code to the phone and returns
// the correlation hash required at sign-in.
func (c *client) SendCode(ctx context.Context, phone string) (string, error) {
	sent, err := c.tg.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", translate(err)
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code response %T", sent)
	}
	return code.PhoneCodeHash, nil
}

// SignIn completes authentication and returns the account identity.
func (c *client) SignIn(ctx context.Context, phone, code, codeHash string) (*service.Identity, error) {
	if _, err := c.tg.Auth().SignIn(ctx, phone, code, codeHash); err != nil {
		return nil, translate(err)
	}

	self, err := c.tg.Self(ctx)
	if err != nil {
		return nil, translate(err)
	}

	return &service.Identity{
		UserID:      self.ID,
		Username:    self.Username,
		DisplayName: strings.TrimSpace(self.FirstName + " " + self.LastName),
	}, nil
}

// ExportSession serializes the authenticated session into an opaque token.
func (c *client) ExportSession(ctx context.Context) (string, error) {
	data, err := c.storage.LoadSession(ctx)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return encodeToken(data), nil
}

// Ping verifies the session is still authorized.
func (c *client) Ping(ctx context.Context) error {
	if _, err := c.tg.API().UpdatesGetState(ctx); err != nil {
		return translate(err)
	}
	return nil
}

// LogOut invalidates the session on the Telegram side.
func (c *client) LogOut(ctx context.Context) error {
	if _, err := c.tg.API().AuthLogOut(ctx); err != nil {
		return translate(err)
	}
	return nil
}
