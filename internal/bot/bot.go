package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"session-manager/internal/config"
	"session-manager/internal/model"
	"session-manager/internal/service"
)

const (
	cbConnect       = "connect"
	cbListSessions  = "list_sessions"
	cbListPhones    = "list_phones"
	cbClearSessions = "clear_sessions"
	cbDisconnectAll = "disconnect_all"
	cbResetPassword = "reset_pw"

	cbDigitPrefix = "digit:"
	cbCodeDelete  = "code:delete"
	cbCodeSubmit  = "code:submit"
	cbCodeCancel  = "code:cancel"
)

// telegramServiceID is the sender of login-code service messages.
const telegramServiceID = 777000

var codePattern = regexp.MustCompile(`\d{5}`)

// keypadRef locates the keypad message being edited during code entry.
type keypadRef struct {
	chatID    int64
	messageID int
}

// Bot routes Telegram updates into the login, store and disconnect services.
type Bot struct {
	api           *tgbotapi.BotAPI
	loginSvc      *service.LoginService
	disconnectSvc *service.DisconnectService
	store         service.SessionStore
	config        *config.Config
	logger        zerolog.Logger
	keypads       map[int64]keypadRef
	mu            sync.Mutex
}

func New(token string, loginSvc *service.LoginService, disconnectSvc *service.DisconnectService, store service.SessionStore, cfg *config.Config, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger = logger.With().Str("component", "bot").Logger()
	logger.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:           api,
		loginSvc:      loginSvc,
		disconnectSvc: disconnectSvc,
		store:         store,
		config:        cfg,
		logger:        logger,
		keypads:       make(map[int64]keypadRef),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.logger.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.logger.Error().Err(err).Msg("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.logger.Info().Int64("owner", msg.From.ID).Str("command", msg.Command()).Msg("command")
		return b.handleCommand(ctx, msg)
	}

	switch b.loginSvc.State(msg.From.ID) {
	case service.StateAwaitingPhone:
		return b.handlePhoneInput(ctx, msg)
	case service.StateCollectingCode:
		return b.handleForwardedCode(msg)
	default:
		return b.sendText(msg.Chat.ID, "Pick an action from the menu below, or use /help.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		b.loginSvc.Cancel(msg.From.ID)
		b.dropKeypad(msg.From.ID)
		return b.sendText(msg.Chat.ID,
			"<b>Session Manager Bot</b>\n\n"+
				"• Press <b>CONNECT</b> to log a Telegram account in.\n"+
				"• The login code can be typed on the keypad or forwarded from @Telegram (777000).")
	case "help":
		return b.sendText(msg.Chat.ID,
			"ℹ️ <b>Commands</b>\n"+
				"• /start — show the menu\n"+
				"• /users — how many sessions you stored\n"+
				"• /cancel — abort the current login\n\n"+
				"Everything else is on the menu buttons.")
	case "users":
		sessions, err := b.store.ListByOwner(ctx, msg.From.ID)
		if err != nil {
			return b.reportStoreError(msg.Chat.ID, err)
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Stored sessions: %d", len(sessions)))
	case "admin_users":
		if !b.config.IsAdmin(msg.From.ID) {
			return b.sendText(msg.Chat.ID, "You are not an admin.")
		}
		sessions, err := b.store.ListAll(ctx)
		if err != nil {
			return b.reportStoreError(msg.Chat.ID, err)
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("[ADMIN] Total stored sessions: %d", len(sessions)))
	case "cancel":
		b.loginSvc.Cancel(msg.From.ID)
		b.dropKeypad(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Login cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

// handlePhoneInput consumes the phone number and requests a login code.
func (b *Bot) handlePhoneInput(ctx context.Context, msg *tgbotapi.Message) error {
	owner := msg.From.ID
	phone, err := b.loginSvc.SubmitPhone(ctx, owner, msg.Text)
	switch {
	case errors.Is(err, service.ErrInvalidPhoneFormat):
		return b.sendText(msg.Chat.ID,
			"Invalid number.\nSend digits only in international format, e.g. <code>6281234567890</code>")
	case errors.Is(err, service.ErrCodeSendFailed):
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Failed to send the code: %s", escape(causeText(err))))
	case err != nil:
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Login failed: %s", escape(err.Error())))
	}

	b.logger.Info().Int64("owner", owner).Msg("code requested, collecting digits")
	sent, sendErr := b.api.Send(b.keypadMessage(msg.Chat.ID, service.CodeInput{},
		fmt.Sprintf("Code sent to <code>%s</code>.", escape(phone))))
	if sendErr != nil {
		return sendErr
	}
	b.setKeypad(owner, keypadRef{chatID: msg.Chat.ID, messageID: sent.MessageID})
	return nil
}

// handleForwardedCode reads a login code out of a forwarded 777000 message.
func (b *Bot) handleForwardedCode(msg *tgbotapi.Message) error {
	if msg.ForwardFrom == nil || msg.ForwardFrom.ID != telegramServiceID || msg.Text == "" {
		return b.sendText(msg.Chat.ID, "Forward the code message from <b>@Telegram (777000)</b>, or use the keypad.")
	}

	code := codePattern.FindString(msg.Text)
	if code == "" {
		return b.sendText(msg.Chat.ID, "No 5-digit code found in that message.")
	}

	if err := b.loginSvc.SetCode(msg.From.ID, code); err != nil {
		return b.sendText(msg.Chat.ID, "No login in progress. Press CONNECT to start.")
	}

	if err := b.refreshKeypad(msg.From.ID, "Code read from the forwarded message. Press ✅ to sign in."); err != nil {
		return err
	}
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	data := cb.Data
	owner := cb.From.ID
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, cbDigitPrefix):
		// Callback data arrives from the client and can be forged or
		// truncated; anything but a single digit is dropped.
		d, ok := digitFromCallback(data)
		if !ok {
			return nil
		}
		return b.handleDigit(cb, d)
	case data == cbCodeDelete:
		return b.handleDeleteDigit(cb)
	case data == cbCodeSubmit:
		return b.handleSubmitCode(ctx, cb)
	case data == cbCodeCancel:
		b.ack(cb, "Login cancelled")
		b.loginSvc.Cancel(owner)
		b.dropKeypad(owner)
		return b.sendText(chatID, "⏪ Login cancelled.")
	case data == cbConnect:
		b.ack(cb, "")
		b.loginSvc.Begin(owner)
		b.dropKeypad(owner)
		return b.sendText(chatID,
			"Send the phone number of the account to log in.\n"+
				"International format without +, e.g. <code>6281234567890</code>")
	case data == cbListSessions:
		b.ack(cb, "")
		return b.handleListSessions(ctx, chatID, owner)
	case data == cbListPhones:
		b.ack(cb, "")
		return b.handleListPhones(ctx, chatID, owner)
	case data == cbClearSessions:
		b.ack(cb, "")
		return b.handleClearSessions(ctx, chatID, owner)
	case data == cbDisconnectAll:
		b.ack(cb, "Disconnecting…")
		return b.handleDisconnectAll(ctx, chatID, owner)
	case data == cbResetPassword:
		b.alert(cb, "Password reset is not implemented.")
		return nil
	default:
		b.ack(cb, "")
		return nil
	}
}

func (b *Bot) handleDigit(cb *tgbotapi.CallbackQuery, d rune) error {
	if _, err := b.loginSvc.PressDigit(cb.From.ID, d); err != nil {
		b.alert(cb, "No login in progress.")
		return nil
	}
	b.ack(cb, "")
	return b.refreshKeypad(cb.From.ID, "")
}

func (b *Bot) handleDeleteDigit(cb *tgbotapi.CallbackQuery) error {
	if _, err := b.loginSvc.DeleteDigit(cb.From.ID); err != nil {
		b.alert(cb, "No login in progress.")
		return nil
	}
	b.ack(cb, "")
	return b.refreshKeypad(cb.From.ID, "")
}

func (b *Bot) handleSubmitCode(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	owner := cb.From.ID
	chatID := cb.Message.Chat.ID

	record, err := b.loginSvc.SubmitCode(ctx, owner)
	var rateLimited *service.RateLimitedError
	switch {
	case errors.Is(err, service.ErrNoActiveAttempt):
		b.alert(cb, "No login in progress.")
		return nil
	case errors.Is(err, service.ErrIncompleteCode):
		b.alert(cb, fmt.Sprintf("Enter all %d digits first.", service.CodeLength))
		return nil
	case errors.Is(err, service.ErrInvalidCode):
		b.ack(cb, "Wrong code")
		return b.refreshKeypad(owner, "❌ Wrong code. Enter it again, no new code was sent.")
	case errors.Is(err, service.ErrTwoFactorRequired):
		b.ack(cb, "")
		b.dropKeypad(owner)
		return b.sendText(chatID,
			"This account uses two-step verification (password).\nLogging in such accounts is not supported.")
	case errors.As(err, &rateLimited):
		b.ack(cb, "")
		return b.sendText(chatID, fmt.Sprintf("Telegram asked to wait %s. Press ✅ again to retry.", rateLimited.Wait))
	case errors.Is(err, service.ErrStoreUnavailable):
		b.ack(cb, "")
		b.dropKeypad(owner)
		return b.sendText(chatID, "Storage failure, the session was not saved. Try again later.")
	case err != nil:
		b.ack(cb, "")
		b.dropKeypad(owner)
		return b.sendText(chatID, fmt.Sprintf("Login failed: %s", escape(err.Error())))
	}

	b.ack(cb, "Signed in")
	b.dropKeypad(owner)
	return b.deliverSession(chatID, record)
}

// deliverSession announces a successful login and uploads the token artifact.
func (b *Bot) deliverSession(chatID int64, record *model.Session) error {
	summary := fmt.Sprintf(
		"✅ <b>Session created!</b>\n\n"+
			"STATUS: ✅ Active\n"+
			"ID: <code>%d</code>\n"+
			"USERNAME: @%s\n"+
			"NAME: %s\n"+
			"PHONE: <code>%s</code>\n"+
			"DATE: %s",
		record.RemoteUserID,
		escape(orDash(record.Username)),
		escape(orDash(record.DisplayName)),
		escape(record.Phone),
		record.CreatedAt.Format("2006-01-02 15:04:05"),
	)
	if err := b.sendText(chatID, summary); err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  artifactName(record.OwnerID, record.CreatedAt),
		Bytes: []byte(record.SessionToken),
	})
	doc.Caption = "Your session token. Keep it safe."
	_, err := b.api.Send(doc)
	return err
}

func (b *Bot) handleListSessions(ctx context.Context, chatID, owner int64) error {
	sessions, err := b.store.ListByOwner(ctx, owner)
	if err != nil {
		return b.reportStoreError(chatID, err)
	}
	if len(sessions) == 0 {
		return b.sendText(chatID, "List of sessions\nTotal: 0")
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("List of sessions\nTotal: %d\n\n", len(sessions)))
	for _, s := range sessions {
		status := "✅"
		if !s.IsActive {
			status = "❌"
		}
		builder.WriteString(fmt.Sprintf(
			"DB ID: %d\nSTATUS: %s\nTG ID: %d\nUSERNAME: @%s\nNAME: %s\nPHONE: %s\nDEVICE: %s\nDATE: %s\n-------------------------\n",
			s.ID, status, s.RemoteUserID,
			escape(orDash(s.Username)), escape(orDash(s.DisplayName)),
			escape(s.Phone), escape(s.Device),
			s.CreatedAt.Format("2006-01-02 15:04:05"),
		))
	}
	return b.sendText(chatID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleListPhones(ctx context.Context, chatID, owner int64) error {
	sessions, err := b.store.ListByOwner(ctx, owner)
	if err != nil {
		return b.reportStoreError(chatID, err)
	}
	if len(sessions) == 0 {
		return b.sendText(chatID, "No sessions stored yet.")
	}

	var lines []string
	for _, s := range sessions {
		lines = append(lines, fmt.Sprintf("%s → %d (@%s)", escape(s.Phone), s.RemoteUserID, escape(orDash(s.Username))))
	}
	return b.sendText(chatID, "Stored phone numbers:\n\n"+strings.Join(lines, "\n"))
}

func (b *Bot) handleClearSessions(ctx context.Context, chatID, owner int64) error {
	count, err := b.store.DeleteByOwner(ctx, owner)
	if err != nil {
		return b.reportStoreError(chatID, err)
	}
	b.logger.Info().Int64("owner", owner).Int64("deleted", count).Msg("sessions cleared")
	return b.sendText(chatID, fmt.Sprintf("Sessions cleared.\nDeleted: %d record(s).", count))
}

func (b *Bot) handleDisconnectAll(ctx context.Context, chatID, owner int64) error {
	confirmed, attempted, err := b.disconnectSvc.DisconnectAll(ctx, owner)
	if err != nil {
		return b.reportStoreError(chatID, err)
	}
	if attempted == 0 {
		return b.sendText(chatID, "No active sessions.")
	}
	return b.sendText(chatID, fmt.Sprintf("Disconnect finished.\nLogged out of %d of %d session(s).", confirmed, attempted))
}

func (b *Bot) reportStoreError(chatID int64, err error) error {
	b.logger.Error().Err(err).Msg("session store")
	return b.sendText(chatID, "Storage failure. Try again later.")
}

// refreshKeypad re-renders the keypad message with the current accumulator.
func (b *Bot) refreshKeypad(owner int64, note string) error {
	code, err := b.loginSvc.Code(owner)
	if err != nil {
		return nil
	}
	ref, ok := b.getKeypad(owner)
	if !ok {
		return nil
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(ref.chatID, ref.messageID, keypadText(code, note), keypadMarkup())
	edit.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(edit)
	return err
}

func (b *Bot) keypadMessage(chatID int64, code service.CodeInput, note string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, keypadText(code, note))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keypadMarkup()
	return msg
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.logger.Warn().Err(err).Msg("callback ack")
	}
}

func (b *Bot) alert(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(cb.ID, text)); err != nil {
		b.logger.Warn().Err(err).Msg("callback alert")
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getKeypad(owner int64) (keypadRef, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref, ok := b.keypads[owner]
	return ref, ok
}

func (b *Bot) setKeypad(owner int64, ref keypadRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keypads[owner] = ref
}

func (b *Bot) dropKeypad(owner int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.keypads, owner)
}

// causeText unwraps the sentinel prefix so the user sees the real reason.
func causeText(err error) string {
	text := err.Error()
	if idx := strings.LastIndex(text, ": "); idx >= 0 {
		return text[idx+2:]
	}
	return text
}

// digitFromCallback extracts the keypad digit out of "digit:<d>" data.
func digitFromCallback(data string) (rune, bool) {
	rest := strings.TrimPrefix(data, cbDigitPrefix)
	if len(rest) != 1 || rest[0] < '0' || rest[0] > '9' {
		return 0, false
	}
	return rune(rest[0]), true
}

func artifactName(ownerID int64, createdAt time.Time) string {
	return fmt.Sprintf("session_%d_%d.txt", ownerID, createdAt.Unix())
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func escape(s string) string {
	return html.EscapeString(s)
}
