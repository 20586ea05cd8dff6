package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"session-manager/internal/service"
)

func TestCauseText(t *testing.T) {
	wrapped := fmt.Errorf("%w: %v", service.ErrCodeSendFailed, errors.New("PHONE_NUMBER_BANNED"))
	if got := causeText(wrapped); got != "PHONE_NUMBER_BANNED" {
		t.Fatalf("expected the cause only, got %q", got)
	}
	if got := causeText(errors.New("plain failure")); got != "plain failure" {
		t.Fatalf("unwrapped errors pass through, got %q", got)
	}
}

func TestArtifactName(t *testing.T) {
	createdAt := time.Unix(1700000000, 0)
	if got := artifactName(42, createdAt); got != "session_42_1700000000.txt" {
		t.Fatalf("unexpected artifact name %q", got)
	}
}

func TestOrDash(t *testing.T) {
	if got := orDash(""); got != "-" {
		t.Fatalf("empty value must render as dash, got %q", got)
	}
	if got := orDash("   "); got != "-" {
		t.Fatalf("blank value must render as dash, got %q", got)
	}
	if got := orDash("alice"); got != "alice" {
		t.Fatalf("real value must pass through, got %q", got)
	}
}

func TestEscape(t *testing.T) {
	if got := escape("<b>x</b>"); got != "&lt;b&gt;x&lt;/b&gt;" {
		t.Fatalf("markup must be escaped, got %q", got)
	}
}

func TestDigitFromCallback(t *testing.T) {
	tests := []struct {
		data string
		want rune
		ok   bool
	}{
		{data: "digit:0", want: '0', ok: true},
		{data: "digit:9", want: '9', ok: true},
		{data: "digit:", ok: false},
		{data: "digit:12", ok: false},
		{data: "digit:x", ok: false},
	}
	for _, tt := range tests {
		got, ok := digitFromCallback(tt.data)
		if ok != tt.ok || got != tt.want {
			t.Errorf("digitFromCallback(%q) = %q, %v; want %q, %v", tt.data, got, ok, tt.want, tt.ok)
		}
	}
}

// Keypad callback data comes from the client and can be crafted; malformed
// payloads must be dropped, not crash the update loop.
func TestHandleCallbackMalformedDigit(t *testing.T) {
	b := &Bot{}
	for _, data := range []string{"digit:", "digit:12", "digit:x"} {
		cb := &tgbotapi.CallbackQuery{
			ID:      "1",
			From:    &tgbotapi.User{ID: 7},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}},
			Data:    data,
		}
		if err := b.handleCallback(context.Background(), cb); err != nil {
			t.Fatalf("malformed callback %q must be dropped, got %v", data, err)
		}
	}
}

func TestCodePattern(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "Login code: 12345. Do not give this code to anyone.", want: "12345"},
		{text: "Your code is 98765", want: "98765"},
		{text: "no code here", want: ""},
		{text: "too short 1234", want: ""},
	}
	for _, tt := range tests {
		if got := codePattern.FindString(tt.text); got != tt.want {
			t.Errorf("codePattern(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestKeypadText(t *testing.T) {
	var code service.CodeInput
	code.Set("12")

	text := keypadText(code, "")
	if text == "" {
		t.Fatal("keypad text must not be empty")
	}
	if want := code.Masked(); !strings.Contains(text, want) {
		t.Fatalf("keypad text must show the accumulator %q, got %q", want, text)
	}

	withNote := keypadText(code, "❌ Wrong code.")
	if !strings.Contains(withNote, "❌ Wrong code.") {
		t.Fatalf("note must be rendered, got %q", withNote)
	}
}

func TestKeypadMarkupLayout(t *testing.T) {
	markup := keypadMarkup()
	if len(markup.InlineKeyboard) != 5 {
		t.Fatalf("expected 5 keypad rows, got %d", len(markup.InlineKeyboard))
	}

	// Digit rows carry digit callbacks; the last row cancels.
	first := markup.InlineKeyboard[0][0]
	if first.CallbackData == nil || *first.CallbackData != cbDigitPrefix+"1" {
		t.Fatalf("unexpected first button callback %v", first.CallbackData)
	}
	last := markup.InlineKeyboard[4][0]
	if last.CallbackData == nil || *last.CallbackData != cbCodeCancel {
		t.Fatalf("unexpected cancel callback %v", last.CallbackData)
	}
}
