package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"session-manager/internal/service"
)

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🟢 CONNECT", cbConnect),
			tgbotapi.NewInlineKeyboardButtonData("📄 SESSIONS", cbListSessions),
			tgbotapi.NewInlineKeyboardButtonData("📱 PHONES", cbListPhones),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧹 CLEAR", cbClearSessions),
			tgbotapi.NewInlineKeyboardButtonData("🟡 DISCONNECT", cbDisconnectAll),
			tgbotapi.NewInlineKeyboardButtonData("🔐 RESET PW", cbResetPassword),
		),
	)
}

func keypadMarkup() tgbotapi.InlineKeyboardMarkup {
	digit := func(d string) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(d, cbDigitPrefix+d)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(digit("1"), digit("2"), digit("3")),
		tgbotapi.NewInlineKeyboardRow(digit("4"), digit("5"), digit("6")),
		tgbotapi.NewInlineKeyboardRow(digit("7"), digit("8"), digit("9")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️", cbCodeDelete),
			digit("0"),
			tgbotapi.NewInlineKeyboardButtonData("✅", cbCodeSubmit),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbCodeCancel),
		),
	)
}

func keypadText(code service.CodeInput, note string) string {
	text := fmt.Sprintf(
		"🔐 <b>Enter the login code</b>\n\n<code>%s</code>\n\n"+
			"Use the keypad, or forward the code message from @Telegram (777000).",
		code.Masked(),
	)
	if note != "" {
		text += "\n\n" + note
	}
	return text
}
