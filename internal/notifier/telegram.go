package notifier

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender delivers notifications through the Telegram Bot API
type TelegramSender struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramSender(bot *tgbotapi.BotAPI) *TelegramSender {
	return &TelegramSender{bot: bot}
}

// Send sends one HTML message to a chat. Errors (blocked bot, deleted
// chat, rate-limit rejection) are returned for the dispatcher to record.
func (s *TelegramSender) Send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		log.Printf("Error sending message to chat %d: %v", chatID, err)
		return err
	}
	return nil
}
