package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChatSender is the subset of *tgbotapi.BotAPI used to send messages.
type ChatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers messages through the Bot API.
type TelegramSender struct {
	api ChatSender
}

// NewTelegramSender constructs a TelegramSender.
func NewTelegramSender(api ChatSender) *TelegramSender {
	return &TelegramSender{api: api}
}

// Deliver implements Sender.
func (s *TelegramSender) Deliver(_ context.Context, msg Message) error {
	if _, errSend := s.api.Send(BuildMessage(msg)); errSend != nil {
		return fmt.Errorf("notify: telegram send to %d: %w", msg.ChatID, errSend)
	}
	return nil
}

// BuildMessage converts msg into a Bot API message config.
func BuildMessage(msg Message) tgbotapi.MessageConfig {
	out := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	if markup, ok := InlineKeyboard(msg.Buttons); ok {
		out.ReplyMarkup = markup
	}
	return out
}

// InlineKeyboard converts button rows into inline keyboard markup.
func InlineKeyboard(rows [][]Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...), true
}
