package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the part of *tgbotapi.BotAPI used for sending.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ErrRecipientUnreachable marks a rejection scoped to one chat, such as a
// user who blocked the bot or a chat that no longer exists.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

type TelegramSender struct {
	bot BotAPI
}

func NewTelegramSender(bot BotAPI) *TelegramSender {
	return &TelegramSender{bot: bot}
}

// NewTelegramBot authorizes token against the Bot API.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return bot, nil
}

func (s *TelegramSender) Send(ctx context.Context, chatID int64, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.bot.Send(buildMessage(chatID, msg)); err != nil {
		if recipientScoped(err) {
			return fmt.Errorf("telegram send to %d: %w", chatID, errors.Join(ErrRecipientUnreachable, err))
		}
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// recipientScoped reports Bot API client errors other than rate limiting.
func recipientScoped(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		var val tgbotapi.Error
		if !errors.As(err, &val) {
			return false
		}
		apiErr = &val
	}
	return apiErr.Code >= http.StatusBadRequest &&
		apiErr.Code < http.StatusInternalServerError &&
		apiErr.Code != http.StatusTooManyRequests
}

func buildMessage(chatID int64, msg Message) tgbotapi.MessageConfig {
	out := tgbotapi.NewMessage(chatID, msg.Text)
	if len(msg.Buttons) == 0 {
		return out
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(msg.Buttons))
	for _, row := range msg.Buttons {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return out
}
