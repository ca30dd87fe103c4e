package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
)

// TelegramSender шлёт уведомления в личный чат пользователя.
type TelegramSender struct {
	bot *bot.Bot
}

// NewTelegramSender создаёт клиента без обращения к getMe, поэтому не ходит в сеть при старте.
func NewTelegramSender(token string) (*TelegramSender, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{bot: b}, nil
}

func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	if msg.To == nil || msg.To.TelegramChatID == nil {
		return nil
	}

	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    *msg.To.TelegramChatID,
		Text:      "<b>" + html.EscapeString(msg.Subject) + "</b>\n\n" + html.EscapeString(msg.Text),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return apperr.Upstream(err, "telegram: send %s to user %d", msg.Kind, msg.To.ID)
	}
	return nil
}
