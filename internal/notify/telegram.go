package notify

import (
	"context"
	"fmt"
	"strings"

	"slotbook/internal/config"
	"slotbook/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier posts a short message to the company's Telegram chat. Companies
// without a chat id are skipped.
type TelegramNotifier struct {
	sender domain.TelegramSender
}

func NewTelegramNotifier(sender domain.TelegramSender) *TelegramNotifier {
	return &TelegramNotifier{sender: sender}
}

// NewTelegramBot connects to the Bot API with the configured token.
func NewTelegramBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Notify(_ context.Context, n *Notification) error {
	if n.Company == nil || n.Company.TelegramChatID == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(n.Company.TelegramChatID, FormatMessage(n))
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FormatMessage renders the plain text sent to the company chat.
func FormatMessage(n *Notification) string {
	r := n.Reservation

	var sb strings.Builder
	switch n.Type {
	case TypeAppointmentCancelled:
		sb.WriteString("❌ Reservation cancelled\n")
	default:
		sb.WriteString("✅ New reservation\n")
	}
	fmt.Fprintf(&sb, "📅 %s %s\n", r.Date, r.Time)
	if n.Service != nil {
		fmt.Fprintf(&sb, "💈 %s (%d min, %.2f)\n", n.Service.Name, n.Service.DurationMinutes, n.Service.Price)
	}
	fmt.Fprintf(&sb, "👤 %s\n", r.ClientID)
	fmt.Fprintf(&sb, "🆔 %s", r.ReservationID)
	return sb.String()
}
