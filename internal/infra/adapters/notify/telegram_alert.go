package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rankblaze-entitlements/internal/config"
	"rankblaze-entitlements/internal/domain/model"
	"rankblaze-entitlements/internal/domain/ports/adapter"
)

var (
	_ adapter.Notifier  = (*TelegramAlerter)(nil)
	_ adapter.AlertSink = (*TelegramAlerter)(nil)
)

type chatSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlerter posts grant notices and security alerts to the admin chats.
type TelegramAlerter struct {
	bot     chatSender
	chatIDs []int64
}

func NewTelegramAlerter(cfg config.TelegramConfig) (*TelegramAlerter, error) {
	if cfg.Token == "" || len(cfg.AdminChatIDs) == 0 {
		return nil, errors.New("telegram token and admin chat ids are required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return &TelegramAlerter{bot: bot, chatIDs: cfg.AdminChatIDs}, nil
}

func (t *TelegramAlerter) Name() string { return "telegram" }

func (t *TelegramAlerter) Notify(ctx context.Context, ev model.EventPayload) error {
	return t.Alert(ctx, formatEvent(ev))
}

// Alert sends text to every admin chat and returns the first failure.
func (t *TelegramAlerter) Alert(ctx context.Context, text string) error {
	var firstErr error
	for _, id := range t.chatIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		msg := tgbotapi.NewMessage(id, text)
		if _, err := t.bot.Send(msg); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("telegram send to %d: %w", id, err)
		}
	}
	return firstErr
}

func formatEvent(ev model.EventPayload) string {
	var b strings.Builder
	switch ev.Kind {
	case model.EventEntitlementGranted:
		b.WriteString("✅ Access granted\n")
	case model.EventPaymentFailed:
		b.WriteString("❌ Payment failed\n")
	default:
		b.WriteString(string(ev.Kind) + "\n")
	}
	fmt.Fprintf(&b, "order: %s\nuser: %s\ntool: %s\namount: %d", ev.OrderID, ev.UserID, ev.ToolID, ev.Amount)
	if ev.ExpiresAt != nil {
		fmt.Fprintf(&b, "\nexpires: %s", ev.ExpiresAt.Format("2006-01-02 15:04 MST"))
	}
	return b.String()
}
