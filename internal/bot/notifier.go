package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-telegram-otp/internal/domain"
	"github.com/tbourn/go-telegram-otp/internal/trail"
)

// Notifier sends login codes over the chat channel and records every message
// it sends in the trail, so the next inbound event clears it.
type Notifier struct {
	Transport *Transport
	Trail     *trail.Trail
	SiteName  string
}

// DeliverCode sends s.Code to the account's linked chat. Used by the web
// request-code flow; a returned error rolls the session back.
func (n *Notifier) DeliverCode(ctx context.Context, acct *domain.Account, s *domain.OTPSession) error {
	if !acct.Linked() {
		return fmt.Errorf("deliver code: account %s has no chat identity", acct.ID)
	}
	chatID := *acct.TelegramID
	// Private chats share their ID with the user.
	return n.SendCode(ctx, chatID, chatID, "", s)
}

// SendCode delivers a code message to chatID and records it under userID.
func (n *Notifier) SendCode(ctx context.Context, chatID, userID int64, name string, s *domain.OTPSession) error {
	msg := tgbotapi.NewMessage(chatID, codeText(name, s.Code, s.ExpiresAt.Sub(s.CreatedAt), n.SiteName))
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := n.Transport.Send(ctx, msg)
	if err != nil {
		return err
	}
	n.Trail.RecordBotMessage(userID, sent.MessageID)
	return nil
}

// Reply sends c and records the resulting message under userID. The error is
// returned so callers can log it; nothing is retried.
func (n *Notifier) Reply(ctx context.Context, userID int64, c tgbotapi.Chattable) error {
	sent, err := n.Transport.Send(ctx, c)
	if err != nil {
		return err
	}
	n.Trail.RecordBotMessage(userID, sent.MessageID)
	return nil
}

// codeText renders the code message in legacy Markdown. Interpolated names
// are escaped; Telegram rejects the whole message on an unbalanced entity.
func codeText(name, code string, ttl time.Duration, site string) string {
	greeting := ""
	if name != "" {
		greeting = fmt.Sprintf("Hi, %s!\n\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, name))
	}
	where := ""
	if site != "" {
		where = fmt.Sprintf("\nEnter it on %s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, site))
	}
	return fmt.Sprintf("🔑 Your login code\n\n%s`%s`\n\n⏰ Valid for %s%s", greeting, code, humanTTL(ttl), where)
}

func humanTTL(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	switch {
	case secs == 60:
		return "1 minute"
	case secs > 0 && secs%60 == 0:
		return fmt.Sprintf("%d minutes", secs/60)
	default:
		return fmt.Sprintf("%d seconds", secs)
	}
}
