package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-telegram-otp/internal/clock"
	"github.com/tbourn/go-telegram-otp/internal/domain"
	"github.com/tbourn/go-telegram-otp/internal/keylock"
	"github.com/tbourn/go-telegram-otp/internal/services"
	"github.com/tbourn/go-telegram-otp/internal/trail"
)

// Callback payloads attached to inline buttons.
const (
	CallbackAbout    = "show_alert"
	CallbackCodeInfo = "show_code_info"
)

const adminListLimit = 10

// Accounts is the account store the engine needs.
type Accounts interface {
	ByTelegramID(ctx context.Context, telegramID int64) (*domain.Account, error)
	LinkContact(ctx context.Context, in services.ContactLink) (*domain.Account, bool, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Account, int64, error)
}

// Sessions is the OTP store the engine needs.
type Sessions interface {
	Issue(ctx context.Context, accountID string, ttl time.Duration, channel string, deliver services.DeliverFunc) (*domain.OTPSession, bool, error)
	ActiveSessionFor(ctx context.Context, accountID string) (*domain.OTPSession, error)
}

// Options tune an Engine.
type Options struct {
	Admins    []int64
	ChatTTL   time.Duration
	Location  *time.Location
	AboutText string
	Clock     clock.Clock
}

// Engine answers chat events. Events from one chat user are handled one at a
// time; before each message event the user's previous bot replies and stale
// commands are removed from the chat.
type Engine struct {
	accounts  Accounts
	sessions  Sessions
	trail     *trail.Trail
	transport *Transport
	notifier  *Notifier

	admins  map[int64]struct{}
	chatTTL time.Duration
	loc     *time.Location
	about   string
	clock   clock.Clock
	locks   *keylock.Table
}

// NewEngine wires an Engine. The notifier must share tr and t.
func NewEngine(accts Accounts, sess Sessions, t *Transport, tr *trail.Trail, n *Notifier, opts Options) *Engine {
	e := &Engine{
		accounts:  accts,
		sessions:  sess,
		trail:     tr,
		transport: t,
		notifier:  n,
		admins:    make(map[int64]struct{}, len(opts.Admins)),
		chatTTL:   opts.ChatTTL,
		loc:       opts.Location,
		about:     opts.AboutText,
		clock:     opts.Clock,
		locks:     keylock.New(),
	}
	for _, id := range opts.Admins {
		e.admins[id] = struct{}{}
	}
	if e.chatTTL <= 0 {
		e.chatTTL = services.ChatOTPTTL
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.about == "" {
		e.about = defaultAbout
	}
	return e
}

// Handle processes one event. Faults inside command handling (errors and
// panics) are logged and answered with a generic notice; they are never
// returned. The only error is a context that was already done.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := ev.Header()
	unlock := e.locks.Lock(strconv.FormatInt(h.From.ID, 10))
	defer unlock()

	lg := log.With().
		Int("update_id", h.UpdateID).
		Int64("chat_id", h.ChatID).
		Str("event", ev.Kind()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			lg.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("bot handler panic")
			e.notifyFailure(ctx, h)
		}
	}()

	if ev.Kind() != KindCallback {
		e.tidy(ctx, h)
	}
	if err := e.dispatch(ctx, ev, lg); err != nil {
		lg.Error().Err(err).Msg("bot handler failed")
		e.notifyFailure(ctx, h)
	}
	return nil
}

// tidy records the inbound message and deletes the previous clutter.
func (e *Engine) tidy(ctx context.Context, h Meta) {
	e.trail.RecordUserCommand(h.From.ID, h.MessageID)
	botIDs, stale := e.trail.DrainAndReset(h.From.ID)
	for _, id := range botIDs {
		_ = e.transport.Delete(ctx, h.ChatID, id) // best effort
	}
	for _, id := range stale {
		_ = e.transport.Delete(ctx, h.ChatID, id) // best effort
	}
}

func (e *Engine) dispatch(ctx context.Context, ev Event, lg zerolog.Logger) error {
	switch ev := ev.(type) {
	case CommandEvent:
		switch ev.Name {
		case "start":
			return e.start(ctx, ev.Meta)
		case "login":
			return e.login(ctx, ev.Meta, lg)
		case "help":
			return e.help(ctx, ev.Meta)
		case "admin_list_users":
			return e.adminListUsers(ctx, ev.Meta)
		default:
			return e.reply(ctx, ev.Meta, tgbotapi.NewMessage(ev.ChatID, unknownCommandText(ev.Name)))
		}
	case TextEvent:
		return e.text(ctx, ev.Meta)
	case ContactEvent:
		return e.contact(ctx, ev, lg)
	case CallbackEvent:
		return e.callback(ctx, ev)
	default:
		return fmt.Errorf("unhandled event %T", ev)
	}
}

func (e *Engine) start(ctx context.Context, h Meta) error {
	acct, err := e.linkedAccount(ctx, h.From.ID)
	if err != nil {
		return err
	}
	aboutKB := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("ℹ️ About", CallbackAbout),
	))

	if acct != nil {
		msg := tgbotapi.NewMessage(h.ChatID, fmt.Sprintf(
			"👋 Welcome back, %s!\n\nYour number %s is already linked.\n\nUse /login to get a login code.",
			e.displayName(h.From), acct.Phone()))
		msg.ReplyMarkup = aboutKB
		return e.reply(ctx, h, msg)
	}

	contactKB := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButtonContact("📱 Share contact"),
	))
	contactKB.OneTimeKeyboard = true
	ask := tgbotapi.NewMessage(h.ChatID, fmt.Sprintf(
		"Hi, %s!\n\nTo log in, share your phone number.\nTap the button below to send your contact:",
		e.displayName(h.From)))
	ask.ReplyMarkup = contactKB
	_ = e.reply(ctx, h, ask)

	info := tgbotapi.NewMessage(h.ChatID, "ℹ️ Tap below to learn about this bot:")
	info.ReplyMarkup = aboutKB
	return e.reply(ctx, h, info)
}

func (e *Engine) contact(ctx context.Context, ev ContactEvent, lg zerolog.Logger) error {
	removeKB := tgbotapi.NewRemoveKeyboard(true)

	acct, created, err := e.accounts.LinkContact(ctx, services.ContactLink{
		SenderID:      ev.From.ID,
		ContactUserID: ev.ContactUserID,
		Phone:         ev.Phone,
		Username:      ev.From.Username,
		FirstName:     ev.From.FirstName,
		LastName:      ev.From.LastName,
	})

	var text string
	switch {
	case errors.Is(err, services.ErrContactMismatch):
		text = "❌ Please share your own contact."
	case err != nil:
		lg.Error().Err(err).Msg("link contact failed")
		text = fmt.Sprintf("❌ Could not set up an account for %s.\n\nPlease contact an administrator.", ev.Phone)
	case created:
		lg.Info().Str("account_id", acct.ID).Msg("account created from contact")
		text = fmt.Sprintf("✅ Your account was created and %s is linked.\n\nYou can now use /login to get a login code.", ev.Phone)
	default:
		lg.Info().Str("account_id", acct.ID).Msg("contact linked")
		text = fmt.Sprintf("✅ Your number %s is linked.\n\nYou can now use /login to get a login code.", ev.Phone)
	}

	msg := tgbotapi.NewMessage(ev.ChatID, text)
	msg.ReplyMarkup = removeKB
	return e.reply(ctx, ev.Meta, msg)
}

func (e *Engine) login(ctx context.Context, h Meta, lg zerolog.Logger) error {
	acct, err := e.linkedAccount(ctx, h.From.ID)
	if err != nil {
		return err
	}
	if acct == nil {
		return e.reply(ctx, h, tgbotapi.NewMessage(h.ChatID,
			"❌ Your account is not linked yet.\n\nUse /start to register."))
	}

	name := e.displayName(h.From)
	_, created, err := e.sessions.Issue(ctx, acct.ID, e.chatTTL, services.ChannelChat,
		func(ctx context.Context, s *domain.OTPSession) error {
			return e.notifier.SendCode(ctx, h.ChatID, h.From.ID, name, s)
		})
	switch {
	case errors.Is(err, services.ErrDeliveryFailed):
		lg.Warn().Err(err).Str("account_id", acct.ID).Msg("chat code delivery failed")
		return e.reply(ctx, h, tgbotapi.NewMessage(h.ChatID,
			"❌ Could not send your login code. No code was issued, please try /login again."))
	case err != nil:
		return err
	case created:
		lg.Info().Str("account_id", acct.ID).Msg("login code issued")
		return nil
	}

	msg := tgbotapi.NewMessage(h.ChatID,
		"⚠️ Your previous code is still valid 👆\n\nUse it, or wait until it expires.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("ℹ️ Show code info", CallbackCodeInfo),
	))
	return e.reply(ctx, h, msg)
}

func (e *Engine) help(ctx context.Context, h Meta) error {
	var b strings.Builder
	b.WriteString("🤖 Available commands:\n\n")
	b.WriteString(commandList)
	b.WriteString("\n\nUse /login to log in.")
	if e.isAdmin(h.From.ID) {
		b.WriteString("\n\n🔧 Admin commands:\n/admin_list_users - list users")
	}
	return e.reply(ctx, h, tgbotapi.NewMessage(h.ChatID, b.String()))
}

func (e *Engine) adminListUsers(ctx context.Context, h Meta) error {
	if !e.isAdmin(h.From.ID) {
		return e.reply(ctx, h, tgbotapi.NewMessage(h.ChatID, "❌ You are not allowed to run this command."))
	}
	accts, _, err := e.accounts.ListPage(ctx, 1, adminListLimit)
	if err != nil {
		return err
	}
	if len(accts) == 0 {
		return e.reply(ctx, h, tgbotapi.NewMessage(h.ChatID, "📝 No users found."))
	}

	var b strings.Builder
	b.WriteString("📋 Users:\n\n")
	for i := range accts {
		a := &accts[i]
		status := "❌ not linked"
		if a.Linked() {
			status = "✅ linked"
		}
		fmt.Fprintf(&b, "👤 %s\n📱 %s\n🆔 ID: %s\n📲 Telegram: %s\n👤 Name: %s\n\n",
			a.Username, a.Phone(), a.ID, status, strings.TrimSpace(a.DisplayName()+" "+a.LastName))
	}
	if len(accts) == adminListLimit {
		fmt.Fprintf(&b, "... (first %d users shown)", adminListLimit)
	}
	return e.reply(ctx, h, tgbotapi.NewMessage(h.ChatID, b.String()))
}

func (e *Engine) text(ctx context.Context, h Meta) error {
	acct, err := e.linkedAccount(ctx, h.From.ID)
	if err != nil {
		return err
	}
	text := "To get started, use /start"
	if acct != nil {
		text = "Use /login to get a login code or /help for help."
	}
	return e.reply(ctx, h, tgbotapi.NewMessage(h.ChatID, text))
}

func (e *Engine) callback(ctx context.Context, ev CallbackEvent) error {
	switch ev.Data {
	case CallbackAbout:
		_ = e.transport.AnswerCallback(ctx, ev.CallbackID, e.about, true)
		return nil
	case CallbackCodeInfo:
		text, err := e.codeInfo(ctx, ev.From.ID)
		if err != nil {
			return err
		}
		_ = e.transport.AnswerCallback(ctx, ev.CallbackID, text, true)
		return nil
	default:
		_ = e.transport.AnswerCallback(ctx, ev.CallbackID, "", false)
		return nil
	}
}

// codeInfo describes the user's active code without changing any state.
func (e *Engine) codeInfo(ctx context.Context, telegramID int64) (string, error) {
	acct, err := e.linkedAccount(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "❌ Account not found\n\nUse /start to register.", nil
	}
	s, err := e.sessions.ActiveSessionFor(ctx, acct.ID)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "ℹ️ No active code\n\nUse /login to get a new one.", nil
	}
	remaining := int(s.Remaining(e.clock.Now()) / time.Second)
	return fmt.Sprintf("🔑 Code info\n\nCode: %s\nTime left: %d seconds\nCreated: %s\n\nUse this code to log in on the website.",
		s.Code, remaining, s.CreatedAt.In(e.loc).Format("15:04:05")), nil
}

// linkedAccount returns the account for a chat identity, or nil if none.
func (e *Engine) linkedAccount(ctx context.Context, telegramID int64) (*domain.Account, error) {
	acct, err := e.accounts.ByTelegramID(ctx, telegramID)
	if errors.Is(err, services.ErrAccountNotFound) {
		return nil, nil
	}
	return acct, err
}

func (e *Engine) reply(ctx context.Context, h Meta, c tgbotapi.Chattable) error {
	if err := e.notifier.Reply(ctx, h.From.ID, c); err != nil {
		// Replies are not on the critical path.
		log.Debug().Err(err).Int64("chat_id", h.ChatID).Msg("telegram reply failed")
	}
	return nil
}

func (e *Engine) notifyFailure(ctx context.Context, h Meta) {
	msg := tgbotapi.NewMessage(h.ChatID, "❌ Something went wrong. Try again later or contact an administrator.")
	if err := e.notifier.Reply(ctx, h.From.ID, msg); err != nil {
		log.Error().Err(err).Int64("chat_id", h.ChatID).Msg("could not send failure notice")
	}
}

func (e *Engine) isAdmin(id int64) bool {
	_, ok := e.admins[id]
	return ok
}

func (e *Engine) displayName(f From) string {
	if f.FirstName != "" {
		// Casers keep state, so one per call.
		return cases.Title(language.Und).String(f.FirstName)
	}
	if f.Username != "" {
		return f.Username
	}
	return "there"
}

const commandList = "/start - start using the bot\n/login - get a login code\n/help - show this help"

const defaultAbout = "🤖 Login bot\n\nShare your contact once, then use /login whenever you need a one-time code for the website."

func unknownCommandText(name string) string {
	return fmt.Sprintf("❌ Unknown command: /%s\n\nAvailable commands:\n%s", name, commandList)
}
