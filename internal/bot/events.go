// Package bot implements the chat side of the login flow: parsing Telegram
// updates into a closed set of events, the conversation engine that answers
// them, and the two ingress modes (webhook and long polling) that feed it.
package bot

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrUnsupportedUpdate is returned by ParseUpdate for updates that are not
// one of the handled event kinds (edits, channel posts, photos, ...).
var ErrUnsupportedUpdate = errors.New("unsupported update")

// Event kinds, also used as metric labels.
const (
	KindCommand  = "command"
	KindText     = "text"
	KindContact  = "contact"
	KindCallback = "callback"
)

// From identifies the chat user behind an event.
type From struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Meta carries the fields every event has.
type Meta struct {
	UpdateID int
	ChatID   int64
	// MessageID is the inbound message for command, text, and contact events,
	// and the message the button was attached to for callbacks (0 if unknown).
	MessageID int
	From      From
}

// Event is one of CommandEvent, TextEvent, ContactEvent, or CallbackEvent.
type Event interface {
	Kind() string
	Header() Meta
}

// CommandEvent is a "/name args" message.
type CommandEvent struct {
	Meta
	Name string
	Args string
}

// TextEvent is a plain text message.
type TextEvent struct {
	Meta
	Text string
}

// ContactEvent is a shared contact card.
type ContactEvent struct {
	Meta
	Phone string
	// ContactUserID is the chat identity embedded in the card; it equals
	// From.ID only when users share their own contact.
	ContactUserID int64
}

// CallbackEvent is an inline keyboard button press.
type CallbackEvent struct {
	Meta
	CallbackID string
	Data       string
}

func (CommandEvent) Kind() string  { return KindCommand }
func (TextEvent) Kind() string     { return KindText }
func (ContactEvent) Kind() string  { return KindContact }
func (CallbackEvent) Kind() string { return KindCallback }

func (m Meta) Header() Meta { return m }

// ParseUpdate converts a transport update into an Event, validating the
// fields each variant needs. Anything else yields ErrUnsupportedUpdate.
func ParseUpdate(u tgbotapi.Update) (Event, error) {
	switch {
	case u.CallbackQuery != nil:
		return parseCallback(u.UpdateID, u.CallbackQuery)
	case u.Message != nil:
		return parseMessage(u.UpdateID, u.Message)
	default:
		return nil, ErrUnsupportedUpdate
	}
}

func parseCallback(updateID int, q *tgbotapi.CallbackQuery) (Event, error) {
	if q.ID == "" || q.From == nil || q.From.ID == 0 {
		return nil, ErrUnsupportedUpdate
	}
	m := Meta{UpdateID: updateID, ChatID: q.From.ID, From: fromUser(q.From)}
	if q.Message != nil {
		m.MessageID = q.Message.MessageID
		if q.Message.Chat != nil {
			m.ChatID = q.Message.Chat.ID
		}
	}
	return CallbackEvent{Meta: m, CallbackID: q.ID, Data: q.Data}, nil
}

func parseMessage(updateID int, msg *tgbotapi.Message) (Event, error) {
	if msg.From == nil || msg.From.ID == 0 || msg.Chat == nil || msg.MessageID == 0 {
		return nil, ErrUnsupportedUpdate
	}
	m := Meta{
		UpdateID:  updateID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		From:      fromUser(msg.From),
	}
	switch {
	case msg.Contact != nil:
		phone := strings.TrimSpace(msg.Contact.PhoneNumber)
		if phone == "" {
			return nil, ErrUnsupportedUpdate
		}
		return ContactEvent{Meta: m, Phone: phone, ContactUserID: msg.Contact.UserID}, nil
	case msg.IsCommand():
		return CommandEvent{
			Meta: m,
			Name: strings.ToLower(msg.Command()),
			Args: strings.TrimSpace(msg.CommandArguments()),
		}, nil
	case strings.TrimSpace(msg.Text) != "":
		return TextEvent{Meta: m, Text: msg.Text}, nil
	default:
		return nil, ErrUnsupportedUpdate
	}
}

func fromUser(u *tgbotapi.User) From {
	return From{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}
}

// senderID returns the chat user behind a raw update, or 0.
func senderID(u tgbotapi.Update) int64 {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID
	case u.Message != nil && u.Message.From != nil:
		return u.Message.From.ID
	default:
		return 0
	}
}
