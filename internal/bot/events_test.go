package bot

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestParseUpdate_Variants(t *testing.T) {
	ev, err := ParseUpdate(commandUpdate(1, 7, 10, "/Login@my_bot now"))
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	cmd, ok := ev.(CommandEvent)
	if !ok || cmd.Name != "login" || cmd.Args != "now" || cmd.From.ID != 7 || cmd.MessageID != 10 {
		t.Fatalf("command parsed as %#v", ev)
	}

	ev, err = ParseUpdate(textUpdate(2, 7, 11, "hello"))
	if err != nil || ev.Kind() != KindText || ev.(TextEvent).Text != "hello" {
		t.Fatalf("text parsed as %#v err=%v", ev, err)
	}

	ev, err = ParseUpdate(contactUpdate(3, 7, 12, " +15550001 ", 7))
	if err != nil {
		t.Fatalf("contact: %v", err)
	}
	c := ev.(ContactEvent)
	if c.Phone != "+15550001" || c.ContactUserID != 7 {
		t.Fatalf("contact parsed as %#v", c)
	}

	ev, err = ParseUpdate(callbackUpdate(4, 7, CallbackCodeInfo))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	cb := ev.(CallbackEvent)
	if cb.Data != CallbackCodeInfo || cb.CallbackID != "cb-4" || cb.ChatID != 7 || cb.Header().UpdateID != 4 {
		t.Fatalf("callback parsed as %#v", cb)
	}
}

func TestParseUpdate_Unsupported(t *testing.T) {
	cases := map[string]tgbotapi.Update{
		"empty":            {UpdateID: 1},
		"edited message":   {UpdateID: 2, EditedMessage: &tgbotapi.Message{MessageID: 1}},
		"no sender":        {UpdateID: 3, Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: 1}, Text: "x"}},
		"no chat":          {UpdateID: 4, Message: &tgbotapi.Message{MessageID: 1, From: tgUser(1), Text: "x"}},
		"blank text":       textUpdate(5, 1, 1, "   "),
		"contact no phone": contactUpdate(6, 1, 1, "", 1),
		"callback no id":   {UpdateID: 7, CallbackQuery: &tgbotapi.CallbackQuery{From: tgUser(1)}},
	}
	for name, u := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseUpdate(u); !errors.Is(err, ErrUnsupportedUpdate) {
				t.Fatalf("expected ErrUnsupportedUpdate, got %v", err)
			}
		})
	}
}
