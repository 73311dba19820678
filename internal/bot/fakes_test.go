package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-telegram-otp/internal/clock"
	"github.com/tbourn/go-telegram-otp/internal/domain"
	"github.com/tbourn/go-telegram-otp/internal/repo"
	"github.com/tbourn/go-telegram-otp/internal/services"
	"github.com/tbourn/go-telegram-otp/internal/trail"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeAPI records every outbound call and hands out increasing message IDs.
type fakeAPI struct {
	mu       sync.Mutex
	nextID   int
	sendErr  error
	reject   func(tgbotapi.Chattable) error // per-message refusal, like a Bad Request
	reqErr   error
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	if f.reject != nil {
		if err := f.reject(c); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	f.nextID++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 1000 + f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	if f.reqErr != nil {
		return nil, f.reqErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) setSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

// rejectBrokenMarkdown refuses Markdown messages with an unescaped "_"
// left open, the way the Bot API answers "can't parse entities".
func rejectBrokenMarkdown(c tgbotapi.Chattable) error {
	m, ok := c.(tgbotapi.MessageConfig)
	if !ok || m.ParseMode != tgbotapi.ModeMarkdown {
		return nil
	}
	open := 0
	for i := 0; i < len(m.Text); i++ {
		switch {
		case m.Text[i] == '\\':
			i++
		case m.Text[i] == '_':
			open ^= 1
		}
	}
	if open != 0 {
		return errors.New("Bad Request: can't parse entities")
	}
	return nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if m, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return m
		}
	}
	t.Fatalf("no message sent")
	return tgbotapi.MessageConfig{}
}

func (f *fakeAPI) deleted() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int
	for _, c := range f.requests {
		if d, ok := c.(tgbotapi.DeleteMessageConfig); ok {
			out = append(out, d.MessageID)
		}
	}
	return out
}

func (f *fakeAPI) callbacks() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb)
		}
	}
	return out
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	f.sent, f.requests = nil, nil
	f.mu.Unlock()
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:bot_%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// harness wires a real engine over in-memory storage and a fake API.
type harness struct {
	db       *gorm.DB
	api      *fakeAPI
	clock    *clock.Fake
	trail    *trail.Trail
	accounts *services.AccountService
	otp      *services.OTPService
	engine   *Engine
	disp     *Dispatcher
	nextUpd  int
}

func newHarness(t *testing.T, admins ...int64) *harness {
	t.Helper()
	h := &harness{
		db:    openTestDB(t),
		api:   &fakeAPI{},
		clock: clock.NewFake(testEpoch),
		trail: trail.New(0),
	}
	h.accounts = &services.AccountService{DB: h.db}
	h.otp = services.NewOTPService(h.db, h.clock)
	tp := &Transport{API: h.api}
	n := &Notifier{Transport: tp, Trail: h.trail, SiteName: "example.test"}
	h.engine = NewEngine(h.accounts, h.otp, tp, h.trail, n, Options{
		Admins:  admins,
		ChatTTL: services.ChatOTPTTL,
		Clock:   h.clock,
	})
	h.disp = &Dispatcher{DB: h.db, Handler: h.engine, Clock: h.clock, DedupTTL: time.Hour}
	return h
}

func (h *harness) linkUser(t *testing.T, username string, telegramID int64) *domain.Account {
	t.Helper()
	phone := fmt.Sprintf("+1555%04d", telegramID)
	a := &domain.Account{Username: username, TelegramID: &telegramID, PhoneNumber: &phone}
	if err := repo.CreateAccount(context.Background(), h.db, a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return a
}

func (h *harness) send(t *testing.T, u tgbotapi.Update) {
	t.Helper()
	if err := h.disp.Dispatch(context.Background(), u); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
}

func (h *harness) updateID() int {
	h.nextUpd++
	return h.nextUpd
}

func tgUser(id int64) *tgbotapi.User {
	return &tgbotapi.User{ID: id, FirstName: "alice", UserName: fmt.Sprintf("u%d", id)}
}

func commandUpdate(updateID int, userID int64, msgID int, text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{UpdateID: updateID, Message: &tgbotapi.Message{
		MessageID: msgID,
		From:      tgUser(userID),
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func textUpdate(updateID int, userID int64, msgID int, text string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: updateID, Message: &tgbotapi.Message{
		MessageID: msgID,
		From:      tgUser(userID),
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}}
}

func contactUpdate(updateID int, userID int64, msgID int, phone string, contactUserID int64) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: updateID, Message: &tgbotapi.Message{
		MessageID: msgID,
		From:      tgUser(userID),
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Contact:   &tgbotapi.Contact{PhoneNumber: phone, UserID: contactUserID},
	}}
}

func callbackUpdate(updateID int, userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: updateID, CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      fmt.Sprintf("cb-%d", updateID),
		From:    tgUser(userID),
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}}
}
