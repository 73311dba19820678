package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-telegram-otp/internal/clock"
	"github.com/tbourn/go-telegram-otp/internal/domain"
	"github.com/tbourn/go-telegram-otp/internal/repo"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:svc_%s_%s?mode=memory&cache=shared", name, uuid.NewString())
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

// fixedCodes hands out the given codes in order, then repeats the last one.
func fixedCodes(codes ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c
	}
}

func newOTP(t *testing.T, db *gorm.DB, clk *clock.Fake, codes ...string) *OTPService {
	t.Helper()
	s := NewOTPService(db, clk)
	if len(codes) > 0 {
		s.NewCode = fixedCodes(codes...)
	}
	return s
}

func seedLinked(t *testing.T, db *gorm.DB, username string, telegramID int64) *domain.Account {
	t.Helper()
	a := &domain.Account{Username: username, TelegramID: &telegramID}
	if err := repo.CreateAccount(context.Background(), db, a); err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return a
}

func countSessions(t *testing.T, db *gorm.DB, accountID string) int64 {
	t.Helper()
	n, err := repo.CountOTPSessionsForAccount(context.Background(), db, accountID)
	if err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	return n
}

type fakeDeliverer struct {
	mu    sync.Mutex
	err   error
	calls []string // delivered codes
}

func (f *fakeDeliverer) DeliverCode(_ context.Context, _ *domain.Account, s *domain.OTPSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, s.Code)
	return nil
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errTransport = errors.New("transport down")
