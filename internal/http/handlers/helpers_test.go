package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-telegram-otp/internal/auth"
	"github.com/tbourn/go-telegram-otp/internal/clock"
	"github.com/tbourn/go-telegram-otp/internal/domain"
	"github.com/tbourn/go-telegram-otp/internal/repo"
	"github.com/tbourn/go-telegram-otp/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
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

type stubDeliverer struct {
	mu    sync.Mutex
	err   error
	codes []string
}

func (d *stubDeliverer) DeliverCode(_ context.Context, _ *domain.Account, s *domain.OTPSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.codes = append(d.codes, s.Code)
	return nil
}

// authFixture wires the real login flow over an in-memory database.
type authFixture struct {
	db       *gorm.DB
	clock    *clock.Fake
	deliver  *stubDeliverer
	otp      *services.OTPService
	sessions *auth.Sessions
	router   *gin.Engine
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		db:      openTestDB(t),
		clock:   clock.NewFake(testEpoch),
		deliver: &stubDeliverer{},
	}
	accounts := &services.AccountService{DB: f.db}
	f.otp = services.NewOTPService(f.db, f.clock)
	svc := &services.AuthService{Accounts: accounts, OTP: f.otp, Deliverer: f.deliver, TTL: services.ChatOTPTTL}
	f.sessions = auth.NewSessions("handler-test-secret-0123", time.Hour, "", false, f.clock)

	h := NewAuth(svc, accounts, f.sessions)
	f.router = gin.New()
	g := f.router.Group("/users")
	g.POST("/auth/request_code/", h.RequestCode)
	g.POST("/auth/verify_code/", h.VerifyCode)
	g.GET("/me/", f.sessions.RequireSession(), h.Me)
	g.POST("/logout/", h.Logout)
	return f
}

func (f *authFixture) seed(t *testing.T, username string, telegramID int64) *domain.Account {
	t.Helper()
	a := &domain.Account{Username: username, Email: username + "@example.com"}
	if telegramID != 0 {
		a.TelegramID = &telegramID
		phone := fmt.Sprintf("+1555%04d", telegramID)
		a.PhoneNumber = &phone
	}
	if err := repo.CreateAccount(context.Background(), f.db, a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return a
}

func postJSON(r http.Handler, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postForm(r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeOTP(t *testing.T, w *httptest.ResponseRecorder) OTPResponse {
	t.Helper()
	var out OTPResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}
