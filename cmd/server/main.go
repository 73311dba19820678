// Command server runs the Telegram login bot and its web API.
//
// @title       Telegram OTP login API
// @version     1.0
// @description Passwordless web login with one-time codes delivered over a Telegram bot.
// @BasePath    /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-otp/internal/auth"
	"github.com/tbourn/go-telegram-otp/internal/bot"
	"github.com/tbourn/go-telegram-otp/internal/clock"
	"github.com/tbourn/go-telegram-otp/internal/config"
	"github.com/tbourn/go-telegram-otp/internal/domain"
	httpapi "github.com/tbourn/go-telegram-otp/internal/http"
	"github.com/tbourn/go-telegram-otp/internal/observability"
	"github.com/tbourn/go-telegram-otp/internal/repo"
	"github.com/tbourn/go-telegram-otp/internal/services"
	"github.com/tbourn/go-telegram-otp/internal/sysutil"
	"github.com/tbourn/go-telegram-otp/internal/trail"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// pollSlack is added to the long-poll wait to get the HTTP client timeout
// of the polling connection.
const pollSlack = 10 * time.Second

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.ConfigureLogging("info", false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.ConfigureLogging(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("bye")
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	clk := clock.Real()
	accounts := &services.AccountService{DB: db}
	otp := services.NewOTPService(db, clk)
	otp.DefaultTTL = cfg.OTP.DefaultTTL

	authSvc := &services.AuthService{Accounts: accounts, OTP: otp, TTL: cfg.OTP.ChatTTL}
	deps := httpapi.Deps{
		DB:       db,
		Clock:    clk,
		Auth:     authSvc,
		Accounts: accounts,
		Sessions: auth.NewSessions(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.CookieName, cfg.Session.SecureCookie, clk),
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Telegram.Disabled {
		authSvc.Deliverer = undeliverable{}
		log.Warn().Msg("telegram disabled: codes cannot be delivered")
	} else {
		b, err := startBot(gctx, g, cfg, db, clk, accounts, otp)
		if err != nil {
			return err
		}
		authSvc.Deliverer = b.notifier
		if cfg.Telegram.Mode == config.ModeWebhook {
			deps.Updates = b.dispatcher
			deps.Webhooks = b.webhooks
		}
	}

	if cfg.OTP.Retention > 0 {
		g.Go(func() error {
			otp.RunJanitor(gctx, cfg.OTP.JanitorInterval, cfg.OTP.Retention)
			return nil
		})
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	if sqlDB, derr := db.DB(); derr == nil {
		_ = sqlDB.Close()
	}
	return err
}

type botParts struct {
	notifier   *bot.Notifier
	dispatcher *bot.Dispatcher
	webhooks   *bot.WebhookRegistrar
}

// startBot builds the chat side. Outbound calls and long polling use separate
// clients so a pending getUpdates never holds up a code message.
func startBot(ctx context.Context, g *errgroup.Group, cfg config.Config, db *gorm.DB, clk clock.Clock,
	accounts *services.AccountService, otp *services.OTPService) (*botParts, error) {
	tc := cfg.Telegram

	api, err := tgbotapi.NewBotAPIWithClient(tc.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: tc.SendTimeout})
	if err != nil {
		return nil, err
	}
	log.Info().Str("bot", api.Self.UserName).Str("mode", tc.Mode).Msg("telegram connected")

	tr := trail.New(0)
	transport := &bot.Transport{API: api}
	notifier := &bot.Notifier{Transport: transport, Trail: tr, SiteName: cfg.SiteName}
	engine := bot.NewEngine(accounts, otp, transport, tr, notifier, bot.Options{
		Admins:   tc.Admins,
		ChatTTL:  cfg.OTP.ChatTTL,
		Location: cfg.Location,
		Clock:    clk,
	})
	parts := &botParts{
		notifier:   notifier,
		dispatcher: &bot.Dispatcher{DB: db, Handler: engine, Clock: clk, DedupTTL: tc.DedupTTL},
		webhooks:   &bot.WebhookRegistrar{API: api, Hosts: cfg.AllowedHosts},
	}

	if tc.Mode != config.ModePolling {
		if url, err := parts.webhooks.URL(); err == nil {
			log.Info().Str("url", url).Msg("webhook ingress; register via GET /telegram/set-webhook/")
		} else {
			log.Warn().Err(err).Msg("webhook URL cannot be derived")
		}
		return parts, nil
	}

	// getUpdates fails while a webhook is set.
	if err := parts.webhooks.Unregister(ctx, false); err != nil {
		return nil, err
	}
	pollAPI, err := tgbotapi.NewBotAPIWithClient(tc.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: tc.PollTimeout + pollSlack})
	if err != nil {
		return nil, err
	}
	poller := &bot.Poller{
		Source:     pollAPI,
		Dispatcher: parts.dispatcher,
		Workers:    tc.Workers,
		Timeout:    tc.PollSeconds(),
	}
	g.Go(func() error { return poller.Run(ctx) })
	return parts, nil
}

// errBotDisabled fails web code requests when no bot is configured; the
// handler answers send_failed.
var errBotDisabled = errors.New("telegram disabled")

type undeliverable struct{}

func (undeliverable) DeliverCode(context.Context, *domain.Account, *domain.OTPSession) error {
	return errBotDisabled
}
