// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, the chat transport, code lifetimes, web sessions, and
// observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for images without /usr/share/zoneinfo

	"github.com/tbourn/go-telegram-otp/internal/utils"
)

// Ingress modes for the chat channel.
const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

// minSessionSecret is the shortest accepted SESSION_SECRET, in bytes.
const minSessionSecret = 16

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TelegramConfig configures the bot transport and its ingress.
type TelegramConfig struct {
	Token       string        // TELEGRAM_BOT_TOKEN
	Disabled    bool          // TELEGRAM_DISABLED: run the web API without a bot
	Mode        string        // webhook|polling
	SendTimeout time.Duration // per-call HTTP timeout for outbound calls
	PollTimeout time.Duration // long-poll wait handed to getUpdates
	Workers     int           // poller worker pool size
	DedupTTL    time.Duration // how long a processed update_id is remembered
	Admins      []int64       // ADMIN_TELEGRAM_IDS
}

// OTPConfig holds code lifetimes and the storage janitor schedule.
type OTPConfig struct {
	ChatTTL         time.Duration // codes issued by /login
	DefaultTTL      time.Duration // codes requested on the web
	Retention       time.Duration // 0 disables the janitor
	JanitorInterval time.Duration
}

// SessionConfig configures the signed web session cookie.
type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	CookieName   string
	SecureCookie bool
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	DebugEndpoints bool   // expose the recent-codes listing

	// App
	DBPath       string         // SQLite path
	SiteName     string         // shown in code messages
	AllowedHosts []string       // first usable entry derives the webhook URL
	TimeZone     string         // IANA name
	Location     *time.Location // loaded from TimeZone

	// Rate limiting (web auth endpoints)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	Telegram TelegramConfig
	OTP      OTPConfig
	Session  SessionConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	admins, err := utils.ParseInt64List(getenv("ADMIN_TELEGRAM_IDS", ""))
	if err != nil {
		return Config{}, fmt.Errorf("ADMIN_TELEGRAM_IDS: %w", err)
	}

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		DebugEndpoints: getbool("DEBUG_ENDPOINTS", false),

		// App
		DBPath:       getenv("DB_PATH", "app.db"),
		SiteName:     strings.TrimSpace(getenv("SITE_NAME", "")),
		AllowedHosts: utils.SplitCSV(getenv("ALLOWED_HOSTS", "")),
		TimeZone:     strings.TrimSpace(getenv("TIME_ZONE", "UTC")),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: utils.SplitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		Telegram: TelegramConfig{
			Token:       strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
			Disabled:    getbool("TELEGRAM_DISABLED", false),
			Mode:        strings.ToLower(strings.TrimSpace(getenv("TELEGRAM_MODE", ModeWebhook))),
			SendTimeout: getdur("TELEGRAM_SEND_TIMEOUT", 10*time.Second),
			PollTimeout: getdur("TELEGRAM_POLL_TIMEOUT", 30*time.Second),
			Workers:     getint("TELEGRAM_WORKERS", 4),
			DedupTTL:    getdur("UPDATE_DEDUP_TTL", 24*time.Hour),
			Admins:      admins,
		},

		OTP: OTPConfig{
			ChatTTL:         getdur("OTP_CHAT_TTL", 60*time.Second),
			DefaultTTL:      getdur("OTP_DEFAULT_TTL", 300*time.Second),
			Retention:       getdur("OTP_RETENTION", 0),
			JanitorInterval: getdur("OTP_JANITOR_INTERVAL", 10*time.Minute),
		},

		Session: SessionConfig{
			Secret:       getenv("SESSION_SECRET", ""),
			TTL:          getdur("SESSION_TTL", 14*24*time.Hour),
			CookieName:   strings.TrimSpace(getenv("SESSION_COOKIE", "otp_session")),
			SecureCookie: getbool("SESSION_SECURE_COOKIE", false),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-telegram-otp"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "UTC"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return cfg, fmt.Errorf("TIME_ZONE: %w", err)
	}
	cfg.Location = loc
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if err := cfg.Telegram.validate(); err != nil {
		return cfg, err
	}
	if cfg.OTP.ChatTTL <= 0 || cfg.OTP.DefaultTTL <= 0 {
		return cfg, errors.New("OTP_CHAT_TTL and OTP_DEFAULT_TTL must be > 0")
	}
	if cfg.OTP.Retention < 0 {
		return cfg, errors.New("OTP_RETENTION must be >= 0")
	}
	if cfg.OTP.Retention > 0 && cfg.OTP.JanitorInterval <= 0 {
		return cfg, errors.New("OTP_JANITOR_INTERVAL must be > 0 when OTP_RETENTION is set")
	}
	if len(cfg.Session.Secret) < minSessionSecret {
		return cfg, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecret)
	}
	if cfg.Session.TTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.Session.CookieName == "" {
		return cfg, errors.New("SESSION_COOKIE must not be empty")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

func (t TelegramConfig) validate() error {
	if t.Disabled {
		return nil
	}
	if t.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required unless TELEGRAM_DISABLED=true")
	}
	switch t.Mode {
	case ModeWebhook, ModePolling:
	default:
		return errors.New("TELEGRAM_MODE must be one of: webhook, polling")
	}
	if t.SendTimeout <= 0 || t.PollTimeout <= 0 {
		return errors.New("TELEGRAM_SEND_TIMEOUT and TELEGRAM_POLL_TIMEOUT must be > 0")
	}
	if t.Workers < 1 {
		return errors.New("TELEGRAM_WORKERS must be >= 1")
	}
	if t.DedupTTL <= 0 {
		return errors.New("UPDATE_DEDUP_TTL must be > 0")
	}
	return nil
}

// PollSeconds is the long-poll wait in whole seconds, at least 1.
func (t TelegramConfig) PollSeconds() int {
	s := int(t.PollTimeout / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return utils.AtoiDefault(strings.TrimSpace(v), def)
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

// getdur accepts Go durations ("90s") and bare integers meaning seconds.
func getdur(k string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(k)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
