// Package httpapi wires the HTTP transport (Gin) to the login services, the
// Telegram push ingress, middleware, and route handlers. It centralizes
// tracing, correlation IDs, redacted logging, panic recovery, metrics,
// compression, CORS, security headers, and rate limiting.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII and codes scrubbed
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip (not on /metrics, Prometheus negotiates its own encoding)
//  8. CORS and security headers
//
// The per-IP rate limiter only guards the two auth endpoints; the webhook
// must accept every redelivery Telegram makes.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-telegram-otp/docs" // OpenAPI document registration
	"github.com/tbourn/go-telegram-otp/internal/auth"
	"github.com/tbourn/go-telegram-otp/internal/clock"
	"github.com/tbourn/go-telegram-otp/internal/config"
	"github.com/tbourn/go-telegram-otp/internal/http/handlers"
	"github.com/tbourn/go-telegram-otp/internal/http/middleware"
)

// maxBodyBytes caps request bodies; Telegram updates are far smaller.
const maxBodyBytes = 1 << 20

// Deps are the collaborators the routes need. Updates and Webhooks are nil
// when the bot is disabled or runs in polling mode; the Telegram routes are
// then not mounted.
type Deps struct {
	DB       *gorm.DB
	Clock    clock.Clock
	Auth     handlers.AuthService
	Accounts handlers.AccountReader
	Sessions *auth.Sessions
	Updates  handlers.UpdateDispatcher
	Webhooks handlers.WebhookRegistrar
}

// RegisterRoutes attaches all middleware and HTTP endpoints to r.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(serviceName(cfg)))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"Cookie", "Set-Cookie", "X-Telegram-Bot-Api-Secret-Token"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics("/metrics", "/health"))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.NewAuth(d.Auth, d.Accounts, d.Sessions)
	limiter := middleware.NewIPRateLimiter(cfg.RateRPS, cfg.RateBurst)

	users := r.Group("/users")
	{
		authGroup := users.Group("/auth", limiter.Handler())
		authGroup.POST("/request_code/", h.RequestCode)
		authGroup.POST("/verify_code/", h.VerifyCode)

		users.GET("/me/", d.Sessions.RequireSession(), h.Me)
		users.POST("/logout/", h.Logout)

		if cfg.DebugEndpoints {
			users.GET("/debug-codes/", handlers.NewDebug(d.DB, d.Clock).DebugCodes)
		}
	}

	if d.Updates != nil {
		tg := handlers.NewTelegram(d.Updates, d.Webhooks)
		r.POST("/telegram/webhook/", tg.Webhook)
		if d.Webhooks != nil {
			r.GET("/telegram/set-webhook/", tg.SetWebhook)
		}
	}
}

// corsMiddleware allows credentialed requests from an explicit allowlist.
// Without one every origin may call the API, but cookies are not shared.
func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return cors.New(c)
}

func serviceName(cfg config.Config) string {
	if cfg.OTEL.ServiceName != "" {
		return cfg.OTEL.ServiceName
	}
	return "go-telegram-otp"
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Requests exceeding the cap cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
