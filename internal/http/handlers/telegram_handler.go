// Telegram ingress handlers.
//
//   - POST /telegram/webhook/      (push delivery of one update)
//   - GET  /telegram/set-webhook/  (register the push URL with Telegram)
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-telegram-otp/internal/http/middleware"
)

// UpdateDispatcher applies one raw update.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, u tgbotapi.Update) error
}

// WebhookRegistrar points Telegram at the push endpoint.
type WebhookRegistrar interface {
	Register(ctx context.Context) (string, error)
}

// TelegramHandlers serves the push ingress.
type TelegramHandlers struct {
	updates  UpdateDispatcher
	registry WebhookRegistrar
}

// NewTelegram constructs TelegramHandlers. registry may be nil when the
// registration endpoint is not mounted.
func NewTelegram(updates UpdateDispatcher, registry WebhookRegistrar) *TelegramHandlers {
	return &TelegramHandlers{updates: updates, registry: registry}
}

// WebhookResponse reports the outcome of a registration.
type WebhookResponse struct {
	OK    bool   `json:"ok"`
	URL   string `json:"url,omitempty" example:"https://bot.example.com/telegram/webhook/"`
	Error string `json:"error,omitempty"`
}

// Webhook godoc
// @ID          telegramWebhook
// @Summary     Receive a Telegram update
// @Description Handles one update synchronously. Replies OK for every handled or ignored update; 400 for malformed JSON or when the update could not be recorded.
// @Tags        Telegram
// @Accept      json
// @Produce     plain
// @Success     200  {string}  string  "OK"
// @Failure     400  {string}  string  "Bad Request"
// @Router      /telegram/webhook/ [post]
func (h *TelegramHandlers) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}
	var u tgbotapi.Update
	if err := json.Unmarshal(body, &u); err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Warn().Err(err).Msg("malformed telegram update")
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}
	if err := h.updates.Dispatch(c.Request.Context(), u); err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Int("update_id", u.UpdateID).Msg("dispatch telegram update")
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}
	c.String(http.StatusOK, "OK")
}

// SetWebhook godoc
// @ID          telegramSetWebhook
// @Summary     Register the webhook URL
// @Description Derives the URL from the first allowed host and registers it with Telegram.
// @Tags        Telegram
// @Produce     json
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.WebhookResponse
// @Router      /telegram/set-webhook/ [get]
func (h *TelegramHandlers) SetWebhook(c *gin.Context) {
	url, err := h.registry.Register(c.Request.Context())
	if err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Warn().Err(err).Msg("set webhook failed")
		c.JSON(http.StatusBadRequest, WebhookResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, WebhookResponse{OK: true, URL: url})
}
