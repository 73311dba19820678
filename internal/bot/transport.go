package bot

import (
	"context"
	"errors"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-telegram-otp/internal/observability"
)

// API is the subset of *tgbotapi.BotAPI the bot needs for outbound calls.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Outcome is the result of a best-effort transport call. Callers decide at the
// call site whether a non-Delivered outcome matters.
type Outcome int

const (
	// Delivered means the transport accepted the call.
	Delivered Outcome = iota
	// Gone means the target no longer exists (message already deleted,
	// callback query too old). Expected and harmless.
	Gone
	// Failed covers everything else: network errors, timeouts, rate limits.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Gone:
		return "gone"
	default:
		return "failed"
	}
}

// Transport wraps the Telegram API with explicit outcomes. Per-call timeouts
// come from the HTTP client the API was built with.
type Transport struct {
	API API
}

// Send delivers a message. It is on the critical path when the message
// carries a login code, so failures are returned.
func (t *Transport) Send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.Message{}, err
	}
	msg, err := t.API.Send(c)
	if err != nil {
		observability.BotTransportFailures.WithLabelValues("send").Inc()
		return tgbotapi.Message{}, err
	}
	return msg, nil
}

// Delete removes a message from a chat. Errors are logged at debug level and
// folded into the Outcome.
func (t *Transport) Delete(ctx context.Context, chatID int64, messageID int) Outcome {
	return t.bestEffort(ctx, "delete", tgbotapi.NewDeleteMessage(chatID, messageID))
}

// AnswerCallback acknowledges an inline button press, optionally with text.
func (t *Transport) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) Outcome {
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	return t.bestEffort(ctx, "answer_callback", cfg)
}

func (t *Transport) bestEffort(ctx context.Context, op string, c tgbotapi.Chattable) Outcome {
	if ctx.Err() != nil {
		return Failed
	}
	_, err := t.API.Request(c)
	if err == nil {
		return Delivered
	}
	out := classify(err)
	if out == Failed {
		observability.BotTransportFailures.WithLabelValues(op).Inc()
	}
	log.Debug().Err(err).Str("op", op).Str("outcome", out.String()).Msg("telegram best-effort call")
	return out
}

// classify maps API errors onto outcomes. Telegram reports vanished targets
// as 400 with a descriptive message.
func classify(err error) Outcome {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return Failed
	}
	if apiErr.Code != http.StatusBadRequest {
		return Failed
	}
	msg := strings.ToLower(apiErr.Message)
	for _, s := range []string{"message to delete not found", "message can't be deleted", "query is too old", "message not found"} {
		if strings.Contains(msg, s) {
			return Gone
		}
	}
	return Failed
}
