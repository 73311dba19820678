package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// WebhookPath is where the push ingress is mounted.
const WebhookPath = "/telegram/webhook/"

// ErrNoAllowedHost is returned when no host is configured to build the
// webhook URL from.
var ErrNoAllowedHost = errors.New("no allowed host configured")

// Requester performs raw API calls.
type Requester interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// WebhookRegistrar registers and removes the push endpoint with Telegram.
type WebhookRegistrar struct {
	API   Requester
	Hosts []string
}

// URL derives the public webhook URL from the first allowed host. A leading
// dot (subdomain wildcard) is dropped.
func (r *WebhookRegistrar) URL() (string, error) {
	for _, h := range r.Hosts {
		h = strings.TrimPrefix(strings.TrimSpace(h), ".")
		if h == "" || h == "*" {
			continue
		}
		return "https://" + h + WebhookPath, nil
	}
	return "", ErrNoAllowedHost
}

// Register points Telegram at the webhook URL and returns it.
func (r *WebhookRegistrar) Register(ctx context.Context) (string, error) {
	url, err := r.URL()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cfg, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return "", fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := r.API.Request(cfg); err != nil {
		return "", fmt.Errorf("set webhook: %w", err)
	}
	return url, nil
}

// Unregister removes any webhook so that long polling can receive updates.
func (r *WebhookRegistrar) Unregister(ctx context.Context, dropPending bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.API.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
