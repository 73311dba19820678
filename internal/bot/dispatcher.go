package bot

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-otp/internal/clock"
	"github.com/tbourn/go-telegram-otp/internal/observability"
	"github.com/tbourn/go-telegram-otp/internal/repo"
)

// Handler consumes parsed events.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// Dispatcher is the single path from a raw update to the engine, shared by
// the webhook endpoint and the poller. Each update ID is applied at most once
// within DedupTTL.
type Dispatcher struct {
	// DB stores processed-update markers; nil disables de-duplication.
	DB       *gorm.DB
	Handler  Handler
	Clock    clock.Clock
	DedupTTL time.Duration
}

// Dispatch parses u and hands it to the handler. Unsupported and duplicate
// updates are dropped silently. Errors come from the marker store or from a
// handler refusing work (cancelled context).
func (d *Dispatcher) Dispatch(ctx context.Context, u tgbotapi.Update) error {
	ev, err := ParseUpdate(u)
	if errors.Is(err, ErrUnsupportedUpdate) {
		observability.BotUpdates.WithLabelValues("unsupported").Inc()
		log.Debug().Int("update_id", u.UpdateID).Msg("ignoring unsupported update")
		return nil
	}
	if err != nil {
		return err
	}

	if d.DB != nil {
		now := time.Now().UTC()
		if d.Clock != nil {
			now = d.Clock.Now()
		}
		ttl := d.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		err := repo.MarkUpdateProcessed(ctx, d.DB, int64(u.UpdateID), ev.Kind(), now, ttl)
		if errors.Is(err, repo.ErrDuplicate) {
			observability.BotUpdates.WithLabelValues("duplicate").Inc()
			log.Debug().Int("update_id", u.UpdateID).Msg("skipping redelivered update")
			return nil
		}
		if err != nil {
			return err
		}
	}

	observability.BotUpdates.WithLabelValues(ev.Kind()).Inc()
	return d.Handler.Handle(ctx, ev)
}
