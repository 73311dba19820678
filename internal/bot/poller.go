package bot

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// UpdateSource fetches pending updates (long polling).
type UpdateSource interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// UpdateDispatcher consumes raw updates.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, u tgbotapi.Update) error
}

// Poller runs the pull ingress: one goroutine long-polls the transport and
// fans updates out to a fixed pool of workers. Updates from the same user
// always land on the same worker, so they are handled in arrival order.
type Poller struct {
	Source     UpdateSource
	Dispatcher UpdateDispatcher

	Workers int           // pool size, default 4
	Timeout int           // long-poll timeout in seconds, default 30
	Limit   int           // max updates per fetch, default 100
	Backoff time.Duration // pause after a failed fetch, default 3s
	Buffer  int           // per-worker queue length, default 64
}

func (p *Poller) defaults() {
	if p.Workers <= 0 {
		p.Workers = 4
	}
	if p.Timeout <= 0 {
		p.Timeout = 30
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Backoff <= 0 {
		p.Backoff = 3 * time.Second
	}
	if p.Buffer <= 0 {
		p.Buffer = 64
	}
}

// Run polls until ctx is cancelled. Queued updates are still handled after
// cancellation; Run returns once every worker has drained its queue.
func (p *Poller) Run(ctx context.Context) error {
	p.defaults()

	queues := make([]chan tgbotapi.Update, p.Workers)
	for i := range queues {
		queues[i] = make(chan tgbotapi.Update, p.Buffer)
	}

	g, gctx := errgroup.WithContext(ctx)
	// Workers finish what was fetched even when shutdown starts mid-batch.
	workCtx := context.WithoutCancel(ctx)
	for i := range queues {
		q := queues[i]
		g.Go(func() error {
			for u := range q {
				if err := p.Dispatcher.Dispatch(workCtx, u); err != nil {
					log.Error().Err(err).Int("update_id", u.UpdateID).Msg("dispatch update")
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		return p.fetchLoop(gctx, queues)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Poller) fetchLoop(ctx context.Context, queues []chan tgbotapi.Update) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.Timeout
	cfg.Limit = p.Limit

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := p.Source.GetUpdates(cfg)
		if err != nil {
			log.Warn().Err(err).Dur("backoff", p.Backoff).Msg("telegram getUpdates failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= cfg.Offset {
				cfg.Offset = u.UpdateID + 1
			}
			q := queues[shard(senderID(u), len(queues))]
			select {
			case q <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func shard(userID int64, n int) int {
	if userID < 0 {
		userID = -userID
	}
	return int(userID % int64(n))
}
