package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ytget/relay-bot/internal/telegram"
)

const (
	defaultPollTimeout = 30 * time.Second
	pollRetryDelay     = 3 * time.Second
)

// Poller fetches updates from the Bot API
type Poller interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, int64, error)
}

// Bot feeds polled messages to a Handler, one goroutine per message
type Bot struct {
	poller      Poller
	handler     Handler
	pollTimeout time.Duration
	retryDelay  time.Duration
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewBot creates a dispatcher
func NewBot(poller Poller, handler Handler, pollTimeout time.Duration, logger *slog.Logger) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Bot{
		poller:      poller,
		handler:     handler,
		pollTimeout: pollTimeout,
		retryDelay:  pollRetryDelay,
		logger:      logger,
	}
}

// Run polls until ctx is cancelled. Handlers get a context that is not
// cancelled with ctx, so in-flight tasks are not interrupted.
func (b *Bot) Run(ctx context.Context) error {
	taskCtx := context.WithoutCancel(ctx)
	var offset int64

	b.logger.Info("bot polling started")
	for {
		if ctx.Err() != nil {
			b.logger.Info("bot polling stopped")
			return nil
		}

		updates, next, err := b.poller.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(b.retryDelay):
			}
			continue
		}
		offset = next

		for _, u := range updates {
			in, ok := telegram.ToInbound(u)
			if !ok {
				continue
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				if err := b.handler.Handle(taskCtx, in); err != nil {
					b.logger.Warn("message handling failed", "user_id", in.UserID, "update_id", in.UpdateID, "error", err)
				}
			}()
		}
	}
}

// Wait blocks until all dispatched handlers return
func (b *Bot) Wait() {
	b.wg.Wait()
}
