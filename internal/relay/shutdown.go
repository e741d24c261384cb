package relay

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ytget/relay-bot/internal/locale"
	"github.com/ytget/relay-bot/internal/metrics"
)

const defaultShutdownParallelism = 8

// Coordinator stops admissions and tells every user with a running task
// that it is cancelled
type Coordinator struct {
	rt          *Runtime
	reporter    *Reporter
	texts       *locale.Localization
	parallelism int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewCoordinator creates a shutdown coordinator. parallelism caps concurrent notices.
func NewCoordinator(rt *Runtime, reporter *Reporter, texts *locale.Localization, parallelism int, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	if parallelism < 1 {
		parallelism = defaultShutdownParallelism
	}
	return &Coordinator{
		rt:          rt,
		reporter:    reporter,
		texts:       texts,
		parallelism: parallelism,
		logger:      logger,
		metrics:     m,
	}
}

// Shutdown sets the shutdown flag, broadcasts the notice and clears the
// registry. Running extractions and uploads are left alone. Calls after the
// first are no-ops.
func (c *Coordinator) Shutdown(ctx context.Context) {
	if !c.rt.beginShutdown() {
		return
	}
	c.logger.Info("gracefully shutting down")

	users := c.rt.Registry.UserIDs()
	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for _, userID := range users {
		g.Go(func() error {
			rec, ok := c.rt.Registry.Lookup(userID)
			if !ok {
				return nil
			}
			c.reporter.Notify(ctx, userID, c.texts.GetText(rec.Lang, locale.KeyShutdown))
			return nil
		})
	}
	_ = g.Wait()

	c.rt.Registry.Clear()
	c.metrics.SetActiveTasks(0)
	c.logger.Info("shutdown notices sent", "users", len(users))
}
