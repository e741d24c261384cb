package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ytget/relay-bot/internal/locale"
	"github.com/ytget/relay-bot/internal/metrics"
	"github.com/ytget/relay-bot/internal/model"
	"github.com/ytget/relay-bot/internal/telegram"
)

// Reporter edits a task's status message. Edits for one user never overlap.
type Reporter struct {
	rt      *Runtime
	chat    Chat
	texts   *locale.Localization
	logger  *slog.Logger
	metrics *metrics.Metrics

	// after is time.After; tests replace it to skip real waits
	after func(time.Duration) <-chan time.Time

	mu    sync.Mutex
	locks map[int64]chan struct{}
}

// NewReporter creates a reporter
func NewReporter(rt *Runtime, chat Chat, texts *locale.Localization, logger *slog.Logger, m *metrics.Metrics) *Reporter {
	return &Reporter{
		rt:      rt,
		chat:    chat,
		texts:   texts,
		logger:  logger,
		metrics: m,
		after:   time.After,
		locks:   make(map[int64]chan struct{}),
	}
}

// Report shows text plus the wait hint on the user's status message.
// It does nothing if the user has no task or shutdown has begun.
func (r *Reporter) Report(ctx context.Context, userID int64, text string) {
	r.update(ctx, userID, text, true, false)
}

// Notify is Report without the shutdown gate, for the shutdown notice itself
func (r *Reporter) Notify(ctx context.Context, userID int64, text string) {
	r.update(ctx, userID, text, true, true)
}

// Finish replaces the status message with a final text, without the hint
func (r *Reporter) Finish(ctx context.Context, userID int64, text string) {
	r.update(ctx, userID, text, false, false)
}

func (r *Reporter) update(ctx context.Context, userID int64, text string, withHint, force bool) {
	lock := r.lockFor(userID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		r.logger.Debug("gave up waiting for status message", "user_id", userID, "error", ctx.Err())
		return
	}
	defer func() { <-lock }()

	if !force && r.rt.ShuttingDown() {
		return
	}
	rec, ok := r.rt.Registry.Lookup(userID)
	if !ok || rec.Status.IsZero() {
		return
	}
	if withHint {
		text = text + "\n\n" + r.texts.GetText(rec.Lang, locale.KeyWaitHint)
	}
	if err := r.edit(ctx, rec.Status, text, nil, !force); err != nil {
		r.logger.Warn("failed to update status message", "user_id", userID, "task_id", rec.ID, "error", err)
	}
}

// Edit changes a message, waiting out flood limits and retrying until it
// succeeds, fails otherwise, or ctx ends. An unchanged text is not an error.
func (r *Reporter) Edit(ctx context.Context, ref model.MessageRef, text string, buttons []model.Button) error {
	return r.edit(ctx, ref, text, buttons, false)
}

// edit is Edit that, when untilShutdown is set, gives up silently once
// shutdown begins, including in the middle of a flood wait
func (r *Reporter) edit(ctx context.Context, ref model.MessageRef, text string, buttons []model.Button, untilShutdown bool) error {
	var stopping <-chan struct{}
	if untilShutdown {
		stopping = r.rt.Stopping()
	}
	for {
		err := r.chat.EditMessage(ctx, ref, text, buttons)
		if err == nil {
			r.metrics.ObserveEdit(metrics.EditResultOK)
			return nil
		}
		if telegram.IsNotModified(err) {
			r.metrics.ObserveEdit(metrics.EditResultNotModified)
			return nil
		}
		wait, throttled := telegram.RetryAfter(err)
		if !throttled {
			r.metrics.ObserveEdit(metrics.EditResultFailed)
			return err
		}

		r.metrics.ObserveEdit(metrics.EditResultRateLimited)
		r.metrics.ObserveThrottleWait()
		r.logger.Debug("status edit throttled", "chat_id", ref.ChatID, "retry_after", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopping:
			return nil
		case <-r.after(wait):
		}
		if untilShutdown && r.rt.ShuttingDown() {
			return nil
		}
	}
}

func (r *Reporter) lockFor(userID int64) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[userID]
	if !ok {
		lock = make(chan struct{}, 1)
		r.locks[userID] = lock
	}
	return lock
}
