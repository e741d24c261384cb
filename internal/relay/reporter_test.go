package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/relay-bot/internal/locale"
	"github.com/ytget/relay-bot/internal/model"
	"github.com/ytget/relay-bot/internal/telegram"
)

func TestReport_NoRecordIsNoop(t *testing.T) {
	chat := newFakeChat()
	r, _ := newTestReporter(NewRuntime(), chat)

	r.Report(context.Background(), 1, "hello")
	assert.Empty(t, chat.Edits())
}

func TestReport_AppendsHint(t *testing.T) {
	rt := NewRuntime()
	rec := testRecord(rt, 1)
	chat := newFakeChat()
	r, _ := newTestReporter(rt, chat)

	r.Report(context.Background(), 1, "⬆️ Uploading...")

	edits := chat.Edits()
	require.Len(t, edits, 1)
	assert.Equal(t, rec.Status, edits[0].Ref)
	assert.Equal(t, "⬆️ Uploading...\n\n"+testTexts.GetText("en", locale.KeyWaitHint), edits[0].Text)
}

func TestReport_RetriesAfterRateLimit(t *testing.T) {
	rt := NewRuntime()
	testRecord(rt, 1)
	chat := newFakeChat()
	chat.editErrs = []error{rateLimited(3), rateLimited(1)}
	r, after := newTestReporter(rt, chat)

	r.Report(context.Background(), 1, "progress")

	assert.Len(t, chat.Edits(), 3)
	assert.Equal(t, []time.Duration{3 * time.Second, time.Second}, after.Waits())
}

func TestEdit_IgnoresNotModified(t *testing.T) {
	chat := newFakeChat()
	chat.editErrs = []error{&telegram.APIError{Code: 400, Description: "Bad Request: message is not modified"}}
	r, after := newTestReporter(NewRuntime(), chat)

	err := r.Edit(context.Background(), model.MessageRef{ChatID: 1, MessageID: 2}, "same", nil)
	assert.NoError(t, err)
	assert.Len(t, chat.Edits(), 1)
	assert.Empty(t, after.Waits())
}

func TestEdit_ReturnsOtherErrors(t *testing.T) {
	chat := newFakeChat()
	boom := errors.New("message to edit not found")
	chat.editErrs = []error{boom}
	r, _ := newTestReporter(NewRuntime(), chat)

	err := r.Edit(context.Background(), model.MessageRef{ChatID: 1, MessageID: 2}, "x", nil)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, chat.Edits(), 1)
}

func TestEdit_WaitIsCancellable(t *testing.T) {
	chat := newFakeChat()
	chat.editErrs = []error{rateLimited(30)}
	r, _ := newTestReporter(NewRuntime(), chat)
	r.after = func(time.Duration) <-chan time.Time { return make(chan time.Time) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Edit(ctx, model.MessageRef{ChatID: 1, MessageID: 2}, "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, chat.Edits(), 1)
}

func TestReport_SwallowsErrors(t *testing.T) {
	rt := NewRuntime()
	testRecord(rt, 1)
	chat := newFakeChat()
	chat.editErrs = []error{errors.New("boom")}
	r, _ := newTestReporter(rt, chat)

	assert.NotPanics(t, func() { r.Report(context.Background(), 1, "x") })
	r.Report(context.Background(), 1, "y")
	assert.Len(t, chat.Edits(), 2)
}

func TestReport_SuppressedAfterShutdownButNotifyIsNot(t *testing.T) {
	rt := NewRuntime()
	testRecord(rt, 1)
	rt.beginShutdown()
	chat := newFakeChat()
	r, _ := newTestReporter(rt, chat)

	r.Report(context.Background(), 1, "progress")
	r.Finish(context.Background(), 1, "failed")
	assert.Empty(t, chat.Edits())

	r.Notify(context.Background(), 1, "bye")
	require.Len(t, chat.Edits(), 1)
	assert.Contains(t, chat.Edits()[0].Text, "bye")
}

func TestFinish_OmitsHint(t *testing.T) {
	rt := NewRuntime()
	testRecord(rt, 1)
	chat := newFakeChat()
	r, _ := newTestReporter(rt, chat)

	r.Finish(context.Background(), 1, "❌ Failed to download media.")
	assert.Equal(t, []string{"❌ Failed to download media."}, chat.EditTexts())
}

func TestReport_StopsRetryingOnShutdown(t *testing.T) {
	rt := NewRuntime()
	testRecord(rt, 1)
	chat := newFakeChat()
	chat.editErr = rateLimited(1)
	r, _ := newTestReporter(rt, chat)
	r.after = func(time.Duration) <-chan time.Time {
		rt.beginShutdown()
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	r.Report(context.WithoutCancel(context.Background()), 1, "progress")
	assert.Len(t, chat.Edits(), 1)
}

func TestReport_FloodWaitEndsWhenShutdownBegins(t *testing.T) {
	rt := NewRuntime()
	testRecord(rt, 1)
	chat := newFakeChat()
	chat.editErr = rateLimited(30)
	r, _ := newTestReporter(rt, chat)
	r.after = func(time.Duration) <-chan time.Time { return make(chan time.Time) }

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Report(context.Background(), 1, "progress")
	}()
	require.Eventually(t, func() bool { return len(chat.Edits()) == 1 }, time.Second, time.Millisecond)

	rt.beginShutdown()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Report still waiting after shutdown began")
	}
	assert.Len(t, chat.Edits(), 1)
}

func TestNotify_GivesUpWaitingForBusyStatusMessage(t *testing.T) {
	rt := NewRuntime()
	testRecord(rt, 1)
	chat := newFakeChat()
	r, _ := newTestReporter(rt, chat)

	lock := r.lockFor(1)
	lock <- struct{}{}
	defer func() { <-lock }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Notify(ctx, 1, "bye")
	assert.Empty(t, chat.Edits())
}

func TestReport_SkipsRecordWithoutStatusMessage(t *testing.T) {
	rt := NewRuntime()
	require.NoError(t, rt.Registry.Register(model.NewTaskRecord(1, model.MessageRef{}, "https://youtu.be/abc", "en", time.Now())))
	chat := newFakeChat()
	r, _ := newTestReporter(rt, chat)

	r.Report(context.Background(), 1, "progress")
	assert.Empty(t, chat.Edits())
}
