package relay

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/ytget/relay-bot/internal/compress"
	"github.com/ytget/relay-bot/internal/download"
	"github.com/ytget/relay-bot/internal/locale"
	"github.com/ytget/relay-bot/internal/logging"
	"github.com/ytget/relay-bot/internal/model"
	"github.com/ytget/relay-bot/internal/telegram"
)

type sentMessage struct {
	Ref     model.MessageRef
	Text    string
	ReplyTo int64
	Buttons []model.Button
}

type editCall struct {
	Ref     model.MessageRef
	Text    string
	Buttons []model.Button
}

type fakeChat struct {
	mu       sync.Mutex
	nextID   int64
	sent     []sentMessage
	edits    []editCall
	deleted  []model.MessageRef
	editErrs []error // consumed one per EditMessage call
	// editErr is returned once editErrs is exhausted
	editErr error

	member          model.MemberStatus
	memberErr       error
	membershipCalls int
	sendErr         error
}

func newFakeChat() *fakeChat {
	return &fakeChat{nextID: 100, member: model.MemberMember}
}

func (c *fakeChat) SendMessage(_ context.Context, chatID int64, text string, replyTo int64, buttons []model.Button) (model.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return model.MessageRef{}, c.sendErr
	}
	c.nextID++
	ref := model.MessageRef{ChatID: chatID, MessageID: c.nextID}
	c.sent = append(c.sent, sentMessage{Ref: ref, Text: text, ReplyTo: replyTo, Buttons: buttons})
	return ref, nil
}

func (c *fakeChat) EditMessage(_ context.Context, ref model.MessageRef, text string, buttons []model.Button) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, editCall{Ref: ref, Text: text, Buttons: buttons})
	if len(c.editErrs) > 0 {
		err := c.editErrs[0]
		c.editErrs = c.editErrs[1:]
		return err
	}
	return c.editErr
}

func (c *fakeChat) DeleteMessage(_ context.Context, ref model.MessageRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, ref)
	return nil
}

func (c *fakeChat) GetMembership(_ context.Context, _ string, _ int64) (model.MemberStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.membershipCalls++
	return c.member, c.memberErr
}

func (c *fakeChat) Sent() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

func (c *fakeChat) Edits() []editCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]editCall(nil), c.edits...)
}

func (c *fakeChat) Deleted() []model.MessageRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.MessageRef(nil), c.deleted...)
}

func (c *fakeChat) EditTexts() []string {
	edits := c.Edits()
	texts := make([]string, len(edits))
	for i, e := range edits {
		texts[i] = e.Text
	}
	return texts
}

type uploadCall struct {
	ChatID  int64
	Path    string
	Caption string
	Existed bool
}

type fakeUploader struct {
	mu    sync.Mutex
	calls []uploadCall
	err   error
}

func (u *fakeUploader) SendVideo(_ context.Context, chatID int64, path, caption string) (model.MessageRef, error) {
	_, statErr := os.Stat(path)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, uploadCall{ChatID: chatID, Path: path, Caption: caption, Existed: statErr == nil})
	if u.err != nil {
		return model.MessageRef{}, u.err
	}
	return model.MessageRef{ChatID: chatID, MessageID: 999}, nil
}

func (u *fakeUploader) Calls() []uploadCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]uploadCall(nil), u.calls...)
}

type extractFunc func(ctx context.Context, url, outputPath string, onProgress download.ProgressFunc) (string, error)

type fakeExtractor struct {
	fn          extractFunc
	mu          sync.Mutex
	outputPaths []string
}

func (e *fakeExtractor) Extract(ctx context.Context, url, outputPath string, onProgress download.ProgressFunc) (string, error) {
	e.mu.Lock()
	e.outputPaths = append(e.outputPaths, outputPath)
	e.mu.Unlock()
	return e.fn(ctx, url, outputPath, onProgress)
}

func (e *fakeExtractor) OutputPaths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.outputPaths...)
}

// writingExtractor writes size bytes to the output path and reports progress
func writingExtractor(size int) *fakeExtractor {
	return &fakeExtractor{fn: func(_ context.Context, _ string, outputPath string, onProgress download.ProgressFunc) (string, error) {
		onProgress(model.Progress{Phase: model.PhaseDownloading, DownloadedBytes: int64(size / 2), TotalBytes: int64(size)})
		if err := os.WriteFile(outputPath, make([]byte, size), 0o644); err != nil {
			return "", err
		}
		onProgress(model.Progress{Phase: model.PhaseFinished, DownloadedBytes: int64(size), TotalBytes: int64(size)})
		return outputPath, nil
	}}
}

type fakeCompressor struct {
	size  int
	err   error
	calls int
	out   string
}

func (c *fakeCompressor) Compress(_ context.Context, inputPath string, onPercent compress.PercentFunc) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	onPercent(50)
	onPercent(100)
	c.out = inputPath[:len(inputPath)-len(".mp4")] + "-compressed.mp4"
	if err := os.WriteFile(c.out, make([]byte, c.size), 0o644); err != nil {
		return "", err
	}
	return c.out, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func rateLimited(seconds int) error {
	return &telegram.APIError{
		Method:      "editMessageText",
		Code:        429,
		Description: "Too Many Requests",
		RetryAfter:  time.Duration(seconds) * time.Second,
	}
}

// instantAfter records requested waits and fires immediately
type instantAfter struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (a *instantAfter) After(d time.Duration) <-chan time.Time {
	a.mu.Lock()
	a.waits = append(a.waits, d)
	a.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (a *instantAfter) Waits() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Duration(nil), a.waits...)
}

var testTexts = locale.NewLocalization()

func testRecord(rt *Runtime, userID int64) *model.TaskRecord {
	rec := model.NewTaskRecord(userID, model.MessageRef{ChatID: userID, MessageID: 500 + userID}, "https://youtu.be/abc", "en", time.Now())
	if err := rt.Registry.Register(rec); err != nil {
		panic(err)
	}
	return rec
}

func newTestReporter(rt *Runtime, chat Chat) (*Reporter, *instantAfter) {
	r := NewReporter(rt, chat, testTexts, logging.Discard(), nil)
	after := &instantAfter{}
	r.after = after.After
	return r, after
}
