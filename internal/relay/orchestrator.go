package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ytget/relay-bot/internal/locale"
	"github.com/ytget/relay-bot/internal/metrics"
	"github.com/ytget/relay-bot/internal/model"
	"github.com/ytget/relay-bot/internal/platform"
)

const commandStart = "start"

// Config is the relay's task policy
type Config struct {
	ChannelID string
	// ChannelInvite is the Join Channel button link; empty hides the button
	ChannelInvite string
	Cooldown      time.Duration
	TempDir       string
	// MaxUploadBytes of zero disables the size check
	MaxUploadBytes int64
	Compress       bool
}

// Deps are the collaborators of an Orchestrator. Compressor, Metrics,
// Logger and Clock are optional.
type Deps struct {
	Runtime    *Runtime
	Chat       Chat
	Uploader   Uploader
	Extractor  Extractor
	Compressor Compressor
	Texts      *locale.Localization
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Clock      Clock
}

// Orchestrator drives one inbound message through the task lifecycle
type Orchestrator struct {
	cfg        Config
	rt         *Runtime
	chat       Chat
	uploader   Uploader
	extractor  Extractor
	compressor Compressor
	texts      *locale.Localization
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        Clock

	admission *Admission
	reporter  *Reporter
}

// NewOrchestrator wires an orchestrator and its admission controller and reporter
func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Texts == nil {
		deps.Texts = locale.NewLocalization()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Orchestrator{
		cfg:        cfg,
		rt:         deps.Runtime,
		chat:       deps.Chat,
		uploader:   deps.Uploader,
		extractor:  deps.Extractor,
		compressor: deps.Compressor,
		texts:      deps.Texts,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
		admission: NewAdmission(deps.Runtime, deps.Chat, AdmissionConfig{
			ChannelID: cfg.ChannelID,
			Cooldown:  cfg.Cooldown,
		}, deps.Logger, deps.Metrics),
		reporter: NewReporter(deps.Runtime, deps.Chat, deps.Texts, deps.Logger, deps.Metrics),
	}
}

// Reporter returns the reporter shared with the shutdown coordinator
func (o *Orchestrator) Reporter() *Reporter {
	return o.reporter
}

// Handle processes one message. Rejections are answered and return nil;
// errors from an admitted task are returned for logging.
func (o *Orchestrator) Handle(ctx context.Context, in model.Inbound) error {
	if strings.TrimSpace(in.Text) == "" || !in.IsPrivate() || o.rt.ShuttingDown() {
		return nil
	}
	lang := o.texts.Resolve(in.Lang)

	if in.Command() == commandStart {
		_, err := o.chat.SendMessage(ctx, in.ChatID, o.texts.GetText(lang, locale.KeyWelcome), in.MessageID, o.joinButtons(lang))
		if err != nil {
			return fmt.Errorf("sending welcome: %w", err)
		}
		return nil
	}

	o.logger.Debug("task state changed", "user_id", in.UserID,
		"from", model.TaskStateIdle, "to", model.TaskStateValidating)
	status, err := o.chat.SendMessage(ctx, in.ChatID, o.texts.GetText(lang, locale.KeyStarting), in.MessageID, nil)
	if err != nil {
		return fmt.Errorf("sending status message: %w", err)
	}

	rec, err := o.admission.TryAdmit(ctx, AdmitRequest{
		UserID: in.UserID,
		URL:    strings.TrimSpace(in.Text),
		Lang:   lang,
		Status: status,
	}, o.now())
	if err != nil {
		o.logger.Debug("task state changed", "user_id", in.UserID,
			"from", model.TaskStateValidating, "to", model.TaskStateFailed, "error", err)
		return o.reject(ctx, status, lang, err)
	}

	return o.run(ctx, rec, in.MessageID)
}

func (o *Orchestrator) reject(ctx context.Context, status model.MessageRef, lang string, err error) error {
	rej, ok := AsRejection(err)
	if !ok {
		return err
	}

	var (
		text    string
		buttons []model.Button
	)
	switch rej.Reason {
	case ReasonShuttingDown:
		return nil
	case ReasonInvalidURL:
		text = o.texts.GetText(lang, locale.KeyInvalidURL)
	case ReasonCooldown:
		text = o.texts.Format(lang, locale.KeyCooldown, rej.RemainingSeconds())
	case ReasonMembershipRequired:
		text = o.texts.GetText(lang, locale.KeyJoinFirst)
		buttons = o.joinButtons(lang)
	case ReasonTaskInProgress:
		text = o.texts.GetText(lang, locale.KeyTaskInProgress)
	default:
		return err
	}

	if editErr := o.reporter.Edit(ctx, status, text, buttons); editErr != nil {
		o.logger.Warn("failed to show rejection", "chat_id", status.ChatID, "reason", rej.Reason, "error", editErr)
	}
	return nil
}

func (o *Orchestrator) joinButtons(lang string) []model.Button {
	if o.cfg.ChannelInvite == "" {
		return nil
	}
	return []model.Button{{Text: o.texts.GetText(lang, locale.KeyJoinChannel), URL: o.cfg.ChannelInvite}}
}

// run executes an admitted task. The record is unregistered on every exit;
// the cooldown set at admission stays.
func (o *Orchestrator) run(ctx context.Context, rec *model.TaskRecord, replyTo int64) (err error) {
	logger := o.logger.With("user_id", rec.UserID, "task_id", rec.ID)
	outcome := metrics.OutcomeDone
	defer func() {
		final, registered := o.rt.Registry.Lookup(rec.UserID)
		o.rt.Registry.Unregister(rec.UserID)
		o.metrics.SetActiveTasks(o.rt.Registry.Len())
		o.metrics.TaskFinished(outcome, rec.Elapsed(o.now()))
		// Shutdown clears the registry: such records never reach a final state
		finished := registered && final.State.IsFinished()
		if err != nil {
			logger.Warn("task failed", "outcome", outcome, "finished", finished, "error", err)
			return
		}
		logger.Info("task done", "took", rec.Elapsed(o.now()), "finished", finished)
	}()

	tempPath := platform.TempMediaPath(o.cfg.TempDir, rec.UserID, o.now())

	o.setState(rec, model.TaskStateDownloading, logger)
	file, err := o.download(ctx, rec, tempPath)
	if err != nil {
		if errors.Is(err, ErrMissingOutputFile) {
			outcome = metrics.OutcomeMissingOutput
		} else {
			outcome = metrics.OutcomeExtractFailed
		}
		o.setState(rec, model.TaskStateFailed, logger)
		if !o.rt.ShuttingDown() {
			o.reporter.Finish(ctx, rec.UserID, o.texts.GetText(rec.Lang, locale.KeyDownloadFailed))
		}
		o.removeFiles(logger, tempPath, file)
		return err
	}

	var compressed string
	defer func() {
		o.removeFiles(logger, file, tempPath)
		if compressed != "" {
			o.removeFiles(logger, compressed)
		}
	}()

	upload, err := o.fitUploadLimit(ctx, rec, file, logger)
	if upload != file {
		compressed = upload
	}
	if err != nil {
		outcome = metrics.OutcomeFileTooLarge
		o.setState(rec, model.TaskStateFailed, logger)
		o.replyIfRunning(ctx, rec, replyTo, locale.KeyFileTooLarge, logger)
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	o.setState(rec, model.TaskStateUploading, logger)
	o.reporter.Report(ctx, rec.UserID, o.texts.GetText(rec.Lang, locale.KeyUploading))
	if _, err := o.uploader.SendVideo(ctx, rec.ChatID, upload, o.texts.GetText(rec.Lang, locale.KeyCaption)); err != nil {
		outcome = metrics.OutcomeUploadFailed
		o.setState(rec, model.TaskStateFailed, logger)
		o.replyIfRunning(ctx, rec, replyTo, locale.KeyUploadFailed, logger)
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	o.setState(rec, model.TaskStateCleaning, logger)
	if !rec.Status.IsZero() {
		if err := o.chat.DeleteMessage(ctx, rec.Status); err != nil {
			logger.Debug("failed to delete status message", "error", err)
		}
	}
	o.setState(rec, model.TaskStateDone, logger)
	return nil
}

// download runs the extractor with progress reporting and resolves the file
// it produced
func (o *Orchestrator) download(ctx context.Context, rec *model.TaskRecord, tempPath string) (string, error) {
	pump := startPump(func(text string) {
		o.reporter.Report(ctx, rec.UserID, text)
	})
	hook := newProgressHook(o.rt, o.texts, rec.Lang, o.now, pump.Offer)

	out, err := o.extractor.Extract(ctx, rec.URL, tempPath, hook.Handle)
	pump.Close()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	if out == "" {
		out = tempPath
	}

	file, err := platform.FindFileWithFallback(out)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrMissingOutputFile, err)
	}
	return file, nil
}

// fitUploadLimit returns a path that is within the upload limit, compressing
// the file when allowed. The returned path differs from file when a
// compressed copy was made.
func (o *Orchestrator) fitUploadLimit(ctx context.Context, rec *model.TaskRecord, file string, logger *slog.Logger) (string, error) {
	if o.cfg.MaxUploadBytes <= 0 {
		return file, nil
	}
	size, err := platform.FileSize(file)
	if err != nil || size <= o.cfg.MaxUploadBytes {
		return file, nil
	}
	if !o.cfg.Compress || o.compressor == nil {
		return file, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}

	o.setState(rec, model.TaskStateCompressing, logger)
	pump := startPump(func(text string) {
		o.reporter.Report(ctx, rec.UserID, text)
	})
	out, err := o.compressor.Compress(ctx, file, func(percent int) {
		if !o.rt.ShuttingDown() {
			pump.Offer(o.texts.Format(rec.Lang, locale.KeyCompressing, percent))
		}
	})
	pump.Close()
	if err != nil {
		return file, fmt.Errorf("%w: compression: %w", ErrFileTooLarge, err)
	}

	compressedSize, err := platform.FileSize(out)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrFileTooLarge, err)
	}
	if compressedSize > o.cfg.MaxUploadBytes {
		return out, fmt.Errorf("%w: %d bytes after compression", ErrFileTooLarge, compressedSize)
	}
	logger.Info("file compressed", "from_bytes", size, "to_bytes", compressedSize)
	return out, nil
}

// replyIfRunning sends a new failure message unless shutdown already told
// the user their task was cancelled
func (o *Orchestrator) replyIfRunning(ctx context.Context, rec *model.TaskRecord, replyTo int64, key string, logger *slog.Logger) {
	if o.rt.ShuttingDown() {
		return
	}
	if _, err := o.chat.SendMessage(ctx, rec.ChatID, o.texts.GetText(rec.Lang, key), replyTo, nil); err != nil {
		logger.Warn("failed to send failure message", "error", err)
	}
}

func (o *Orchestrator) setState(rec *model.TaskRecord, state model.TaskState, logger *slog.Logger) {
	prev, ok := o.rt.Registry.SetState(rec.UserID, state)
	if !ok {
		return
	}
	logger.Debug("task state changed", "from", prev, "to", state, "active", state.IsActive())
}

func (o *Orchestrator) removeFiles(logger *slog.Logger, paths ...string) {
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		if _, err := platform.RemoveMediaFiles(path); err != nil {
			logger.Warn("failed to remove media files", "path", path, "error", err)
		}
	}
}
