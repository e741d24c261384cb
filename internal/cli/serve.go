package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ytget/relay-bot/internal/compress"
	"github.com/ytget/relay-bot/internal/config"
	"github.com/ytget/relay-bot/internal/download"
	"github.com/ytget/relay-bot/internal/locale"
	"github.com/ytget/relay-bot/internal/logging"
	"github.com/ytget/relay-bot/internal/metrics"
	"github.com/ytget/relay-bot/internal/platform"
	"github.com/ytget/relay-bot/internal/relay"
	"github.com/ytget/relay-bot/internal/telegram"
)

// Shutdown notices must go out even though the poll context is already cancelled
const shutdownNoticeTimeout = 30 * time.Second

// serveFlags maps serve flags to settings keys
var serveFlags = map[string]string{
	"log-level":    config.KeyLogLevel,
	"log-format":   config.KeyLogFormat,
	"channel":      config.KeyChannelID,
	"cooldown":     config.KeyCooldownSeconds,
	"temp-dir":     config.KeyTempDir,
	"metrics-addr": config.KeyMetricsAddr,
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(opts.configFile, bindFlags(cmd, serveFlags))
			if err != nil {
				return err
			}
			logger := logging.Setup(settings.Log.Level, settings.Log.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, settings, logger)
		},
	}

	cmd.Flags().String("channel", "", "Channel users must join, @name or -100 id")
	cmd.Flags().Int("cooldown", 0, "Seconds between requests of one user")
	cmd.Flags().String("temp-dir", "", "Directory for downloads in progress")
	cmd.Flags().String("metrics-addr", "", "Listen address for /metrics, e.g. :9090")
	return cmd
}

func serve(ctx context.Context, settings *config.Settings, logger *slog.Logger) error {
	if err := platform.CreateDirectoryIfNotExists(settings.Relay.TempDir); err != nil {
		return fmt.Errorf("preparing temp dir: %w", err)
	}

	if settings.Ytdlp.AutoInstall {
		if err := download.Install(ctx, logger); err != nil {
			return err
		}
	}

	m := metrics.New()
	if settings.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, settings.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	client := telegram.NewClient(&http.Client{Timeout: settings.Telegram.HTTPTimeout}, settings.Telegram.APIBaseURL, settings.Telegram.BotToken)
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("checking bot token: %w", err)
	}
	logger.Info("bot authorized", "username", me.Username, "channel", settings.Relay.ChannelID)

	rt := relay.NewRuntime()
	texts := locale.NewLocalization()
	orch := relay.NewOrchestrator(relayConfig(settings), relay.Deps{
		Runtime:  rt,
		Chat:     client,
		Uploader: client,
		Extractor: download.NewService(download.Config{
			Format:      settings.Ytdlp.Format,
			CookiesFile: settings.Relay.CookiesFile,
			Retries:     settings.Ytdlp.Retries,
		}, logger),
		Compressor: compress.NewService(logger),
		Texts:      texts,
		Metrics:    m,
		Logger:     logger,
	})
	coordinator := relay.NewCoordinator(rt, orch.Reporter(), texts, settings.Relay.ShutdownParallelism, logger, m)
	bot := relay.NewBot(client, orch, settings.Telegram.PollTimeout, logger)

	runErr := bot.Run(ctx)

	noticeCtx, cancel := context.WithTimeout(context.Background(), shutdownNoticeTimeout)
	defer cancel()
	coordinator.Shutdown(noticeCtx)

	logger.Info("bot stopped")
	return runErr
}

// relayConfig maps settings onto the task policy. The channel is only
// passed on when membership is enforced; the invite link may exist without it.
func relayConfig(settings *config.Settings) relay.Config {
	cfg := relay.Config{
		ChannelInvite:  settings.ChannelInvite(),
		Cooldown:       settings.Cooldown(),
		TempDir:        settings.Relay.TempDir,
		MaxUploadBytes: settings.Upload.MaxBytes,
		Compress:       settings.Upload.Compress,
	}
	if settings.MembershipRequired() {
		cfg.ChannelID = settings.Relay.ChannelID
	}
	return cfg
}
