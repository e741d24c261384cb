package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/ytget/relay-bot/internal/model"
	"github.com/ytget/relay-bot/internal/platform"
)

// Engine defaults
const (
	DefaultFormat           = "bestvideo+bestaudio/best"
	DefaultProgressInterval = 100 * time.Millisecond
	MergeFormat             = "mp4"
	retryBackoff            = 2 * time.Second
)

// Config tunes the extraction engine
type Config struct {
	Format string
	// CookiesFile is passed to yt-dlp for links that need it, if the file exists
	CookiesFile      string
	Retries          int
	ProgressInterval time.Duration
}

// Service runs yt-dlp for one URL at a time per call. It keeps no state
// between calls, so concurrent Extract calls are independent.
type Service struct {
	cfg    Config
	logger *slog.Logger
}

// NewService creates a new extraction service
func NewService(cfg Config, logger *slog.Logger) *Service {
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, logger: logger}
}

// Install makes sure a yt-dlp binary is available, downloading it if needed
func Install(ctx context.Context, logger *slog.Logger) error {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return fmt.Errorf("installing yt-dlp: %w", err)
	}
	logger.Info("yt-dlp ready", "executable", resolved.Executable, "version", resolved.Version)
	return nil
}

// Extract downloads url into outputPath
func (s *Service) Extract(ctx context.Context, url, outputPath string, onProgress ProgressFunc) (string, error) {
	dl := s.command(url, outputPath, onProgress)

	result, err := s.runWithRetry(ctx, dl, url)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	return resolveOutput(result, outputPath), nil
}

func (s *Service) command(url, outputPath string, onProgress ProgressFunc) *ytdlp.Command {
	dl := ytdlp.New().
		Format(s.cfg.Format).
		MergeOutputFormat(MergeFormat).
		RecodeVideo(MergeFormat).
		NoPlaylist().
		NoWarnings().
		ForceOverwrites().
		Output(outputPath)

	if cookies := s.cookiesFor(url); cookies != "" {
		dl = dl.Cookies(cookies)
	}

	if onProgress != nil {
		dl = dl.ProgressFunc(s.cfg.ProgressInterval, func(update ytdlp.ProgressUpdate) {
			onProgress(ToProgress(update))
		})
	}
	return dl
}

// cookiesFor returns the cookie file to use for url, or "" if none applies
func (s *Service) cookiesFor(url string) string {
	if s.cfg.CookiesFile == "" || !platform.RequiresCookies(url) {
		return ""
	}
	if _, err := os.Stat(s.cfg.CookiesFile); err != nil {
		s.logger.Warn("cookies file not found, fetching without it", "path", s.cfg.CookiesFile, "error", err)
		return ""
	}
	return s.cfg.CookiesFile
}

// runWithRetry attempts the fetch, retrying up to cfg.Retries times
func (s *Service) runWithRetry(ctx context.Context, dl *ytdlp.Command, url string) (*ytdlp.Result, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			s.logger.Info("retrying fetch", "url", url, "attempt", attempt+1)
		}

		res, err := dl.Run(ctx, url)
		if err == nil {
			return res, nil
		}
		lastErr = err
		s.logger.Warn("fetch attempt failed", "url", url, "attempt", attempt+1, "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return nil, lastErr
}

// resolveOutput prefers the filename reported by yt-dlp, falling back to
// the requested path
func resolveOutput(result *ytdlp.Result, outputPath string) string {
	if result == nil {
		return outputPath
	}
	info, err := result.GetExtractedInfo()
	if err != nil || len(info) == 0 || info[0] == nil || info[0].Filename == nil || *info[0].Filename == "" {
		return outputPath
	}
	return *info[0].Filename
}

// ToProgress converts an engine update to a model snapshot
func ToProgress(update ytdlp.ProgressUpdate) model.Progress {
	return model.Progress{
		Phase:           MapStatus(update.Status),
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
	}
}

// MapStatus maps yt-dlp progress statuses onto phases
func MapStatus(status ytdlp.ProgressStatus) model.Phase {
	switch status {
	case ytdlp.ProgressStatusDownloading:
		return model.PhaseDownloading
	case ytdlp.ProgressStatusFinished:
		return model.PhaseFinished
	case ytdlp.ProgressStatusPostProcessing:
		return model.PhasePostProcessing
	default:
		return model.PhaseOther
	}
}
