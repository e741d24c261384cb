package compress

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FFmpeg constants for compression settings
const (
	// Video codec settings
	VideoCodec  = "libx264"
	VideoPreset = "medium"
	VideoCRF    = "23"

	// Audio codec settings
	AudioCodec   = "aac"
	AudioBitrate = "128k"

	// Container flags
	FastStartFlag = "+faststart"

	// Output suffix
	CompressedSuffix = "-compressed"

	// Executable and I/O constants
	FFmpegCommand       = "ffmpeg"
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
	ProgressPipeTarget  = "pipe:2"
	ProgressTimePrefix  = "out_time_us="
	JobIDPrefix         = "compress-"
	OutputExtensionMP4  = ".mp4"
)

// ErrInputMissing is returned when the file to compress does not exist
var ErrInputMissing = errors.New("input file does not exist")

// Service runs ffmpeg synchronously for each Compress call
type Service struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// Option customizes a Service
type Option func(*Service)

// WithExecutables overrides the ffmpeg and ffprobe binaries
func WithExecutables(ffmpeg, ffprobe string) Option {
	return func(s *Service) {
		s.ffmpeg = ffmpeg
		s.ffprobe = ffprobe
	}
}

// NewService creates a new compression service
func NewService(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		ffmpeg:  FFmpegCommand,
		ffprobe: FFprobeCommand,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compress re-encodes inputPath to <base>-compressed.mp4. The partial output
// is removed on failure.
func (s *Service) Compress(ctx context.Context, inputPath string, onPercent PercentFunc) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrInputMissing, inputPath)
		}
		return "", err
	}

	jobID := generateJobID()
	outputPath := generateOutputPath(inputPath)
	logger := s.logger.With("job_id", jobID, "input", inputPath)

	// Progress reporting is best-effort: unknown duration only disables percentages
	duration, err := s.getVideoDuration(ctx, inputPath)
	if err != nil {
		logger.Warn("failed to get video duration", "error", err)
	}

	cmd := exec.CommandContext(ctx, s.ffmpeg, BuildFFmpegArgs(inputPath, outputPath)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// Wait closes the pipe, so stderr must be drained first
	if err := monitorProgress(stderr, duration, onPercent); err != nil {
		logger.Warn("progress unavailable", "error", err)
	}
	if err := cmd.Wait(); err != nil {
		_ = os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg: %w", err)
	}

	logger.Info("compression finished", "output", outputPath, "took", time.Since(started))
	return outputPath, nil
}

// BuildFFmpegArgs builds the ffmpeg command arguments
func BuildFFmpegArgs(inputPath, outputPath string) []string {
	return []string{
		"-y",            // Overwrite output file
		"-i", inputPath, // Input file
		"-c:v", VideoCodec, // Video codec
		"-preset", VideoPreset, // Encoding preset
		"-crf", VideoCRF, // Constant rate factor
		"-c:a", AudioCodec, // Audio codec
		"-b:a", AudioBitrate, // Audio bitrate
		"-movflags", FastStartFlag, // MP4 optimization
		"-progress", ProgressPipeTarget, // Progress to stderr
		"-nostats", // No stats output
		outputPath, // Output file
	}
}

// getVideoDuration gets the duration of a video file in seconds using ffprobe
func (s *Service) getVideoDuration(ctx context.Context, filePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, s.ffprobe, "-v", FFprobeLogLevel, "-show_entries", FFprobeShowEntries, "-of", FFprobeOutputFormat, filePath)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return duration, nil
}

// monitorProgress reads ffmpeg progress output until EOF. If scanning stops
// early the rest is discarded so ffmpeg never blocks on a full pipe.
func monitorProgress(stderr io.Reader, totalDuration float64, onPercent PercentFunc) error {
	scanner := bufio.NewScanner(stderr)
	last := -1
	for scanner.Scan() {
		percent, ok := parseProgressLine(scanner.Text(), totalDuration)
		if !ok || percent == last || onPercent == nil {
			continue
		}
		last = percent
		onPercent(percent)
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, stderr)
		return fmt.Errorf("reading ffmpeg progress: %w", err)
	}
	return nil
}

// parseProgressLine turns an "out_time_us=123456" line into a percentage
// of totalDuration seconds
func parseProgressLine(line string, totalDuration float64) (int, bool) {
	line = strings.TrimSpace(line)
	if totalDuration <= 0 || !strings.HasPrefix(line, ProgressTimePrefix) {
		return 0, false
	}
	micros, err := strconv.ParseInt(strings.TrimPrefix(line, ProgressTimePrefix), 10, 64)
	if err != nil || micros < 0 {
		return 0, false
	}

	progress := float64(micros) / 1000000.0 / totalDuration
	if progress > 1.0 {
		progress = 1.0
	}
	return int(progress * 100), true
}

// generateOutputPath generates the output path for compressed file
func generateOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	baseName := strings.TrimSuffix(inputPath, ext)
	return baseName + CompressedSuffix + OutputExtensionMP4
}

// generateJobID returns a time-ordered id used to correlate log lines
func generateJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(JobIDPrefix+"%d", time.Now().UnixNano())
	}
	return JobIDPrefix + id.String()
}
