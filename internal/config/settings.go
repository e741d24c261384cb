// Package config loads the relay's settings from defaults, an optional config
// file, environment variables and command-line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "RELAY"

// Settings keys
const (
	KeyBotToken            = "telegram.bot_token"
	KeyAPIBaseURL          = "telegram.api_base_url"
	KeyPollTimeout         = "telegram.poll_timeout"
	KeyHTTPTimeout         = "telegram.http_timeout"
	KeyChannelID           = "relay.channel_id"
	KeyChannelInviteURL    = "relay.channel_invite_url"
	KeyCooldownSeconds     = "relay.cooldown_seconds"
	KeyTempDir             = "relay.temp_dir"
	KeyCookiesFile         = "relay.cookies_file"
	KeyShutdownParallelism = "relay.shutdown_parallelism"
	KeyUploadMaxBytes      = "upload.max_bytes"
	KeyUploadCompress      = "upload.compress"
	KeyYtdlpAutoInstall    = "ytdlp.auto_install"
	KeyYtdlpFormat         = "ytdlp.format"
	KeyYtdlpRetries        = "ytdlp.retries"
	KeyLogLevel            = "log.level"
	KeyLogFormat           = "log.format"
	KeyMetricsAddr         = "metrics.addr"
)

// Default values
const (
	DefaultAPIBaseURL          = "https://api.telegram.org"
	DefaultPollTimeout         = 30 * time.Second
	DefaultCooldownSeconds     = 60
	DefaultCookiesFile         = "instagram_cookies.txt"
	DefaultShutdownParallelism = 8
	DefaultUploadMaxBytes      = 50 * 1024 * 1024
	DefaultYtdlpFormat         = "bestvideo+bestaudio/best"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	InviteURLPrefix            = "https://t.me/"
)

// legacyEnv maps settings keys to the environment names used by earlier
// deployments of the bot
var legacyEnv = map[string][]string{
	KeyBotToken:        {"BOT_TOKEN"},
	KeyChannelID:       {"CHANNEL_ID"},
	KeyCooldownSeconds: {"COOLDOWN_SECONDS"},
}

// Settings holds all relay configuration. It is read once at startup and
// never changes afterwards.
type Settings struct {
	Telegram TelegramSettings `mapstructure:"telegram"`
	Relay    RelaySettings    `mapstructure:"relay"`
	Upload   UploadSettings   `mapstructure:"upload"`
	Ytdlp    YtdlpSettings    `mapstructure:"ytdlp"`
	Log      LogSettings      `mapstructure:"log"`
	Metrics  MetricsSettings  `mapstructure:"metrics"`
}

// TelegramSettings configures the Bot API transport.
type TelegramSettings struct {
	BotToken    string        `mapstructure:"bot_token" validate:"required"`
	APIBaseURL  string        `mapstructure:"api_base_url" validate:"required,url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" validate:"gte=0"`
	// Zero means no client timeout; uploads of large files can take minutes.
	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"gte=0"`
}

// RelaySettings configures admission and the task lifecycle.
type RelaySettings struct {
	ChannelID           string `mapstructure:"channel_id"`
	ChannelInviteURL    string `mapstructure:"channel_invite_url" validate:"omitempty,url"`
	CooldownSeconds     int    `mapstructure:"cooldown_seconds" validate:"gte=0"`
	TempDir             string `mapstructure:"temp_dir" validate:"required"`
	CookiesFile         string `mapstructure:"cookies_file"`
	ShutdownParallelism int    `mapstructure:"shutdown_parallelism" validate:"gte=1"`
}

// UploadSettings configures what happens to files above the upload limit.
type UploadSettings struct {
	MaxBytes int64 `mapstructure:"max_bytes" validate:"gte=0"`
	Compress bool  `mapstructure:"compress"`
}

// YtdlpSettings configures the extraction engine.
type YtdlpSettings struct {
	AutoInstall bool   `mapstructure:"auto_install"`
	Format      string `mapstructure:"format" validate:"required"`
	Retries     int    `mapstructure:"retries" validate:"gte=0,lte=5"`
}

// LogSettings configures structured logging.
type LogSettings struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// MetricsSettings configures the prometheus endpoint. An empty address disables it.
type MetricsSettings struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// BindFunc lets callers attach flags or extra sources to the viper instance
type BindFunc func(v *viper.Viper) error

// Load reads settings from the optional configFile, RELAY_* environment
// variables (plus legacy names) and whatever bind attaches.
func Load(configFile string, bind BindFunc) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envName := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, envName}, names...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	if bind != nil {
		if err := bind(v); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	s.normalize()

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBotToken, "")
	v.SetDefault(KeyAPIBaseURL, DefaultAPIBaseURL)
	v.SetDefault(KeyPollTimeout, DefaultPollTimeout)
	v.SetDefault(KeyHTTPTimeout, time.Duration(0))
	v.SetDefault(KeyChannelID, "")
	v.SetDefault(KeyChannelInviteURL, "")
	v.SetDefault(KeyCooldownSeconds, DefaultCooldownSeconds)
	v.SetDefault(KeyTempDir, os.TempDir())
	v.SetDefault(KeyCookiesFile, DefaultCookiesFile)
	v.SetDefault(KeyShutdownParallelism, DefaultShutdownParallelism)
	v.SetDefault(KeyUploadMaxBytes, DefaultUploadMaxBytes)
	v.SetDefault(KeyUploadCompress, true)
	v.SetDefault(KeyYtdlpAutoInstall, false)
	v.SetDefault(KeyYtdlpFormat, DefaultYtdlpFormat)
	v.SetDefault(KeyYtdlpRetries, 0)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyMetricsAddr, "")
}

func (s *Settings) normalize() {
	s.Telegram.BotToken = strings.TrimSpace(s.Telegram.BotToken)
	s.Telegram.APIBaseURL = strings.TrimRight(strings.TrimSpace(s.Telegram.APIBaseURL), "/")
	s.Relay.ChannelID = NormalizeChannelID(s.Relay.ChannelID)
	s.Log.Level = strings.ToLower(strings.TrimSpace(s.Log.Level))
	s.Log.Format = strings.ToLower(strings.TrimSpace(s.Log.Format))
}

// Validate checks struct constraints
func (s *Settings) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// NormalizeChannelID prefixes a bare channel username with @. Numeric
// supergroup ids (-100...) and already prefixed names are kept.
func NormalizeChannelID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "@") || strings.HasPrefix(id, "-100") {
		return id
	}
	return "@" + id
}

// Cooldown returns the per-user cooldown window
func (s *Settings) Cooldown() time.Duration {
	return time.Duration(s.Relay.CooldownSeconds) * time.Second
}

// MembershipRequired reports whether admission checks channel membership
func (s *Settings) MembershipRequired() bool {
	return s.Relay.ChannelID != ""
}

// ChannelInvite returns the link shown on the Join Channel button, or an
// empty string when no channel is configured
func (s *Settings) ChannelInvite() string {
	if s.Relay.ChannelInviteURL != "" {
		return s.Relay.ChannelInviteURL
	}
	if s.Relay.ChannelID == "" {
		return ""
	}
	return InviteURLPrefix + strings.TrimPrefix(s.Relay.ChannelID, "@")
}
