// Package cli implements the relay-bot commands using Cobra.
package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ytget/relay-bot/internal/config"
)

// rootOptions holds flags shared by every command
type rootOptions struct {
	configFile string
}

// NewRootCommand builds the command tree
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "relay-bot",
		Short: "Telegram bot that fetches YouTube and Instagram videos",
		Long: `relay-bot receives a YouTube or Instagram link in a private chat, fetches the
media with yt-dlp and sends the video back to the same chat.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Config file (yaml, json or toml)")
	pf.String("log-level", "", "Log level: debug | info | warn | error")
	pf.String("log-format", "", "Log format: json | text")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newVersionCommand(version))
	return cmd
}

// Execute runs the root command
func Execute(ctx context.Context, version string) error {
	return NewRootCommand(version).ExecuteContext(ctx)
}

// bindFlags maps command-line flags onto settings keys. Flags the user did
// not set fall back to env, file and defaults.
func bindFlags(cmd *cobra.Command, keys map[string]string) config.BindFunc {
	return func(v *viper.Viper) error {
		for flag, key := range keys {
			f := cmd.Flags().Lookup(flag)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
		return nil
	}
}
