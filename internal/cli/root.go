// Package cli implements the chatdesk command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/chatdesk/chatdesk/internal/config"
	"github.com/chatdesk/chatdesk/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// initialized in PersistentPreRunE
	log *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chatdesk",
		Short: "chatdesk — multi-channel customer support console",
		Long: "chatdesk connects messaging channels to a knowledge-grounded AI responder\n" +
			"and gives operators a console over the resulting conversations.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level, "pretty")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./chatdesk.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "chatdesk.yaml"
}

// newLogger rebuilds the logger from config once it is loaded; the
// --log-level flag still wins when set.
func newLogger(cfg config.LoggingConfig) *logging.Logger {
	return logging.New(nil, cfg.Level, cfg.Style)
}
