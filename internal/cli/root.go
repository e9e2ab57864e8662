// Package cli implements Beach's command-line surface (spec §6): a single
// cobra root with host and join subcommands, built the way the teacher's
// own go.mod-declared cobra/pflag stack implies.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/beach-sh/beach/internal/config"
)

var (
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "beach",
	Short: "Beach shares a live terminal session over a peer-to-peer connection",
	Long: `Beach streams a real PTY session to remote viewers over an
unreliable WebRTC data channel, keeping a full absolute-indexed
scrollback history on both ends.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: error|warn|info|debug|trace")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(joinCmd)
}

// Execute runs the root command, exiting the process with a non-zero
// status on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "beach: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the layered configuration (defaults, config file,
// env, then the persistent --log-level/--log-file flags), per spec §6.
func loadConfig() (config.Config, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	return cfg, nil
}
