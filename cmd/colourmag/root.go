package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	cm "colourmag/pkg/colourmag"
)

var (
	configPath string
	logLevel   string
	logJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "colourmag",
	Short: "Two-band aperture photometry and colour-magnitude diagrams",
	Long: `colourmag reduces raw frames of a star field taken in two filter bands
into calibrated masters, detects and measures sources in both, and turns
reference magnitudes into a colour-magnitude diagram.

Run "reduce" first; the other commands work on the saved session.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if logJSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", cm.DefaultConfigPath, "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
}

// openSession loads the configuration and the session saved by reduce.
func openSession() (*cm.Config, *cm.Session, error) {
	cfg, err := cm.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	s, err := cm.OpenSession(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}
