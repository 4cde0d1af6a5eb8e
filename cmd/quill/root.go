package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/FearYourSelf/forge-and-quill/internal/config"
	"github.com/FearYourSelf/forge-and-quill/internal/dotenv"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "quill",
		Short:         "Voice-first character co-writer",
		Long:          "quill drives a live voice or text-chat brainstorming session with a generative co-writer that edits your character document through tool calls.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newBrainstormCmd(flags),
		newChatCmd(flags),
		newCharacterCmd(flags),
		newMigrateCmd(flags),
	)
	return rootCmd
}

// loadApp loads dotenv files and configuration and builds the logger.
func loadApp(flags *rootFlags) (*config.Config, *slog.Logger, error) {
	if err := dotenv.Load(); err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadWithFallback(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	logger := buildLogger(level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func buildLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
