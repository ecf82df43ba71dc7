package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"coderag/internal/config"
)

var envFile string

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "coderag",
		Short:         "Index a source tree into a vector store and search it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (defaults to searching upward for .env)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newQueryCmd())
	return rootCmd
}

// loadConfig reads configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(envFile)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg, os.Stderr))
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
