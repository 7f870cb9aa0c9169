package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/germanamz/newsroom/pkg/engine"
)

// configCandidates are tried in order when --config is not given.
var configCandidates = []string{"newsroom.yaml", "newsroom.yml", "newsroom.toml"}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfigPath returns the config file to use. Priority:
// 1. Explicit --config flag (non-empty)
// 2. The first of configCandidates that exists
// 3. "" for the built-in roster
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	for _, name := range configCandidates {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}

	return ""
}

// loadConfig loads the resolved config file, or the built-in roster.
func loadConfig(explicit string) (engine.Config, error) {
	path := resolveConfigPath(explicit)
	if path == "" {
		return engine.DefaultConfig(), nil
	}

	return engine.LoadConfig(path)
}

// applyFlags overrides configuration with the run flags that were set.
func applyFlags(cmd *cobra.Command, cfg *engine.Config, opts *options) {
	if cmd.Flags().Changed("rounds") {
		cfg.Workflow.Rounds = opts.rounds
	}
	if opts.search != "" {
		cfg.Search.Mode = opts.search
	}
	if opts.out != "" {
		cfg.Output.Dir = opts.out
	}
	if opts.diff {
		cfg.Output.Diff = true
	}
}

// newLogger returns a text logger on stderr at warn level, or on logFile at
// info level. verbose lowers either to debug.
func newLogger(verbose bool, logFile string, stderr io.Writer) (*slog.Logger, func() error, error) {
	level := slog.LevelWarn
	w := stderr
	closeFn := func() error { return nil }

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path is a user flag
		if err != nil {
			return nil, nil, fmt.Errorf("log file: %w", err)
		}
		w, closeFn, level = f, f.Close, slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn, nil
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
