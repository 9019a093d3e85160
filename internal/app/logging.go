package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// newLogger builds the process logger from settings. While the editor owns
// the terminal, terminal sinks are replaced by a discarding logger.
func newLogger(s LogSettings, stderr io.Writer, interactive bool) (*slog.Logger, io.Closer, error) {
	lvl, err := parseLogLevel(s.Level)
	if err != nil {
		return nil, nil, err
	}
	output := strings.ToLower(strings.TrimSpace(s.Output))
	if interactive && output != "file" {
		return newDiscardLogger(), nil, nil
	}
	w, closer, err := openLogSink(output, s.Path, stderr)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(newHandler(w, lvl)), closer, nil
}

// newHandler writes text to terminals and JSON everywhere else.
func newHandler(w io.Writer, lvl slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: lvl}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (use: debug|info|warn|error)", level)
	}
}

func openLogSink(output, path string, stderr io.Writer) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stderr":
		return stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	case "file":
		p := strings.TrimSpace(path)
		if p == "" {
			return nil, nil, errors.New("log output file requires path")
		}
		f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", p, err)
		}
		return f, f, nil
	default:
		return nil, nil, fmt.Errorf("invalid log output %q (use: stdout|stderr|file)", output)
	}
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
