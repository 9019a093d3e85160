package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// streams are the process's standard files, replaceable in tests.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func stdStreams() streams {
	return streams{in: os.Stdin, out: os.Stdout, err: os.Stderr}
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	settingsPath string
	dotenvPath   string
	logLevel     string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&c.settingsPath, "settings", "", "settings file (default "+DefaultSettingsPath()+")")
	fs.StringVar(&c.dotenvPath, "dotenv", "", "load environment variables from this file first")
	fs.StringVar(&c.logLevel, "log-level", "", "debug|info|warn|error (overrides settings)")
}

// env is what a subcommand runs with once flags are parsed.
type env struct {
	settings *Settings
	logger   *slog.Logger
	closers  []func(context.Context) error
}

// setup loads .env, settings and environment overrides, then builds the
// logger and tracing. interactive marks commands that draw on the terminal.
func (c *commonFlags) setup(ctx context.Context, std streams, interactive bool) (*env, error) {
	var dotenvKeys []string
	if p := strings.TrimSpace(c.dotenvPath); p != "" {
		keys, err := loadDotenv(p)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
		dotenvKeys = keys
	}

	path, required := strings.TrimSpace(c.settingsPath), true
	if path == "" {
		path, required = DefaultSettingsPath(), false
	}
	settings, err := LoadSettings(path, required)
	if err != nil {
		return nil, err
	}
	if err := settings.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if lvl := strings.TrimSpace(c.logLevel); lvl != "" {
		settings.Log.Level = lvl
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger, closer, err := newLogger(settings.Log, std.err, interactive)
	if err != nil {
		return nil, err
	}
	e := &env{settings: settings, logger: logger}
	if closer != nil {
		e.closers = append(e.closers, func(context.Context) error { return closer.Close() })
	}
	if len(dotenvKeys) > 0 {
		logger.Debug("dotenv_loaded", slog.String("path", c.dotenvPath), slog.Int("keys", len(dotenvKeys)))
	}

	shutdown, err := initTracing(ctx, settings.Tracing, func(err error) {
		logger.Warn("tracing_error", slog.Any("err", err))
	})
	if err != nil {
		_ = e.close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	e.closers = append(e.closers, shutdown)
	return e, nil
}

// close runs the closers in reverse order.
func (e *env) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i](ctx))
	}
	return errors.Join(errs...)
}
