package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nuetzliches/routedit/internal/editor"
	"github.com/nuetzliches/routedit/internal/filelock"
	"github.com/nuetzliches/routedit/internal/history"
	"github.com/nuetzliches/routedit/internal/routeconfig"
	"github.com/nuetzliches/routedit/internal/tui"
)

func editCmd(args []string, std streams) int {
	fs := newFlagSet("edit", std)
	var common commonFlags
	common.register(fs)
	noWatch := fs.Bool("no-watch", false, "do not watch the file for changes made by other programs")
	noLock := fs.Bool("no-lock", false, "do not take the per-file edit lock")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(std.err, "usage: routedit edit [FILE]")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := common.setup(ctx, std, true)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 2
	}
	defer e.close()
	logger := e.logger

	var recorder editor.Recorder
	store, err := openHistory(e.settings.History)
	switch {
	case err != nil:
		fmt.Fprintf(std.err, "warning: history disabled: %v\n", err)
	case store != nil:
		defer store.Close()
		recorder = history.NewRecorder(store, history.WithKeep(e.settings.History.Keep), history.WithLogger(logger))
	}

	opts := tui.Options{
		Path:     fs.Arg(0),
		Context:  ctx,
		Logger:   logger,
		Store:    routeconfig.FileStore{Logger: logger},
		Recorder: recorder,
		Watch:    e.settings.Watch.Enabled && !*noWatch,
		Debounce: e.settings.Watch.Debounce,
	}
	if !*noLock {
		opts.Lock = lockFile
	}

	logger.Info("edit_started", slog.String("path", opts.Path), slog.Bool("history", recorder != nil), slog.Bool("watch", opts.Watch))
	if err := tui.Run(opts); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		logger.Error("edit_failed", slog.Any("err", err))
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	logger.Info("edit_finished")
	return 0
}

func lockFile(path string) (func() error, error) {
	l, err := filelock.Acquire(path)
	if err != nil {
		return nil, err
	}
	return l.Release, nil
}
