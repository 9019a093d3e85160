package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nuetzliches/routedit/internal/editor"
	"github.com/nuetzliches/routedit/internal/history"
	"github.com/nuetzliches/routedit/internal/routeconfig"
)

var errHistoryDisabled = errors.New("history is disabled (history.backend: none)")

func historyCmd(args []string, std streams) int {
	if len(args) < 1 {
		fmt.Fprintln(std.err, "missing subcommand: list | show | restore")
		return 2
	}
	switch args[0] {
	case "list":
		return historyList(args[1:], std)
	case "show":
		return historyShow(args[1:], std)
	case "restore":
		return historyRestore(args[1:], std)
	default:
		fmt.Fprintf(std.err, "unknown history subcommand: %s\n", args[0])
		return 2
	}
}

// openHistoryEnv prepares the environment and opens the configured store.
func openHistoryEnv(ctx context.Context, common *commonFlags, std streams) (*env, history.Store, error) {
	e, err := common.setup(ctx, std, false)
	if err != nil {
		return nil, nil, err
	}
	store, err := openHistory(e.settings.History)
	if err != nil {
		_ = e.close()
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	if store == nil {
		_ = e.close()
		return nil, nil, errHistoryDisabled
	}
	return e, store, nil
}

type revisionJSON struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Digest  string    `json:"digest"`
	Size    int       `json:"size"`
	Routes  int       `json:"routes"`
	SavedAt time.Time `json:"saved_at"`
}

func historyList(args []string, std streams) int {
	fs := newFlagSet("history list", std)
	var common commonFlags
	common.register(fs)
	file := fs.String("file", "", "only list revisions of this file")
	limit := fs.Int("limit", 20, "maximum number of revisions")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(std.err, "history list: unexpected positional arguments")
		return 2
	}

	ctx := context.Background()
	e, store, err := openHistoryEnv(ctx, &common, std)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	defer e.close()
	defer store.Close()

	req := history.ListRequest{Limit: *limit}
	if p := strings.TrimSpace(*file); p != "" {
		abs, err := filepath.Abs(p)
		if err != nil {
			fmt.Fprintln(std.err, err.Error())
			return 1
		}
		req.Path = abs
	}
	revs, err := store.List(ctx, req)
	if err != nil {
		e.logger.Error("history_list_failed", slog.Any("err", err))
		fmt.Fprintln(std.err, err.Error())
		return 1
	}

	if *asJSON {
		out := make([]revisionJSON, 0, len(revs))
		for _, r := range revs {
			out = append(out, revisionJSON{ID: r.ID, Path: r.Path, Digest: r.Digest, Size: r.Size, Routes: r.Routes, SavedAt: r.SavedAt})
		}
		enc := json.NewEncoder(std.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(std.err, err.Error())
			return 1
		}
		return 0
	}

	tw := tabwriter.NewWriter(std.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSAVED\tROUTES\tSIZE\tPATH")
	for _, r := range revs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.SavedAt.Local().Format(time.DateTime), r.Routes, r.Size, r.Path)
	}
	_ = tw.Flush()
	return 0
}

func historyShow(args []string, std streams) int {
	fs := newFlagSet("history show", std)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(std.err, "usage: routedit history show <revision>")
		return 2
	}

	ctx := context.Background()
	e, store, err := openHistoryEnv(ctx, &common, std)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	defer e.close()
	defer store.Close()

	rev, err := store.Get(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	_, _ = std.out.Write(rev.Content)
	return 0
}

// historyRestore writes a stored revision back through an editor session, so
// the save gate runs and the restore itself becomes the newest revision.
func historyRestore(args []string, std streams) int {
	fs := newFlagSet("history restore", std)
	var common commonFlags
	common.register(fs)
	to := fs.String("to", "", "write to this file instead of the revision's path")
	yes := fs.BoolP("yes", "y", false, "do not ask before overwriting")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(std.err, "usage: routedit history restore <revision> [--to FILE] [--yes]")
		return 2
	}

	ctx := context.Background()
	e, store, err := openHistoryEnv(ctx, &common, std)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	defer e.close()
	defer store.Close()

	rev, err := store.Get(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	doc, _, err := routeconfig.Parse(rev.Content)
	if err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	target := rev.Path
	if strings.TrimSpace(*to) != "" {
		target = strings.TrimSpace(*to)
	}

	dialog := newPromptDialog(std, *yes)
	if !dialog.Confirm(fmt.Sprintf("Overwrite %s with revision %s?", target, rev.ID), editor.TitleConfirm) {
		return 1
	}

	recorder := history.NewRecorder(store, history.WithKeep(e.settings.History.Keep), history.WithLogger(e.logger))
	session := editor.NewSession(routeconfig.FileStore{Logger: e.logger}, argPicker{write: target}, dialog,
		editor.WithRecorder(recorder), editor.WithLogger(e.logger))
	if err := session.Model().Hydrate(doc); err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	if err := session.SaveTo(ctx, target); err != nil {
		return 1
	}
	e.logger.Info("history_restored", slog.String("revision", rev.ID), slog.String("path", target))
	fmt.Fprintf(std.out, "restored %s to %s\n", rev.ID, target)
	return 0
}
