package history

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultKeep = 20

type RecorderOption func(*Recorder)

// WithKeep bounds the revisions kept per path. Zero or less disables pruning.
func WithKeep(keep int) RecorderOption {
	return func(r *Recorder) { r.keep = keep }
}

func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Recorder stores every successful save of a session in a Store.
type Recorder struct {
	store  Store
	keep   int
	logger *slog.Logger
}

func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, keep: DefaultKeep, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores content as the newest revision of path, which is made
// absolute first so the same file is tracked under one key.
func (r *Recorder) Record(ctx context.Context, path string, content []byte, routes int) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("history: resolve %q: %w", path, err)
	}
	ctx, span := tracer.Start(ctx, "history.record",
		trace.WithAttributes(attribute.String("routedit.path", abs), attribute.Int("routedit.routes", routes)))
	defer span.End()

	rev, stored, err := r.store.Record(ctx, Revision{Path: abs, Routes: routes, Content: content})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if !stored {
		r.logger.Debug("history_unchanged", slog.String("path", abs), slog.String("revision", rev.ID))
		return nil
	}
	r.logger.Info("history_recorded",
		slog.String("path", abs),
		slog.String("revision", rev.ID),
		slog.Int("size", rev.Size),
	)

	if r.keep <= 0 {
		return nil
	}
	pruned, err := r.store.Prune(ctx, abs, r.keep)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("history_prune_failed", slog.String("path", abs), slog.Any("err", err))
		return nil
	}
	if pruned > 0 {
		r.logger.Debug("history_pruned", slog.String("path", abs), slog.Int("removed", pruned))
	}
	return nil
}

// Revisions lists the revisions of path, newest first.
func (r *Recorder) Revisions(ctx context.Context, path string, limit int) ([]Revision, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("history: resolve %q: %w", path, err)
	}
	return r.store.List(ctx, ListRequest{Path: abs, Limit: limit})
}
