package routeconfig

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/nuetzliches/routedit/internal/routeconfig")

// Load reads and parses the document at path. An unreadable path yields
// *IOError; content problems yield *FormatError or Report warnings.
func Load(ctx context.Context, path string) (*Document, Report, error) {
	_, span := tracer.Start(ctx, "routeconfig.Load")
	defer span.End()
	span.SetAttributes(attribute.String("routeconfig.path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		err = &IOError{Op: "read", Path: path, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, Report{}, err
	}
	doc, rep, err := Parse(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, rep, err
	}
	span.SetAttributes(
		attribute.Int("routeconfig.routes", len(doc.Routes)),
		attribute.Bool("routeconfig.tolerant", rep.Tolerant),
		attribute.Int("routeconfig.warnings", len(rep.Warnings)),
	)
	return doc, rep, nil
}

// Save formats doc and replaces path atomically: the text goes to a
// temporary file in the same directory which is synced and renamed over the
// target. Readers see either the old or the new file, never a prefix.
func Save(ctx context.Context, path string, doc *Document) error {
	_, span := tracer.Start(ctx, "routeconfig.Save")
	defer span.End()
	span.SetAttributes(attribute.String("routeconfig.path", path))

	data, err := Format(doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "format failed")
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		err = &IOError{Op: "write", Path: path, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return err
	}
	span.SetAttributes(attribute.Int("routeconfig.bytes", len(data)))
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	mode := fs.FileMode(0o644)
	if st, statErr := os.Stat(path); statErr == nil {
		if !st.Mode().IsRegular() {
			return fmt.Errorf("not a regular file")
		}
		mode = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// FileStore is the filesystem-backed persistence used by editing sessions.
type FileStore struct {
	Logger *slog.Logger
}

func (s FileStore) Load(ctx context.Context, path string) (*Document, Report, error) {
	doc, rep, err := Load(ctx, path)
	if err != nil {
		s.logger().Warn("config_load_failed", slog.String("path", path), slog.Any("err", err))
		return nil, rep, err
	}
	for _, w := range rep.Warnings {
		s.logger().Warn("config_load_warning", slog.String("path", path), slog.String("warning", w))
	}
	s.logger().Info("config_loaded",
		slog.String("path", path),
		slog.Int("routes", len(doc.Routes)),
		slog.Bool("tolerant", rep.Tolerant),
	)
	return doc, rep, nil
}

func (s FileStore) Save(ctx context.Context, path string, doc *Document) error {
	if err := Save(ctx, path, doc); err != nil {
		s.logger().Error("config_save_failed", slog.String("path", path), slog.Any("err", err))
		return err
	}
	s.logger().Info("config_saved", slog.String("path", path), slog.Int("routes", len(doc.Routes)))
	return nil
}

func (s FileStore) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
