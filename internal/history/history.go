// Package history keeps the documents written by routedit so earlier
// versions of a file can be listed, inspected and restored.
package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/nuetzliches/routedit/internal/routeconfig"
)

var (
	ErrRevisionNotFound = errors.New("revision not found")
	ErrRevisionExists   = errors.New("revision already exists")
	ErrEmptyPath        = errors.New("history: empty path")
)

const defaultListLimit = 50

var tracer = otel.Tracer("github.com/nuetzliches/routedit/internal/history")

// Revision is one saved version of a document.
type Revision struct {
	ID      string
	Path    string
	Digest  string
	Size    int
	Routes  int
	SavedAt time.Time
	// Content is filled by Get and Record; List leaves it nil.
	Content []byte
}

type ListRequest struct {
	// Path restricts the result to one file when set.
	Path  string
	Limit int
}

// Store persists revisions. Implementations are safe for concurrent use.
type Store interface {
	// Record stores rev unless its digest equals the latest revision of the
	// same path, in which case that revision is returned with stored=false.
	Record(ctx context.Context, rev Revision) (out Revision, stored bool, err error)
	// List returns revisions newest first.
	List(ctx context.Context, req ListRequest) ([]Revision, error)
	Get(ctx context.Context, id string) (Revision, error)
	// Prune deletes all but the newest keep revisions of path and reports
	// how many were removed. A blank path fails with ErrEmptyPath.
	Prune(ctx context.Context, path string, keep int) (int, error)
	Close() error
}

// prepare fills the derived fields of rev before it is stored.
func prepare(rev Revision, now time.Time) (Revision, error) {
	path, err := revisionPath(rev.Path)
	if err != nil {
		return Revision{}, err
	}
	rev.Path = path
	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}
	if rev.SavedAt.IsZero() {
		rev.SavedAt = now
	}
	rev.SavedAt = rev.SavedAt.UTC()
	rev.Size = len(rev.Content)
	rev.Digest = routeconfig.DigestOf(rev.Content).String()
	return rev, nil
}

// revisionPath trims path and rejects a blank one. Revisions are always kept
// per file.
func revisionPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrEmptyPath
	}
	return path, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
