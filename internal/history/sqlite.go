package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite"
)

const schemaVersion = 2

const schemaV1 = `
CREATE TABLE IF NOT EXISTS revisions (
  seq        INTEGER PRIMARY KEY AUTOINCREMENT,
  id         TEXT NOT NULL UNIQUE,
  path       TEXT NOT NULL,
  digest     TEXT NOT NULL,
  size       INTEGER NOT NULL,
  routes     INTEGER NOT NULL,
  saved_at   INTEGER NOT NULL,
  content    BLOB NOT NULL
);
`

const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_revisions_path_saved
  ON revisions(path, saved_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS idx_revisions_saved
  ON revisions(saved_at DESC, seq DESC);
`

type SQLiteOption func(*SQLiteStore)

func WithSQLiteNowFunc(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// SQLiteStore keeps revisions in a local SQLite file. Content is stored
// zstd-compressed.
type SQLiteStore struct {
	db    *sql.DB
	nowFn func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("empty db path")
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:    db,
		nowFn: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	ctx := context.Background()

	var journalMode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return fmt.Errorf("sqlite: set journal_mode=wal: %w", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		return fmt.Errorf("sqlite: journal_mode=%q, want wal", journalMode)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA synchronous=FULL;"); err != nil {
		return fmt.Errorf("sqlite: set synchronous=full: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
		return fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	return s.migrate(ctx)
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE;"); err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		_, _ = conn.ExecContext(ctx, "ROLLBACK;")
	}()

	if _, err := conn.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER NOT NULL
);
`); err != nil {
		return fmt.Errorf("sqlite: init migrations table: %w", err)
	}

	current, hasVersion, err := readSchemaVersion(ctx, conn)
	if err != nil {
		return err
	}
	if current > schemaVersion {
		return fmt.Errorf("sqlite: schema_version=%d, want <=%d", current, schemaVersion)
	}

	for v := current + 1; v <= schemaVersion; v++ {
		switch v {
		case 1:
			if _, err := conn.ExecContext(ctx, schemaV1); err != nil {
				return fmt.Errorf("sqlite: migrate v1: %w", err)
			}
		case 2:
			if _, err := conn.ExecContext(ctx, schemaV2); err != nil {
				return fmt.Errorf("sqlite: migrate v2: %w", err)
			}
		default:
			return fmt.Errorf("sqlite: unknown migration %d", v)
		}
	}

	if !hasVersion || current != schemaVersion {
		if err := writeSchemaVersion(ctx, conn, schemaVersion); err != nil {
			return err
		}
	}

	if _, err := conn.ExecContext(ctx, "COMMIT;"); err != nil {
		return err
	}
	committed = true
	return nil
}

func readSchemaVersion(ctx context.Context, conn *sql.Conn) (int, bool, error) {
	var v int
	err := conn.QueryRowContext(ctx, `SELECT version FROM schema_migrations LIMIT 1;`).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("sqlite: read schema_version: %w", err)
	}
	return v, true, nil
}

func writeSchemaVersion(ctx context.Context, conn *sql.Conn, v int) error {
	if _, err := conn.ExecContext(ctx, `INSERT OR REPLACE INTO schema_migrations(rowid, version) VALUES (1, ?);`, v); err != nil {
		return fmt.Errorf("sqlite: write schema_version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Record(ctx context.Context, rev Revision) (Revision, bool, error) {
	rev, err := prepare(rev, s.nowFn())
	if err != nil {
		return Revision{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Revision{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	latest, err := scanRevision(tx.QueryRowContext(ctx, `
SELECT id, path, digest, size, routes, saved_at, content
FROM revisions
WHERE path = ?
ORDER BY saved_at DESC, seq DESC
LIMIT 1;`, rev.Path), true)
	switch {
	case err == nil && latest.Digest == rev.Digest:
		return latest, false, nil
	case err != nil && !errors.Is(err, ErrRevisionNotFound):
		return Revision{}, false, err
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO revisions (id, path, digest, size, routes, saved_at, content)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
		rev.ID, rev.Path, rev.Digest, rev.Size, rev.Routes, rev.SavedAt.UnixNano(), compress(rev.Content))
	if err != nil {
		if isSQLiteConstraintError(err) {
			return Revision{}, false, ErrRevisionExists
		}
		return Revision{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Revision{}, false, err
	}
	return copyRevision(rev, true), true, nil
}

func (s *SQLiteStore) List(ctx context.Context, req ListRequest) ([]Revision, error) {
	limit := normalizeLimit(req.Limit)
	path := strings.TrimSpace(req.Path)

	var (
		rows *sql.Rows
		err  error
	)
	if path == "" {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, path, digest, size, routes, saved_at
FROM revisions
ORDER BY saved_at DESC, seq DESC
LIMIT ?;`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, path, digest, size, routes, saved_at
FROM revisions
WHERE path = ?
ORDER BY saved_at DESC, seq DESC
LIMIT ?;`, path, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		rev, err := scanRevision(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Revision, error) {
	return scanRevision(s.db.QueryRowContext(ctx, `
SELECT id, path, digest, size, routes, saved_at, content
FROM revisions
WHERE id = ?;`, strings.TrimSpace(id)), true)
}

func (s *SQLiteStore) Prune(ctx context.Context, path string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	path, err := revisionPath(path)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM revisions
WHERE path = ?
  AND seq NOT IN (
    SELECT seq FROM revisions
    WHERE path = ?
    ORDER BY saved_at DESC, seq DESC
    LIMIT ?
  );`, path, path, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRevision reads one row in the column order used by the queries above.
// Rows with content carry it zstd-compressed.
func scanRevision(row rowScanner, withContent bool) (Revision, error) {
	var (
		rev     Revision
		savedAt int64
		blob    []byte
	)
	dest := []any{&rev.ID, &rev.Path, &rev.Digest, &rev.Size, &rev.Routes, &savedAt}
	if withContent {
		dest = append(dest, &blob)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Revision{}, ErrRevisionNotFound
		}
		return Revision{}, err
	}
	rev.SavedAt = time.Unix(0, savedAt).UTC()
	if withContent {
		content, err := decompress(blob, rev.Size)
		if err != nil {
			return Revision{}, err
		}
		rev.Content = content
	}
	return rev, nil
}

func isSQLiteConstraintError(err error) bool {
	var sqliteErr *sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// Extended sqlite result codes include base code in the lower 8 bits.
	const sqliteConstraintBase = 19
	return sqliteErr.Code()&0xff == sqliteConstraintBase
}
