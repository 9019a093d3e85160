package history

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresOption func(*PostgresStore)

func WithPostgresNowFunc(now func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// PostgresStore shares revision history between machines.
type PostgresStore struct {
	db    *sql.DB
	nowFn func() time.Time
}

var _ Store = (*PostgresStore)(nil)

const postgresSchemaV1 = `
CREATE TABLE IF NOT EXISTS routedit_revisions (
  seq      BIGSERIAL PRIMARY KEY,
  id       TEXT NOT NULL UNIQUE,
  path     TEXT NOT NULL,
  digest   TEXT NOT NULL,
  size     INTEGER NOT NULL,
  routes   INTEGER NOT NULL,
  saved_at TIMESTAMPTZ NOT NULL,
  content  BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_routedit_revisions_path_saved
  ON routedit_revisions(path, saved_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS idx_routedit_revisions_saved
  ON routedit_revisions(saved_at DESC, seq DESC);
`

func NewPostgresStore(dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty postgres dsn")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &PostgresStore{
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

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) init() error {
	_, err := s.db.ExecContext(context.Background(), postgresSchemaV1)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, rev Revision) (Revision, bool, error) {
	rev, err := prepare(rev, s.nowFn())
	if err != nil {
		return Revision{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Revision{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize writers of the same path so the digest check holds.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1));`, rev.Path); err != nil {
		return Revision{}, false, err
	}

	latest, err := scanPostgresRevision(tx.QueryRowContext(ctx, `
SELECT id, path, digest, size, routes, saved_at, content
FROM routedit_revisions
WHERE path = $1
ORDER BY saved_at DESC, seq DESC
LIMIT 1;`, rev.Path), true)
	switch {
	case err == nil && latest.Digest == rev.Digest:
		return latest, false, nil
	case err != nil && !errors.Is(err, ErrRevisionNotFound):
		return Revision{}, false, err
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO routedit_revisions (id, path, digest, size, routes, saved_at, content)
VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		rev.ID, rev.Path, rev.Digest, rev.Size, rev.Routes, rev.SavedAt, compress(rev.Content))
	if err != nil {
		return Revision{}, false, mapPostgresInsertError(err)
	}
	if err := tx.Commit(); err != nil {
		return Revision{}, false, err
	}
	return copyRevision(rev, true), true, nil
}

func (s *PostgresStore) List(ctx context.Context, req ListRequest) ([]Revision, error) {
	limit := normalizeLimit(req.Limit)
	path := strings.TrimSpace(req.Path)

	rows, err := s.db.QueryContext(ctx, `
SELECT id, path, digest, size, routes, saved_at
FROM routedit_revisions
WHERE ($1 = '' OR path = $1)
ORDER BY saved_at DESC, seq DESC
LIMIT $2;`, path, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		rev, err := scanPostgresRevision(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Revision, error) {
	return scanPostgresRevision(s.db.QueryRowContext(ctx, `
SELECT id, path, digest, size, routes, saved_at, content
FROM routedit_revisions
WHERE id = $1;`, strings.TrimSpace(id)), true)
}

func (s *PostgresStore) Prune(ctx context.Context, path string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	path, err := revisionPath(path)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM routedit_revisions
WHERE path = $1
  AND seq NOT IN (
    SELECT seq FROM routedit_revisions
    WHERE path = $1
    ORDER BY saved_at DESC, seq DESC
    LIMIT $2
  );`, path, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanPostgresRevision(row rowScanner, withContent bool) (Revision, error) {
	var (
		rev  Revision
		blob []byte
	)
	dest := []any{&rev.ID, &rev.Path, &rev.Digest, &rev.Size, &rev.Routes, &rev.SavedAt}
	if withContent {
		dest = append(dest, &blob)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Revision{}, ErrRevisionNotFound
		}
		return Revision{}, err
	}
	rev.SavedAt = rev.SavedAt.UTC()
	if withContent {
		content, err := decompress(blob, rev.Size)
		if err != nil {
			return Revision{}, err
		}
		rev.Content = content
	}
	return rev, nil
}

func mapPostgresInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrRevisionExists
	}
	return err
}
