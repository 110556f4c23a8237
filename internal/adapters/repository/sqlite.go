package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/okian/readcoach/pkg/logger"
	"github.com/okian/readcoach/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	owner      TEXT NOT NULL,
	key        TEXT NOT NULL,
	body       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE(collection, owner, key)
);
CREATE INDEX IF NOT EXISTS documents_owner ON documents(collection, owner, seq);
`

// SQLiteStore is a DocumentStore backed by a single sqlite table.
type SQLiteStore struct {
	db     *sqlx.DB
	opts   options
	logger logger.Logger
}

var _ DocumentStore = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	// sqlite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	o.logger.Info(ctx, "sqlite store opened", logger.String("path", path))
	return &SQLiteStore{db: db, opts: o, logger: o.logger}, nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// Get returns the stored body or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, collection, owner, key string) ([]byte, error) {
	defer observe("get", time.Now())
	var body []byte
	err := s.db.GetContext(ctx, &body,
		`SELECT body FROM documents WHERE collection = ? AND owner = ? AND key = ?`,
		collection, owner, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return body, nil
}

// Put upserts the body under key.
func (s *SQLiteStore) Put(ctx context.Context, collection, owner, key string, body []byte) error {
	defer observe("put", time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, owner, key, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, owner, key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		collection, owner, key, body, s.opts.now().UTC())
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

// Create inserts body, mapping a primary key clash to ErrConflict.
func (s *SQLiteStore) Create(ctx context.Context, collection, owner, key string, body []byte) error {
	defer observe("create", time.Now())
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, owner, key, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, owner, key) DO NOTHING`,
		collection, owner, key, body, s.opts.now().UTC())
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, key, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, collection, owner, key string) error {
	defer observe("delete", time.Now())
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND owner = ? AND key = ?`,
		collection, owner, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// List returns every body the owner has in collection in insertion order.
func (s *SQLiteStore) List(ctx context.Context, collection, owner string) ([][]byte, error) {
	defer observe("list", time.Now())
	var bodies [][]byte
	err := s.db.SelectContext(ctx, &bodies,
		`SELECT body FROM documents WHERE collection = ? AND owner = ? ORDER BY seq`,
		collection, owner)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return bodies, nil
}

// Owners returns the distinct owners with data in collection, sorted.
func (s *SQLiteStore) Owners(ctx context.Context, collection string) ([]string, error) {
	defer observe("owners", time.Now())
	var owners []string
	err := s.db.SelectContext(ctx, &owners,
		`SELECT DISTINCT owner FROM documents WHERE collection = ? ORDER BY owner`, collection)
	if err != nil {
		return nil, fmt.Errorf("owners %s: %w", collection, err)
	}
	return owners, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
