package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	_ "modernc.org/sqlite"

	"chatwars.ai/internal/persistence/store"
)

// Store is the durable store.Store backed by a single SQLite file. Records
// are kept as JSON text so the database can be inspected with any SQLite
// client.
type Store struct {
	db   *sql.DB
	once sync.Once
}

var _ store.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer connection: SQLite serializes writers anyway and this keeps
	// "database is locked" out of the engine's error path.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// FULL: records are the source of truth, not a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}

// DB exposes the handle for read-only tooling.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.In("store").With("key", key).Wrapf(err, "get record")
	}
	return []byte(v), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return store.ErrNilValue
	}
	return s.Apply(ctx, []store.Op{{Key: key, Value: value}})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key=?`, key); err != nil {
		return oops.In("store").With("key", key).Wrapf(err, "delete record")
	}
	return nil
}

func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM records WHERE substr(key, 1, ?) = ? ORDER BY key`,
		len(prefix), prefix)
	if err != nil {
		return nil, oops.In("store").With("prefix", prefix).Wrapf(err, "list keys")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, oops.In("store").With("prefix", prefix).Wrapf(err, "scan key")
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("store").With("prefix", prefix).Wrapf(err, "list keys")
	}
	return out, nil
}

func (s *Store) Apply(ctx context.Context, ops []store.Op) error {
	if len(ops) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oops.In("store").Wrapf(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO records(key,kind,value,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return oops.In("store").Wrapf(err, "prepare upsert")
	}
	defer upsert.Close()

	for _, op := range ops {
		if op.IsDelete() {
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE key=?`, op.Key); err != nil {
				return oops.In("store").With("key", op.Key).Wrapf(err, "delete record")
			}
			continue
		}
		if _, err := upsert.ExecContext(ctx, op.Key, kindOf(op.Key), string(op.Value), now); err != nil {
			return oops.In("store").With("key", op.Key).Wrapf(err, "put record")
		}
	}
	if err := tx.Commit(); err != nil {
		return oops.In("store").With("ops", len(ops)).Wrapf(err, "commit")
	}
	return nil
}

func kindOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
