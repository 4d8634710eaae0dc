package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS registration_stores (
	store_key      TEXT PRIMARY KEY,
	initialized_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS registrations (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	store_key  TEXT NOT NULL,
	id         INTEGER NOT NULL,
	country    TEXT NOT NULL,
	name       TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS registrations_store_key_seq_idx ON registrations (store_key, seq);
`

// SQLiteStore keeps one row per registration in a local SQLite file.
// Timestamps are stored as Unix milliseconds.
type SQLiteStore struct {
	db   *sql.DB
	key  string
	opts options
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path, key string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path)
	}
	dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, key: key, opts: applyOptions(opts)}, nil
}

// Ping checks the connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (models.Document, error) {
	regs, err := s.List(ctx)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{Registrations: regs}, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, country, name, message, created_at
		FROM registrations
		WHERE store_key = ?
		ORDER BY seq`, s.key)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := []models.Registration{}
	for rows.Next() {
		var (
			reg       models.Registration
			createdAt int64
		)
		if err := rows.Scan(&reg.ID, &reg.Country, &reg.Name, &reg.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		reg.Timestamp = fromMillis(createdAt)
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return regs, nil
}

func (s *SQLiteStore) Append(ctx context.Context, reg models.Registration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := s.markStore(ctx, tx); err != nil {
		return err
	}
	if err := insertSQLite(ctx, tx, s.key, reg); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Initialize(ctx context.Context, seed models.Document) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin initialize: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	created, err := s.markStore(ctx, tx)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}
	for _, reg := range seed.Registrations {
		if err := insertSQLite(ctx, tx, s.key, reg); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit initialize: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) markStore(ctx context.Context, tx *sql.Tx) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO registration_stores (store_key, initialized_at) VALUES (?, ?)`,
		s.key, toMillis(time.Now()))
	if err != nil {
		return false, fmt.Errorf("mark store: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark store rows: %w", err)
	}
	return n > 0, nil
}

func insertSQLite(ctx context.Context, tx *sql.Tx, key string, reg models.Registration) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO registrations (store_key, id, country, name, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		key, reg.ID, reg.Country, reg.Name, reg.Message, toMillis(reg.Timestamp))
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}
