package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS registration_stores (
	store_key      TEXT PRIMARY KEY,
	initialized_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS registrations (
	seq        BIGSERIAL PRIMARY KEY,
	store_key  TEXT NOT NULL,
	id         BIGINT NOT NULL,
	country    TEXT NOT NULL,
	name       TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS registrations_store_key_seq_idx ON registrations (store_key, seq);
`

// PostgresStore keeps one row per registration. The registration_stores row
// for the key is what "the store exists" means.
type PostgresStore struct {
	db   *sql.DB
	key  string
	opts options
}

// OpenPostgres opens a lib/pq connection pool, pings it and applies the schema.
func OpenPostgres(ctx context.Context, url, key string, opts ...Option) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db, key, opts...)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore constructs a PostgreSQL-backed store on an open pool.
func NewPostgresStore(db *sql.DB, key string, opts ...Option) *PostgresStore {
	return &PostgresStore{db: db, key: key, opts: applyOptions(opts)}
}

// EnsureSchema creates the tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) Load(ctx context.Context) (models.Document, error) {
	regs, err := s.List(ctx)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{Registrations: regs}, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, country, name, message, created_at
		FROM registrations
		WHERE store_key = $1
		ORDER BY seq`, s.key)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := []models.Registration{}
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.Country, &reg.Name, &reg.Message, &reg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		reg.Timestamp = reg.Timestamp.UTC()
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return regs, nil
}

func (s *PostgresStore) Append(ctx context.Context, reg models.Registration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO registration_stores (store_key) VALUES ($1) ON CONFLICT (store_key) DO NOTHING`,
		s.key); err != nil {
		return fmt.Errorf("mark store: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO registrations (store_key, id, country, name, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.key, reg.ID, reg.Country, reg.Name, reg.Message, reg.Timestamp.UTC()); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *PostgresStore) Initialize(ctx context.Context, seed models.Document) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin initialize: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO registration_stores (store_key) VALUES ($1) ON CONFLICT (store_key) DO NOTHING`,
		s.key)
	if err != nil {
		return false, fmt.Errorf("mark store: %w", err)
	}
	created, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark store rows: %w", err)
	}
	if created == 0 {
		return false, nil
	}

	if n := len(seed.Registrations); n > 0 {
		ids := make([]int64, n)
		countries := make([]string, n)
		names := make([]string, n)
		messages := make([]string, n)
		timestamps := make([]string, n)
		for i, reg := range seed.Registrations {
			ids[i] = reg.ID
			countries[i] = reg.Country
			names[i] = reg.Name
			messages[i] = reg.Message
			timestamps[i] = reg.Timestamp.UTC().Format(time.RFC3339Nano)
		}

		// Batch insert using unnest; WITH ORDINALITY keeps seed order in seq.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO registrations (store_key, id, country, name, message, created_at)
			SELECT $1, u.id, u.country, u.name, u.message, u.created_at
			FROM unnest($2::bigint[], $3::text[], $4::text[], $5::text[], $6::timestamptz[])
				WITH ORDINALITY AS u(id, country, name, message, created_at, ord)
			ORDER BY u.ord`,
			s.key, pq.Array(ids), pq.Array(countries), pq.Array(names), pq.Array(messages), pq.Array(timestamps))
		if err != nil {
			return false, fmt.Errorf("insert seed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit initialize: %w", err)
	}
	return true, nil
}
