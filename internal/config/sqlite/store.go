// Package sqlite provides a SQLite-based config.Store implementation
// backed by modernc.org/sqlite (pure Go, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"gastrolog/internal/chunker"
	"gastrolog/internal/config"
	"gastrolog/internal/reducer"
)

// Store is a SQLite-based config.Store implementation.
type Store struct {
	db   *sql.DB
	path string
}

var _ config.Store = (*Store)(nil)

// NewStore opens a SQLite database at path and runs migrations.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create config directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the full configuration. Returns nil if repository_settings
// has never been written (Save has never been called).
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT chunker_params, reducer_params, allow_compression FROM repository_settings WHERE id = 1")

	var chunkerJSON, reducerJSON string
	var allowCompression bool
	err := row.Scan(&chunkerJSON, &reducerJSON, &allowCompression)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load repository settings: %w", err)
	}

	var chunkerParams chunker.Params
	if err := json.Unmarshal([]byte(chunkerJSON), &chunkerParams); err != nil {
		return nil, fmt.Errorf("unmarshal chunker params: %w", err)
	}
	var reducerParams reducer.Params
	if err := json.Unmarshal([]byte(reducerJSON), &reducerParams); err != nil {
		return nil, fmt.Errorf("unmarshal reducer params: %w", err)
	}

	databases, err := s.listDatabases(ctx)
	if err != nil {
		return nil, err
	}

	return &config.Config{
		Databases:        databases,
		Chunker:          chunkerParams,
		Reducer:          reducerParams,
		AllowCompression: allowCompression,
	}, nil
}

// Save persists cfg, replacing the previously registered database list and
// repository settings row in a single transaction.
func (s *Store) Save(ctx context.Context, cfg *config.Config) error {
	chunkerJSON, err := json.Marshal(cfg.Chunker)
	if err != nil {
		return fmt.Errorf("marshal chunker params: %w", err)
	}
	reducerJSON, err := json.Marshal(cfg.Reducer)
	if err != nil {
		return fmt.Errorf("marshal reducer params: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO repository_settings (id, chunker_params, reducer_params, allow_compression)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chunker_params = excluded.chunker_params,
			reducer_params = excluded.reducer_params,
			allow_compression = excluded.allow_compression
	`, string(chunkerJSON), string(reducerJSON), cfg.AllowCompression); err != nil {
		return fmt.Errorf("save repository settings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM databases"); err != nil {
		return fmt.Errorf("clear databases: %w", err)
	}
	for _, d := range cfg.Databases {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO databases (id, provider, dataset) VALUES (?, ?, ?)",
			d.ID, d.Provider, d.Dataset); err != nil {
			return fmt.Errorf("save database %q: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) listDatabases(ctx context.Context) ([]config.DatabaseConfig, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, provider, dataset FROM databases ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer rows.Close()

	var out []config.DatabaseConfig
	for rows.Next() {
		var d config.DatabaseConfig
		if err := rows.Scan(&d.ID, &d.Provider, &d.Dataset); err != nil {
			return nil, fmt.Errorf("scan database: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
