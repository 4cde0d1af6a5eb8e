// Package postgres persists character documents. It backs the save/load
// commands and the auto-save hook that snapshots the document after every
// applied mutation.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/document"
)

// ErrNotFound is returned when no saved character matches the given name.
var ErrNotFound = errors.New("character not found")

// Config configures the connection pool.
type Config struct {
	DSN string

	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

// Store is a pgx-backed character repository.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New opens a connection pool and verifies it with a ping.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLife > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLife
	}
	if cfg.MaxConnIdle > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdle
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CharacterMeta is one row of the saved-character listing.
type CharacterMeta struct {
	ID        string
	Name      string
	UpdatedAt time.Time
}

// Save upserts the snapshot under the given save name.
func (s *Store) Save(ctx context.Context, name string, snap document.Snapshot) error {
	profileJSON, err := json.Marshal(snap.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	worldJSON, err := json.Marshal(snap.World)
	if err != nil {
		return fmt.Errorf("encode world entries: %w", err)
	}

	query := `
        INSERT INTO characters (id, name, profile, draft, world)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (name) DO UPDATE
        SET profile = EXCLUDED.profile,
            draft = EXCLUDED.draft,
            world = EXCLUDED.world,
            updated_at = NOW()
    `
	if _, err := s.pool.Exec(ctx, query, uuid.NewString(), name, profileJSON, snap.Draft, worldJSON); err != nil {
		return fmt.Errorf("save character %q: %w", name, err)
	}
	return nil
}

// Load fetches the snapshot saved under the given name.
func (s *Store) Load(ctx context.Context, name string) (document.Snapshot, error) {
	query := `
        SELECT profile, draft, world
        FROM characters
        WHERE name = $1
    `

	var (
		profileJSON []byte
		draft       string
		worldJSON   []byte
	)
	err := s.pool.QueryRow(ctx, query, name).Scan(&profileJSON, &draft, &worldJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return document.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return document.Snapshot{}, fmt.Errorf("load character %q: %w", name, err)
	}

	var snap document.Snapshot
	snap.Draft = draft
	if err := json.Unmarshal(profileJSON, &snap.Profile); err != nil {
		return document.Snapshot{}, fmt.Errorf("decode profile: %w", err)
	}
	if len(worldJSON) > 0 {
		if err := json.Unmarshal(worldJSON, &snap.World); err != nil {
			return document.Snapshot{}, fmt.Errorf("decode world entries: %w", err)
		}
	}
	return snap, nil
}

// List returns saved characters, most recently updated first.
func (s *Store) List(ctx context.Context) ([]CharacterMeta, error) {
	query := `
        SELECT id, name, updated_at
        FROM characters
        ORDER BY updated_at DESC
    `

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var out []CharacterMeta
	for rows.Next() {
		var meta CharacterMeta
		if err := rows.Scan(&meta.ID, &meta.Name, &meta.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan character row: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// Delete removes a saved character.
func (s *Store) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM characters WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete character %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// AutoSaveHook returns a document.ApplyHook persisting the post-mutation
// state under the given save name. Persistence is best effort: a failed save
// is logged, never surfaced to the tool-call path.
func (s *Store) AutoSaveHook(docs *document.Store, name string) document.ApplyHook {
	return func(before document.Snapshot, m document.Mutation) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Save(ctx, name, docs.Snapshot()); err != nil {
			s.logger.Warn("auto-save failed", "name", name, "error", err)
		}
	}
}
