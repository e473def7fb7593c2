// Package scenes provides the SQLite-backed scene store: saved routing
// presets and their per-scene CEC configuration.
package scenes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/renholt/crossbar/internal/apperr"
	"github.com/renholt/crossbar/internal/cec"
	"github.com/renholt/crossbar/internal/checksum"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS scenes (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	routing    TEXT NOT NULL DEFAULT '{}',
	cec_config TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_scenes_name ON scenes(name);
`

// Scene is a saved routing preset.
type Scene struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Routing   map[int]int      `json:"routing"`
	CecConfig *cec.SceneConfig `json:"cec_config,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Store defines the scene persistence operations. Consumers should depend
// on this interface rather than the concrete *DB type to facilitate testing
// with mocks.
type Store interface {
	Create(ctx context.Context, name string, routing map[int]int) (*Scene, error)
	Get(ctx context.Context, id string) (*Scene, error)
	List(ctx context.Context) ([]Scene, error)
	Delete(ctx context.Context, id string) error
	GetCecConfig(ctx context.Context, id string) (*cec.SceneConfig, error)
	CecConfigChecksum(ctx context.Context, id string) (string, error)
	UpdateCecConfig(ctx context.Context, id string, cfg *cec.SceneConfig, ifMatch string) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// DB wraps a sql.DB with scene-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("scenes: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("scenes: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("scenes: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Create inserts a new scene with a generated ID.
func (db *DB) Create(ctx context.Context, name string, routing map[int]int) (*Scene, error) {
	if routing == nil {
		routing = map[int]int{}
	}
	routingJSON, err := json.Marshal(routing)
	if err != nil {
		return nil, fmt.Errorf("scenes: marshal routing: %w", err)
	}
	now := time.Now().UTC()
	sc := &Scene{
		ID:        uuid.NewString(),
		Name:      name,
		Routing:   routing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO scenes (id, name, routing, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, sc.ID, sc.Name, string(routingJSON), now, now)
	if err != nil {
		return nil, fmt.Errorf("scenes: insert: %w", err)
	}
	return sc, nil
}

// Get returns a single scene by ID.
func (db *DB) Get(ctx context.Context, id string) (*Scene, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, routing, cec_config, created_at, updated_at
		FROM scenes WHERE id = ?
	`, id)
	return scanScene(row)
}

// List returns all scenes ordered by name.
func (db *DB) List(ctx context.Context) ([]Scene, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, routing, cec_config, created_at, updated_at
		FROM scenes ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("scenes: list: %w", err)
	}
	defer rows.Close()

	out := []Scene{}
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// Delete removes a scene.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("scenes: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// GetCecConfig returns the scene's stored CEC config, or nil when the scene
// exists but has none.
func (db *DB) GetCecConfig(ctx context.Context, id string) (*cec.SceneConfig, error) {
	raw, err := db.cecConfigRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeConfig(raw)
}

// CecConfigChecksum returns the checksum callers pass back via If-Match for
// optimistic concurrency on config updates. Empty config yields the digest
// of the empty string.
func (db *DB) CecConfigChecksum(ctx context.Context, id string) (string, error) {
	raw, err := db.cecConfigRaw(ctx, id)
	if err != nil {
		return "", err
	}
	return checksum.Sum([]byte(raw)), nil
}

// UpdateCecConfig stores a new CEC config. A non-empty ifMatch must equal
// the checksum of the currently stored config or the update is rejected
// with ErrConflict.
func (db *DB) UpdateCecConfig(ctx context.Context, id string, cfg *cec.SceneConfig, ifMatch string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("scenes: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var current string
	err = tx.QueryRowContext(ctx, `SELECT cec_config FROM scenes WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("scenes: read cec config: %w", err)
	}
	if ifMatch != "" && ifMatch != checksum.Sum([]byte(current)) {
		return apperr.ErrConflict
	}

	encoded := ""
	if cfg != nil {
		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("scenes: marshal cec config: %w", err)
		}
		encoded = string(data)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE scenes SET cec_config = ?, updated_at = ? WHERE id = ?
	`, encoded, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("scenes: update cec config: %w", err)
	}
	return tx.Commit()
}

func (db *DB) cecConfigRaw(ctx context.Context, id string) (string, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT cec_config FROM scenes WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("scenes: read cec config: %w", err)
	}
	return raw, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScene(row rowScanner) (*Scene, error) {
	var sc Scene
	var routingJSON, configJSON string
	err := row.Scan(&sc.ID, &sc.Name, &routingJSON, &configJSON, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scenes: scan: %w", err)
	}
	if err := json.Unmarshal([]byte(routingJSON), &sc.Routing); err != nil {
		return nil, fmt.Errorf("scenes: decode routing: %w", err)
	}
	cfg, err := decodeConfig(configJSON)
	if err != nil {
		return nil, err
	}
	sc.CecConfig = cfg
	return &sc, nil
}

func decodeConfig(raw string) (*cec.SceneConfig, error) {
	if raw == "" {
		return nil, nil
	}
	var cfg cec.SceneConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("scenes: decode cec config: %w", err)
	}
	return &cfg, nil
}
