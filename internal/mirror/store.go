// Package mirror persists the last selection snapshot per surface so a
// reloaded surface can restore what the user had selected. It is a
// bounded cache, not a history: one row per surface, expired after a TTL.
package mirror

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/subgloss/subgloss/internal/selection"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DefaultTTL bounds how long a mirrored snapshot stays restorable.
const DefaultTTL = time.Hour

// Open opens sqlite with sensible defaults and applies migrations.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	if err == migrate.ErrNoChange {
		return nil
	}
	return err
}

// Store is the snapshot mirror over one sqlite database.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewStore wraps db with the given TTL; ttl <= 0 means DefaultTTL.
func NewStore(db *sql.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// SetClock replaces the time source (tests).
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Save upserts the snapshot for a surface, stamping it now.
func (s *Store) Save(ctx context.Context, surfaceID string, snap selection.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("mirror: encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (surface_id, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(surface_id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		surfaceID, string(payload), s.now().UTC())
	if err != nil {
		return fmt.Errorf("mirror: save snapshot: %w", err)
	}
	return nil
}

// Load returns the surface's mirrored snapshot if one exists and has not
// expired. Expired rows are deleted on the way out.
func (s *Store) Load(ctx context.Context, surfaceID string) (selection.Snapshot, bool, error) {
	var payload string
	var savedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, saved_at FROM snapshots WHERE surface_id = ?`, surfaceID).
		Scan(&payload, &savedAt)
	if err == sql.ErrNoRows {
		return selection.Snapshot{}, false, nil
	}
	if err != nil {
		return selection.Snapshot{}, false, fmt.Errorf("mirror: load snapshot: %w", err)
	}
	if s.now().UTC().Sub(savedAt) > s.ttl {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE surface_id = ?`, surfaceID)
		return selection.Snapshot{}, false, nil
	}
	var snap selection.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return selection.Snapshot{}, false, fmt.Errorf("mirror: decode snapshot: %w", err)
	}
	return snap, true, nil
}

// Delete removes a surface's mirrored snapshot.
func (s *Store) Delete(ctx context.Context, surfaceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE surface_id = ?`, surfaceID)
	return err
}

// Sweep deletes every expired row and returns how many went.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.ttl)
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE saved_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mirror: sweep: %w", err)
	}
	return res.RowsAffected()
}
