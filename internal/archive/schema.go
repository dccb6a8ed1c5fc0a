// Package archive keeps a throttled SQLite log of published positions and of
// model file load outcomes.
package archive

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/raido/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS track_points (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at      DATETIME NOT NULL,
	object_id        INTEGER NOT NULL,
	is_user          INTEGER NOT NULL DEFAULT 0,
	category         TEXT NOT NULL DEFAULT '',
	registration     TEXT NOT NULL DEFAULT '',
	model            TEXT NOT NULL DEFAULT '',
	lat              REAL NOT NULL,
	lon              REAL NOT NULL,
	alt_ft           REAL,
	heading_deg      REAL,
	ground_speed_kts REAL
);

CREATE INDEX IF NOT EXISTS idx_track_points_registration ON track_points(registration, recorded_at);

CREATE TABLE IF NOT EXISTS model_files (
	path       TEXT PRIMARY KEY,
	found      INTEGER NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// DefaultInterval is the minimum spacing between archived snapshots.
const DefaultInterval = 5 * time.Second

// DB wraps a sql.DB with archive-specific operations.
type DB struct {
	conn     *sql.DB
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	last    time.Time
	pending *models.Snapshot
	wake    chan struct{}
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, interval time.Duration) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("archive: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("archive: apply schema: %w", err)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &DB{
		conn:     conn,
		interval: interval,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
