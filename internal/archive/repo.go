package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/models"
)

// TrackPoint is one archived position.
type TrackPoint struct {
	RecordedAt   time.Time `json:"recorded_at"`
	ObjectID     uint32    `json:"object_id"`
	IsUser       bool      `json:"is_user"`
	Category     string    `json:"category"`
	Registration string    `json:"registration"`
	Model        string    `json:"model"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	AltFt        *float64  `json:"alt_ft,omitempty"`
	HeadingDeg   *float64  `json:"heading_deg,omitempty"`
	GroundSpeed  *float64  `json:"ground_speed_kts,omitempty"`
}

// ModelFile is the last known load outcome of a model file.
type ModelFile struct {
	Path      string    `json:"path"`
	Found     bool      `json:"found"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Offer queues snap for archiving if the interval since the last archived
// snapshot has passed. It never blocks; Run performs the write.
func (db *DB) Offer(snap models.Snapshot) bool {
	now := db.now()

	db.mu.Lock()
	if !db.last.IsZero() && now.Sub(db.last) < db.interval {
		db.mu.Unlock()
		return false
	}
	db.last = now
	s := snap.Clone()
	db.pending = &s
	db.mu.Unlock()

	select {
	case db.wake <- struct{}{}:
	default:
	}
	return true
}

// Run writes offered snapshots until ctx is done.
func (db *DB) Run(ctx context.Context, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-db.wake:
		}

		db.mu.Lock()
		snap, at := db.pending, db.last
		db.pending = nil
		db.mu.Unlock()
		if snap == nil {
			continue
		}

		if err := db.Insert(at, *snap); err != nil {
			logger.Warn("archive: insert failed", slog.String("error", err.Error()))
		}
	}
}

// Insert stores every subject of snap within one transaction.
func (db *DB) Insert(at time.Time, snap models.Snapshot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("archive: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.Prepare(`
		INSERT INTO track_points
			(recorded_at, object_id, is_user, category, registration, model, lat, lon, alt_ft, heading_deg, ground_speed_kts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("archive: prepare insert: %w", err)
	}
	defer stmt.Close()

	insert := func(ac *models.Aircraft, user bool) error {
		_, err := stmt.Exec(at.UTC(), ac.ObjectID, user, ac.Category.String(), ac.Registration, ac.Model,
			ac.Position.Lat, ac.Position.Lon,
			nullable(ac.Position.AltFt), nullable(ac.HeadingTrueDeg), nullable(ac.GroundSpeedKts))
		return err
	}

	if err := insert(&snap.User.Aircraft, true); err != nil {
		return fmt.Errorf("archive: insert user: %w", err)
	}
	for i := range snap.AI {
		if err := insert(&snap.AI[i], false); err != nil {
			return fmt.Errorf("archive: insert traffic: %w", err)
		}
	}
	return tx.Commit()
}

// RecordModel upserts the load outcome of a model file.
func (db *DB) RecordModel(path string, found bool) error {
	_, err := db.conn.Exec(`
		INSERT INTO model_files (path, found, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			found      = excluded.found,
			updated_at = excluded.updated_at
	`, path, found, db.now().UTC())
	if err != nil {
		return fmt.Errorf("archive: record model: %w", err)
	}
	return nil
}

// Track returns the most recent points for a registration, newest first. An
// empty registration selects the user aircraft.
func (db *DB) Track(registration string, limit int) ([]TrackPoint, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := `
		SELECT recorded_at, object_id, is_user, category, registration, model, lat, lon, alt_ft, heading_deg, ground_speed_kts
		FROM track_points WHERE registration = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`
	args := []any{registration, limit}
	if registration == "" {
		query = `
		SELECT recorded_at, object_id, is_user, category, registration, model, lat, lon, alt_ft, heading_deg, ground_speed_kts
		FROM track_points WHERE is_user = 1 ORDER BY recorded_at DESC, id DESC LIMIT ?`
		args = []any{limit}
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: track: %w", err)
	}
	defer rows.Close()

	var out []TrackPoint
	for rows.Next() {
		var p TrackPoint
		if err := rows.Scan(&p.RecordedAt, &p.ObjectID, &p.IsUser, &p.Category, &p.Registration, &p.Model,
			&p.Lat, &p.Lon, &p.AltFt, &p.HeadingDeg, &p.GroundSpeed); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ModelFiles lists recorded model file outcomes, most recent first.
func (db *DB) ModelFiles(limit int) ([]ModelFile, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := db.conn.Query(`SELECT path, found, updated_at FROM model_files ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: model files: %w", err)
	}
	defer rows.Close()

	var out []ModelFile
	for rows.Next() {
		var m ModelFile
		if err := rows.Scan(&m.Path, &m.Found, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// nullable stores unavailable values as NULL.
func nullable(v float32) any {
	if v == models.InvalidFloat {
		return nil
	}
	return float64(v)
}
