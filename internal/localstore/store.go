// Package localstore keeps a single-user logbook in a local SQLite file.
// Sessions and templates are stored as JSON documents next to the columns
// needed for filtering; deleted templates leave a tombstone so the syncer
// can propagate the delete.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/treningslogg/internal/logbook"
	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// LocalUserID is the only user a local logbook has.
const LocalUserID = 1

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	date_unix   INTEGER NOT NULL,
	category    TEXT NOT NULL,
	external_id TEXT NOT NULL DEFAULT '',
	doc         TEXT NOT NULL,
	updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS sessions_external_id ON sessions (external_id) WHERE external_id != '';
CREATE INDEX IF NOT EXISTS sessions_date ON sessions (date_unix);

CREATE TABLE IF NOT EXISTS templates (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	name       TEXT NOT NULL,
	doc        TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS template_tombstones (
	id         TEXT PRIMARY KEY,
	deleted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is a SQLite-backed logbook.Store.
type Store struct {
	db *sql.DB
}

var _ logbook.Store = (*Store)(nil)

// Open opens (or creates) the logbook database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating logbook dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening logbook db: %w", err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logbook tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetOrCreateUser always returns LocalUserID.
func (s *Store) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	return LocalUserID, nil
}

// ListSessions returns sessions matching the filter, oldest first.
func (s *Store) ListSessions(ctx context.Context, userID int, filter models.SessionFilter) ([]models.WorkoutSession, error) {
	query := `SELECT doc FROM sessions WHERE 1=1`
	var args []any
	if filter.Category != nil {
		query += ` AND category = ?`
		args = append(args, string(*filter.Category))
	}
	if !filter.Start.IsZero() {
		query += ` AND date_unix >= ?`
		args = append(args, filter.Start.UnixNano())
	}
	if !filter.End.IsZero() {
		query += ` AND date_unix < ?`
		args = append(args, filter.End.UnixNano())
	}
	query += ` ORDER BY date_unix ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutSession
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		var session models.WorkoutSession
		if err := json.Unmarshal([]byte(doc), &session); err != nil {
			return nil, fmt.Errorf("decoding session: %w", err)
		}
		result = append(result, session)
	}
	return result, rows.Err()
}

// GetSession returns a single session.
func (s *Store) GetSession(ctx context.Context, userID int, id uuid.UUID) (models.WorkoutSession, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM sessions WHERE id = ?`, id.String()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WorkoutSession{}, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.WorkoutSession{}, fmt.Errorf("querying session: %w", err)
	}
	var session models.WorkoutSession
	if err := json.Unmarshal([]byte(doc), &session); err != nil {
		return models.WorkoutSession{}, fmt.Errorf("decoding session: %w", err)
	}
	return session, nil
}

// SaveSession inserts or replaces a session by id.
func (s *Store) SaveSession(ctx context.Context, userID int, session models.WorkoutSession) (bool, error) {
	doc, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("encoding session: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if session.ExternalID != "" {
		var owner string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM sessions WHERE external_id = ?`, session.ExternalID,
		).Scan(&owner)
		switch {
		case err == nil && owner != session.ID.String():
			return false, nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return false, fmt.Errorf("checking external id: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, date_unix, category, external_id, doc, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (id) DO UPDATE SET
			date_unix = excluded.date_unix, category = excluded.category,
			external_id = excluded.external_id, doc = excluded.doc, updated_at = CURRENT_TIMESTAMP`,
		session.ID.String(), session.Date.UnixNano(), string(session.Type.Category),
		session.ExternalID, string(doc),
	)
	if err != nil {
		return false, fmt.Errorf("saving session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing session: %w", err)
	}
	return true, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, userID int, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListTemplates returns all templates or those of one category.
func (s *Store) ListTemplates(ctx context.Context, userID int, category *models.Category) ([]models.WorkoutTemplate, error) {
	query := `SELECT doc FROM templates`
	var args []any
	if category != nil {
		query += ` WHERE category = ?`
		args = append(args, string(*category))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutTemplate
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		var t models.WorkoutTemplate
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, fmt.Errorf("decoding template: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// SaveTemplate inserts or replaces a template by id.
func (s *Store) SaveTemplate(ctx context.Context, userID int, t models.WorkoutTemplate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveTemplate(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func saveTemplate(ctx context.Context, tx *sql.Tx, t models.WorkoutTemplate) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding template: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO templates (id, category, name, doc, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (id) DO UPDATE SET
			category = excluded.category, name = excluded.name,
			doc = excluded.doc, updated_at = CURRENT_TIMESTAMP`,
		t.ID.String(), string(t.Category), t.Name, string(doc),
	)
	if err != nil {
		return fmt.Errorf("saving template %q: %w", t.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM template_tombstones WHERE id = ?`, t.ID.String()); err != nil {
		return fmt.Errorf("clearing tombstone: %w", err)
	}
	return nil
}

// DeleteTemplate removes a template and records a tombstone.
func (s *Store) DeleteTemplate(ctx context.Context, userID int, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("template %s: %w", id, models.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO template_tombstones (id) VALUES (?)`, id.String(),
	); err != nil {
		return fmt.Errorf("recording tombstone: %w", err)
	}
	return tx.Commit()
}

// SeedTemplates stores templates once per database.
func (s *Store) SeedTemplates(ctx context.Context, userID int, templates []models.WorkoutTemplate) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('templates_seeded', ?)`,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("marking templates seeded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for _, t := range templates {
		if err := saveTemplate(ctx, tx, t); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing seed: %w", err)
	}
	return true, nil
}

// TemplateTombstones returns the ids of templates deleted locally.
func (s *Store) TemplateTombstones(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM template_tombstones ORDER BY deleted_at`)
	if err != nil {
		return nil, fmt.Errorf("querying tombstones: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning tombstone: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing tombstone id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClearTombstone forgets a propagated delete.
func (s *Store) ClearTombstone(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM template_tombstones WHERE id = ?`, id.String())
	return err
}
