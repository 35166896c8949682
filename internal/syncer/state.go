package syncer

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Kind names the document type a state row belongs to.
type Kind string

const (
	KindSession  Kind = "session"
	KindTemplate Kind = "template"
)

// StateDB records what has been pushed so unchanged documents are not re-sent.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/sync_state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "sync_state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pushed_documents (
		kind      TEXT NOT NULL,
		id        TEXT NOT NULL,
		hash      TEXT NOT NULL,
		pushed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, id)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}
	return &StateDB{db: db}, nil
}

// IsPushed reports whether the document was pushed with the same hash.
func (s *StateDB) IsPushed(ctx context.Context, kind Kind, id uuid.UUID, hash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pushed_documents WHERE kind = ? AND id = ? AND hash = ?`,
		string(kind), id.String(), hash,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkPushed records that a document was accepted by the server.
func (s *StateDB) MarkPushed(ctx context.Context, kind Kind, id uuid.UUID, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pushed_documents (kind, id, hash) VALUES (?, ?, ?)`,
		string(kind), id.String(), hash,
	)
	return err
}

// Forget drops the record of a document, e.g. after it was deleted remotely.
func (s *StateDB) Forget(ctx context.Context, kind Kind, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pushed_documents WHERE kind = ? AND id = ?`,
		string(kind), id.String(),
	)
	return err
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashDocument computes the SHA-256 hash of v's JSON encoding.
func HashDocument(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
