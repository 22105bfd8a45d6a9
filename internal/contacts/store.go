package contacts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	phone    TEXT PRIMARY KEY,
	name     TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL
);`

// SQLiteStore persists contacts in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create contacts directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open contacts db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init contacts schema: %w", err)
	}
	slog.Info("contacts database opened", "path", path)
	return &SQLiteStore{db: db}, nil
}

// Load returns all contacts in stored order.
func (s *SQLiteStore) Load(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT phone, name FROM contacts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.Phone, &c.Name); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Save upserts every contact, keeping list order in the position column.
func (s *SQLiteStore) Save(ctx context.Context, contacts []Contact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin contacts tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO contacts (phone, name, position) VALUES (?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			position = excluded.position
	`)
	if err != nil {
		return fmt.Errorf("prepare contact upsert: %w", err)
	}
	defer stmt.Close()

	for i, c := range contacts {
		if _, err := stmt.ExecContext(ctx, c.Phone, c.Name, i); err != nil {
			return fmt.Errorf("upsert contact %s: %w", c.Phone, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
