package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mosaiclab/unisearch/internal/models"
)

// SQLiteStore implements DocStore on SQLite. It is the on-disk corpus cache
// used by the CLI so the FEVER JSONL files are parsed only once.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT,
		body TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Put inserts documents in one transaction. Existing IDs are replaced.
func (s *SQLiteStore) Put(ctx context.Context, docs []models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents (id, title, body) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Title, doc.Body); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns the document with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (models.Document, bool, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, body FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Body)
	if err == sql.ErrNoRows {
		return models.Document{}, false, nil
	}
	if err != nil {
		return models.Document{}, false, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, true, nil
}

// Count returns the number of stored documents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Iterate visits documents in insertion (rowid) order.
func (s *SQLiteStore) Iterate(ctx context.Context, fn func(models.Document) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body FROM documents ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Body); err != nil {
			return fmt.Errorf("failed to scan document: %w", err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
