package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for indexed files, their SV nodes,
// global names and scope tables.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes, then records or checks the
// schema format version. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := s.checkFormat(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  language        TEXT NOT NULL,
  hash            TEXT,
  line_count      INTEGER,
  last_indexed    TIMESTAMP
);

-- Top-level SV nodes in source order, stored as tagged JSON.
CREATE TABLE IF NOT EXISTS nodes (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  ordinal         INTEGER NOT NULL,
  type            TEXT NOT NULL,
  body            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS globals (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  name            TEXT NOT NULL,
  UNIQUE (file_id, name)
);

CREATE TABLE IF NOT EXISTS scopes (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  ordinal         INTEGER NOT NULL,
  kind            TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  parent_scope_id INTEGER REFERENCES scopes(id)
);

CREATE TABLE IF NOT EXISTS bindings (
  id              INTEGER PRIMARY KEY,
  scope_id        INTEGER NOT NULL REFERENCES scopes(id),
  ordinal         INTEGER NOT NULL,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  constant        BOOLEAN DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);
CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file_id);
CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);
CREATE INDEX IF NOT EXISTS idx_globals_file ON globals(file_id);
CREATE INDEX IF NOT EXISTS idx_globals_name ON globals(name);
CREATE INDEX IF NOT EXISTS idx_scopes_file ON scopes(file_id);
CREATE INDEX IF NOT EXISTS idx_scopes_parent ON scopes(parent_scope_id);
CREATE INDEX IF NOT EXISTS idx_bindings_scope ON bindings(scope_id);
CREATE INDEX IF NOT EXISTS idx_bindings_name ON bindings(name);
`

// DeleteFileData transactionally removes every row derived from a file.
// Deletes in reverse-dependency order to respect FK constraints. The file
// record itself is kept.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileDataTx(tx, fileID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteFile removes a file record together with all of its data.
func (s *Store) DeleteFile(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileDataTx(tx, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return tx.Commit()
}

func deleteFileDataTx(tx *sql.Tx, fileID int64) error {
	rows, err := tx.Query("SELECT id FROM scopes WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("query scopes: %w", err)
	}
	var scopeIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan scope id: %w", err)
		}
		scopeIDs = append(scopeIDs, id)
	}
	rows.Close()

	if len(scopeIDs) > 0 {
		q := "DELETE FROM bindings WHERE scope_id IN (" + placeholderList(len(scopeIDs)) + ")"
		if _, err := tx.Exec(q, int64sToArgs(scopeIDs)...); err != nil {
			return fmt.Errorf("delete bindings: %w", err)
		}
	}

	// Child scopes reference their parents, so clear the links first.
	for _, q := range []string{
		"UPDATE scopes SET parent_scope_id = NULL WHERE file_id = ?",
		"DELETE FROM scopes WHERE file_id = ?",
		"DELETE FROM globals WHERE file_id = ?",
		"DELETE FROM nodes WHERE file_id = ?",
	} {
		if _, err := tx.Exec(q, fileID); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}
	return nil
}
