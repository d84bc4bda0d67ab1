// Package catalog keeps a SQLite index of the nodes of documents that have
// been indexed, with full-text search over node names, tags and text.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hpungsan/arbor/internal/config"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init opens the catalog at baseDir/arbor.db, creating it and the exports
// directory when missing. Tests pass t.TempDir() as baseDir.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	dbPath := filepath.Join(baseDir, "arbor.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies the connection pool limits set in cfg.
// Zero values keep the sql.DB defaults.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: documents, nodes and the node text index
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS documents (
		  id          TEXT PRIMARY KEY,
		  path        TEXT NOT NULL,
		  title       TEXT NOT NULL,
		  node_count  INTEGER NOT NULL,
		  bookmarks   TEXT NOT NULL DEFAULT '',
		  indexed_at  INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_path
		ON documents(path);

		CREATE TABLE IF NOT EXISTS nodes (
		  doc_id      TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		  node_id     INTEGER NOT NULL,
		  parent_id   INTEGER NOT NULL DEFAULT 0,
		  name        TEXT NOT NULL,
		  name_norm   TEXT NOT NULL,
		  node_path   TEXT NOT NULL,
		  syntax      TEXT NOT NULL,
		  tags        TEXT NOT NULL DEFAULT '',
		  body        TEXT NOT NULL DEFAULT '',
		  chars       INTEGER NOT NULL,
		  widgets     INTEGER NOT NULL,
		  ts_lastsave INTEGER NOT NULL DEFAULT 0,
		  PRIMARY KEY (doc_id, node_id)
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_name_norm
		ON nodes(doc_id, name_norm);

		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
		  name, tags, body,
		  content='nodes',
		  tokenize='unicode61 remove_diacritics 2'
		);

		CREATE TRIGGER IF NOT EXISTS nodes_ai AFTER INSERT ON nodes BEGIN
		  INSERT INTO nodes_fts(rowid, name, tags, body)
		  VALUES (new.rowid, new.name, new.tags, new.body);
		END;

		CREATE TRIGGER IF NOT EXISTS nodes_ad AFTER DELETE ON nodes BEGIN
		  INSERT INTO nodes_fts(nodes_fts, rowid, name, tags, body)
		  VALUES ('delete', old.rowid, old.name, old.tags, old.body);
		END;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
