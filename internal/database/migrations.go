package database

import (
	"database/sql"
	"fmt"
)

// A migration carries one schema step in both supported dialects. Steps are
// applied in order and recorded in schema_migrations; a database opened at
// version N only runs steps above N.
type migration struct {
	version  int
	postgres []string
	sqlite   []string
}

var migrations = []migration{
	{
		version: 1,
		postgres: []string{
			`DROP TABLE IF EXISTS images`,
			`CREATE TABLE images (
				id SERIAL PRIMARY KEY,
				computed BOOLEAN DEFAULT FALSE,
				image_identifier UUID NOT NULL
			)`,
		},
		sqlite: []string{
			`DROP TABLE IF EXISTS images`,
			`CREATE TABLE images (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				computed INTEGER DEFAULT 0,
				image_identifier TEXT NOT NULL
			)`,
		},
	},
	{
		// Re-key by (identifier, format): one logical image may exist in
		// several stored formats, and every row now carries an expiry.
		version: 2,
		postgres: []string{
			`DROP TABLE IF EXISTS images`,
			`CREATE TABLE images (
				image_identifier UUID NOT NULL,
				computed BOOLEAN DEFAULT FALSE,
				image_format VARCHAR(4) NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (image_identifier, image_format)
			)`,
		},
		sqlite: []string{
			`DROP TABLE IF EXISTS images`,
			`CREATE TABLE images (
				image_identifier TEXT NOT NULL,
				computed INTEGER DEFAULT 0,
				image_format TEXT NOT NULL CHECK (length(image_format) <= 4),
				expires_at TEXT NOT NULL,
				PRIMARY KEY (image_identifier, image_format)
			)`,
		},
	},
}

// applyMigrations brings db up to the latest schema version. dialect is
// "postgres" or "sqlite".
func applyMigrations(db *sql.DB, dialect string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if current.Valid && m.version <= int(current.Int64) {
			continue
		}

		stmts := m.sqlite
		if dialect == "postgres" {
			stmts = m.postgres
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.Exec(insertVersionSQL(dialect), m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

func insertVersionSQL(dialect string) string {
	if dialect == "postgres" {
		return `INSERT INTO schema_migrations (version) VALUES ($1)`
	}
	return `INSERT INTO schema_migrations (version) VALUES (?)`
}
