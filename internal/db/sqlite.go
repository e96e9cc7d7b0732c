package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type SQLite struct {
	path string
	conn *sql.DB
}

func NewSQLite(path string) *SQLite {
	return &SQLite{
		path: path,
		conn: nil,
	}
}

func (s *SQLite) InitDb() error {
	var err error
	s.conn, err = sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	// A second pooled connection to ":memory:" would see an empty database.
	s.conn.SetMaxOpenConns(1)

	_, err = s.conn.Exec(`
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS builds (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    pages INTEGER DEFAULT 0,
    skipped INTEGER DEFAULT 0,
    warnings INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pages (
    slug TEXT PRIMARY KEY,
    md_content_hash TEXT NOT NULL,
    output_path TEXT NOT NULL,
    build_id TEXT,
    built_at TEXT NOT NULL,
    callouts INTEGER DEFAULT 0,
    size INTEGER DEFAULT 0
);`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	dbLogger.Debug().Str("path", s.path).Msg("Database initialized")
	return nil
}

func (s *SQLite) Get() *sql.DB {
	return s.conn
}

func (s *SQLite) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *SQLite) Query(query string, args ...interface{}) (*sql.Rows, error) {
	dbLogger.Trace().Str("query", query).Msg("Query")
	return s.conn.Query(query, args...)
}

func (s *SQLite) Exec(query string, args ...interface{}) (sql.Result, error) {
	dbLogger.Trace().Str("query", query).Msg("Exec")
	return s.conn.Exec(query, args...)
}
