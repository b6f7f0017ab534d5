package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type dialect struct {
	get    string
	set    string
	remove string
}

var (
	sqliteDialect = dialect{
		get: `SELECT value FROM kv WHERE key = ?`,
		set: `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		remove: `DELETE FROM kv WHERE key = ?`,
	}
	postgresDialect = dialect{
		get: `SELECT value FROM kv WHERE key = $1`,
		set: `INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		remove: `DELETE FROM kv WHERE key = $1`,
	}
)

// DB is a Store backed by a SQL table.
type DB struct {
	conn *sql.DB
	q    dialect
}

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
func OpenSQLite(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("kv: sqlite driver needs a path")
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("kv: open sqlite: %w", err)
	}
	return initDB(conn, sqliteSchemaSQL, sqliteDialect)
}

// OpenPostgres connects to Postgres and applies the schema.
func OpenPostgres(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("kv: postgres driver needs a dsn")
	}
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("kv: open postgres: %w", err)
	}
	return initDB(conn, postgresSchemaSQL, postgresDialect)
}

func initDB(conn *sql.DB, schema string, q dialect) (*DB, error) {
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kv: ping: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kv: apply schema: %w", err)
	}
	return &DB{conn: conn, q: q}, nil
}

func (db *DB) Get(key string) (string, bool, error) {
	var v string
	err := db.conn.QueryRow(db.q.get, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return v, true, nil
}

func (db *DB) Set(key, value string) error {
	if _, err := db.conn.Exec(db.q.set, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("kv: set %s: %w", key, err)
	}
	return nil
}

func (db *DB) Remove(key string) error {
	if _, err := db.conn.Exec(db.q.remove, key); err != nil {
		return fmt.Errorf("kv: remove %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
