package readlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteMirror keeps a queryable copy of accepted reads next to the CSV log.
// It is an observer: the CSV file stays the record of truth.
type SQLiteMirror struct {
	conn *sql.DB
}

// OpenSQLiteMirror opens (or creates) the database at dbPath and ensures the
// schema exists.
func OpenSQLiteMirror(dbPath string) (*SQLiteMirror, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	m := &SQLiteMirror{conn: conn}
	if err := m.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return m, nil
}

func (m *SQLiteMirror) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plate_reads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plate TEXT NOT NULL,
		read_at TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_plate_reads_plate ON plate_reads(plate);
	CREATE INDEX IF NOT EXISTS idx_plate_reads_read_at ON plate_reads(read_at);
	`

	_, err := m.conn.Exec(schema)
	return err
}

// Observe inserts read as a new row.
func (m *SQLiteMirror) Observe(read PlateRead) error {
	if _, err := m.conn.Exec(
		`INSERT INTO plate_reads (plate, read_at) VALUES (?, ?)`,
		read.Text, read.Timestamp.Format(TimestampLayout),
	); err != nil {
		return fmt.Errorf("failed to insert plate read: %w", err)
	}
	return nil
}

// Recent returns up to limit reads, newest first.
func (m *SQLiteMirror) Recent(limit int) ([]PlateRead, error) {
	rows, err := m.conn.Query(
		`SELECT plate, read_at FROM plate_reads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plate reads: %w", err)
	}
	defer rows.Close()

	var reads []PlateRead
	for rows.Next() {
		var (
			read   PlateRead
			readAt string
		)
		if err := rows.Scan(&read.Text, &readAt); err != nil {
			return nil, fmt.Errorf("failed to scan plate read: %w", err)
		}
		read.Timestamp, err = parseTimestamp(readAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse read timestamp %q: %w", readAt, err)
		}
		reads = append(reads, read)
	}
	return reads, rows.Err()
}

// Close closes the database connection.
func (m *SQLiteMirror) Close() error {
	return m.conn.Close()
}

func parseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}
