package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS order_history (
	position  INTEGER PRIMARY KEY,
	order_id  TEXT NOT NULL DEFAULT '',
	symbol    TEXT NOT NULL,
	side      TEXT NOT NULL,
	qty       REAL NOT NULL,
	price     REAL NOT NULL,
	mode      TEXT NOT NULL,
	status    TEXT NOT NULL,
	ts        TEXT NOT NULL
)`

// SQLitePersister mirrors the history ring into a single SQLite table.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister opens (and creates if needed) the database at path.
func NewSQLitePersister(path string) (*SQLitePersister, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, multierr.Append(fmt.Errorf("create schema: %w", err), db.Close())
	}
	return &SQLitePersister{db: db}, nil
}

// Load returns rows ordered newest first.
func (p *SQLitePersister) Load() ([]Record, error) {
	rows, err := p.db.Query(`SELECT order_id, symbol, side, qty, price, mode, status, ts FROM order_history ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec Record
			ts  string
		)
		if err := rows.Scan(&rec.OrderID, &rec.Symbol, &rec.Side, &rec.Qty, &rec.Price, &rec.Mode, &rec.Status, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Save replaces the table contents in one transaction.
func (p *SQLitePersister) Save(records []Record) (err error) {
	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	if _, err = tx.Exec(`DELETE FROM order_history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO order_history (position, order_id, symbol, side, qty, price, mode, status, ts) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, rec := range records {
		if _, err = stmt.Exec(i, rec.OrderID, rec.Symbol, rec.Side, rec.Qty, rec.Price, rec.Mode, rec.Status, rec.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert history row: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (p *SQLitePersister) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
