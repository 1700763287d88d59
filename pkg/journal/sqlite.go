package journal

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/xerrors"
)

// fixed width so that text ordering is time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLite struct {
	database *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open journal database: %w", err)
	}
	s := &SQLite{database: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	if _, err := s.database.Exec(
		`CREATE TABLE IF NOT EXISTS journal (
		id text not null primary key,
		at text not null,
		kind text not null,
		name text not null,
		payload text
		)`,
	); err != nil {
		return xerrors.Errorf("failed to create journal table: %w", err)
	}
	return nil
}

func (s *SQLite) Write(ctx context.Context, e Entry) error {
	if _, err := s.database.ExecContext(
		ctx, `INSERT INTO journal (id, at, kind, name, payload) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.At.UTC().Format(timeLayout), e.Kind, e.Name, string(e.Payload),
	); err != nil {
		return xerrors.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.database.QueryContext(
		ctx, `SELECT id, at, kind, name, payload FROM journal ORDER BY at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var at string
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &at, &e.Kind, &e.Name, &payload); err != nil {
			return nil, xerrors.Errorf("failed to scan: %w", err)
		}
		if e.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, xerrors.Errorf("failed to parse time of %s: %w", e.ID, err)
		}
		if payload.Valid && payload.String != "" {
			e.Payload = []byte(payload.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.database.Close()
}
