package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/messaging"
	"github.com/opd-ai/relaysync/outbox/migrations"
)

// sqlitePageSize bounds how many rows one query of All reads.
const sqlitePageSize = 128

// SQLiteStore persists records in a SQLite database. Storage order is the
// insertion sequence; upserts keep a record's first sequence.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates a SQLite outbox and migrates its schema.
// path may be ":memory:".
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create outbox directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "OpenSQLite",
		"path":     path,
	}).Debug("Opened sqlite outbox")

	return &SQLiteStore{db: db, path: path}, nil
}

const upsertRecord = `
INSERT INTO records (id, text, author, display_name, created_at, status, synced)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    text = excluded.text,
    author = excluded.author,
    display_name = excluded.display_name,
    created_at = excluded.created_at,
    status = excluded.status,
    synced = excluded.synced`

func (s *SQLiteStore) Put(ctx context.Context, rec messaging.Record) error {
	_, err := s.db.ExecContext(ctx, upsertRecord,
		rec.ID, rec.Text, rec.Author, rec.DisplayName, rec.CreatedAt, rec.Status.String(), rec.Synced)
	if err != nil {
		return fmt.Errorf("put record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (messaging.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, id, text, author, display_name, created_at, status, synced FROM records WHERE id = ?`, id)
	rec, _, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return messaging.Record{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	return err
}

// All reads pages of rows ordered by sequence and releases each page's cursor
// before yielding, so the loop body may write to the store.
func (s *SQLiteStore) All(ctx context.Context) iter.Seq2[messaging.Record, error] {
	return func(yield func(messaging.Record, error) bool) {
		var after int64
		for {
			page, last, err := s.page(ctx, after)
			if err != nil {
				yield(messaging.Record{}, err)
				return
			}
			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
			}
			if len(page) < sqlitePageSize {
				return
			}
			after = last
		}
	}
}

func (s *SQLiteStore) page(ctx context.Context, after int64) ([]messaging.Record, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, text, author, display_name, created_at, status, synced
		 FROM records WHERE seq > ? ORDER BY seq LIMIT ?`, after, sqlitePageSize)
	if err != nil {
		return nil, after, err
	}
	defer rows.Close()

	var (
		page []messaging.Record
		last = after
	)
	for rows.Next() {
		rec, seq, err := scanRecord(rows)
		if err != nil {
			return nil, after, err
		}
		page = append(page, rec)
		last = seq
	}
	return page, last, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (messaging.Record, int64, error) {
	var (
		rec    messaging.Record
		seq    int64
		status string
	)
	err := row.Scan(&seq, &rec.ID, &rec.Text, &rec.Author, &rec.DisplayName, &rec.CreatedAt, &status, &rec.Synced)
	if err != nil {
		return messaging.Record{}, 0, err
	}
	if rec.Status, err = messaging.ParseStatus(status); err != nil {
		return messaging.Record{}, 0, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	return rec, seq, nil
}

func (s *SQLiteStore) PutTombstone(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tombstones (id, deleted_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		id, time.Now().UnixMilli())
	return err
}

func (s *SQLiteStore) HasTombstone(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tombstones WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
