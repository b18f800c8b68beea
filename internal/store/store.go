// Package store persists a ledger of pipeline runs in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tablemail/internal/model"

	_ "modernc.org/sqlite"
)

// Ledger records what each invocation processed and produced, so repeated runs
// against the same mailbox can be audited after the fact.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at the given path and runs
// migrations.
func Open(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at   TEXT NOT NULL,
	message_id   TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL DEFAULT '',
	subject_date TEXT NOT NULL DEFAULT '',
	success      INTEGER NOT NULL DEFAULT 0,
	message      TEXT NOT NULL DEFAULT '',
	output_files TEXT NOT NULL DEFAULT '',
	elapsed_ms   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordRun appends one run to the ledger.
func (l *Ledger) RecordRun(ctx context.Context, rec model.RunRecord) error {
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, message_id, subject, subject_date, success, message, output_files, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.MessageID,
		rec.Subject,
		rec.SubjectDate,
		success,
		rec.Message,
		strings.Join(rec.OutputFiles, "\n"),
		rec.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns up to n runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, n int) ([]model.RunRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT started_at, message_id, subject, subject_date, success, message, output_files, elapsed_ms
		FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.RunRecord
	for rows.Next() {
		var (
			rec       model.RunRecord
			startedAt string
			success   int
			outputs   string
			elapsedMS int64
		)
		if err := rows.Scan(&startedAt, &rec.MessageID, &rec.Subject, &rec.SubjectDate, &success, &rec.Message, &outputs, &elapsedMS); err != nil {
			return nil, err
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		rec.Success = success != 0
		if outputs != "" {
			rec.OutputFiles = strings.Split(outputs, "\n")
		}
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LastMessageID returns the id of the message handled by the most recent
// successful run, or empty if none.
func (l *Ledger) LastMessageID(ctx context.Context) (string, error) {
	var val string
	err := l.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'last_message_id'").Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

func (l *Ledger) SetLastMessageID(ctx context.Context, id string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES ('last_message_id', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, id)
	return err
}
