// Package calllog keeps a local history of finished calls in SQLite
// for the call-history screen.
package calllog

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS call_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	booking_id TEXT    NOT NULL,
	duration_s INTEGER NOT NULL,
	ended_at   TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS call_log_ended_at ON call_log (ended_at);
`

type Log struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path. ":memory:"
// works for tests.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

func (l *Log) Close() error { return l.db.Close() }

func (l *Log) Record(ctx context.Context, booking domain.BookingID, durationSeconds int, endedAt time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO call_log (booking_id, duration_s, ended_at) VALUES (?, ?, ?)`,
		string(booking), durationSeconds, endedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (l *Log) Recent(ctx context.Context, limit int) ([]core.CallLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT booking_id, duration_s, ended_at FROM call_log ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.CallLogEntry
	for rows.Next() {
		var booking, ended string
		var dur int
		if err := rows.Scan(&booking, &dur, &ended); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, ended)
		if err != nil {
			return nil, err
		}
		out = append(out, core.CallLogEntry{
			BookingID:       domain.BookingID(booking),
			DurationSeconds: dur,
			EndedAt:         t,
		})
	}
	return out, rows.Err()
}
