package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/studydesk/internal/core/domain"
)

// HistoryRepository stores archived conversation references. Entries are listed
// newest first, matching the order of the in-memory history list.
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db, now: time.Now}
}

func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026050401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chat_history (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	label TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_history_created_at ON chat_history(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save inserts entry, or renames it when the id already exists.
func (r *HistoryRepository) Save(ctx context.Context, entry domain.ChatHistoryEntry) error {
	if !entry.Type.Valid() {
		return domain.Reject(domain.ErrInvalidInput, "save history entry", fmt.Sprintf("unknown type %q", entry.Type))
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_history (id, title, label, kind, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, label = EXCLUDED.label, kind = EXCLUDED.kind
`, entry.ID, entry.Title, entry.Timestamp, string(entry.Type), r.now().UTC())
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func (r *HistoryRepository) List(ctx context.Context, limit int) ([]domain.ChatHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, label, kind, created_at
FROM chat_history
ORDER BY created_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	now := r.now()
	out := make([]domain.ChatHistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry     domain.ChatHistoryEntry
			label     string
			kind      string
			createdAt time.Time
		)
		if err := rows.Scan(&entry.ID, &entry.Title, &label, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.Type = domain.HistoryType(kind)
		entry.Timestamp = relativeLabel(now, createdAt, label)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// relativeLabel renders the age of an entry the way the dashboard lists it
// ("2 hours ago"). The stored label is used for entries younger than a minute.
func relativeLabel(now, createdAt time.Time, stored string) string {
	age := now.Sub(createdAt)
	switch {
	case age < time.Minute:
		if stored != "" {
			return stored
		}
		return "Just now"
	case age < time.Hour:
		return plural(int(age/time.Minute), "minute")
	case age < 24*time.Hour:
		return plural(int(age/time.Hour), "hour")
	case age < 7*24*time.Hour:
		return plural(int(age/(24*time.Hour)), "day")
	default:
		return plural(int(age/(7*24*time.Hour)), "week")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
