// Package history keeps a per-provider daily spend ledger in sqlite.
// Spending data itself is never persisted between runs; the ledger exists
// so the status view can show recent trend without waiting for refreshes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spendbar/spendbar/internal/core"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS daily_spend (
		provider   TEXT NOT NULL,
		day        TEXT NOT NULL,
		spend_usd  REAL NOT NULL,
		tokens     INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (provider, day)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record upserts today's spend snapshot for a provider. Each refresh
// overwrites the day's row; the ledger keeps one row per provider per day.
func (s *Store) Record(ctx context.Context, p core.Provider, spendUSD float64, tokens int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_spend (provider, day, spend_usd, tokens, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (provider, day) DO UPDATE SET
			spend_usd = excluded.spend_usd,
			tokens = excluded.tokens,
			updated_at = excluded.updated_at`,
		string(p), at.Format("2006-01-02"), spendUSD, tokens, at.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording daily spend: %w", err)
	}
	return nil
}

type DayRow struct {
	Day      string
	SpendUSD float64
	Tokens   int
}

// Recent returns up to days rows for a provider, oldest first.
func (s *Store) Recent(ctx context.Context, p core.Provider, days int) ([]DayRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, spend_usd, tokens FROM daily_spend
		WHERE provider = ?
		ORDER BY day DESC
		LIMIT ?`, string(p), days)
	if err != nil {
		return nil, fmt.Errorf("querying daily spend: %w", err)
	}
	defer rows.Close()

	var out []DayRow
	for rows.Next() {
		var r DayRow
		if err := rows.Scan(&r.Day, &r.SpendUSD, &r.Tokens); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
