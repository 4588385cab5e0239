package sales

// history.go records one row per committed import so operators can audit
// what was loaded, from where, and with which conflict mode. The row is
// written inside the import transaction: a rolled-back import leaves no
// history entry.

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ddlHistory = `
CREATE TABLE IF NOT EXISTS import_history (
  id                 UUID PRIMARY KEY,
  source             TEXT NOT NULL,
  file_name          TEXT NOT NULL DEFAULT '',
  update_mode        TEXT NOT NULL,
  inserted           BIGINT NOT NULL,
  skipped_conflicts  BIGINT NOT NULL,
  dup_in_file        BIGINT NOT NULL,
  invalid_rows       BIGINT NOT NULL,
  total_rows         BIGINT NOT NULL,
  duration_ms        DOUBLE PRECISION NOT NULL,
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertHistory = `
INSERT INTO import_history (
  id, source, file_name, update_mode,
  inserted, skipped_conflicts, dup_in_file, invalid_rows, total_rows,
  duration_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const selectHistory = `
SELECT id::text, source, file_name, update_mode,
       inserted, skipped_conflicts, dup_in_file, invalid_rows, total_rows,
       duration_ms, created_at
FROM import_history
ORDER BY created_at DESC
LIMIT $1`

// HistoryEntry is one committed import.
type HistoryEntry struct {
	ID               string     `json:"id"`
	Source           string     `json:"source"`
	FileName         string     `json:"file_name"`
	UpdateMode       UpdateMode `json:"update_mode"`
	Inserted         int64      `json:"inserted"`
	SkippedConflicts int64      `json:"skipped_conflicts"`
	DupInFile        int64      `json:"dup_in_file"`
	InvalidRows      int64      `json:"invalid_rows"`
	TotalRows        int64      `json:"total_rows"`
	DurationMs       float64    `json:"duration_ms"`
	CreatedAt        time.Time  `json:"created_at"`
}

// recordHistory writes the import outcome within tx. The duration recorded
// here excludes the commit itself; the result returned to the caller
// carries the full wall-clock duration.
func recordHistory(ctx context.Context, tx pgx.Tx, id uuid.UUID, fileName string, res *ImportResult, elapsed time.Duration) error {
	_, err := tx.Exec(ctx, insertHistory,
		id.String(), res.Source, fileName, string(res.UpdateMode),
		res.Inserted, res.SkippedConflicts, res.DupInFile, res.InvalidRows, res.TotalRows,
		float64(elapsed.Microseconds())/1000.0,
	)
	return err
}

// ListHistory returns the most recent imports, newest first.
// limit is clamped to [1, 100]; 0 means the default of 20.
func (s *Service) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}

	start := time.Now()
	defer func() { s.metrics.ObserveQuery("history", time.Since(start)) }()

	rows, err := s.pool.Query(ctx, selectHistory, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		var mode string
		if err := rows.Scan(
			&e.ID, &e.Source, &e.FileName, &mode,
			&e.Inserted, &e.SkippedConflicts, &e.DupInFile, &e.InvalidRows, &e.TotalRows,
			&e.DurationMs, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.UpdateMode = UpdateMode(mode)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
