package sales

// importer.go implements the bulk-ingestion pipeline. One import is a
// single transaction: stage the upload via COPY into a temp table scoped to
// the transaction, classify rows set-based with the shared constraint
// patterns, reconcile valid typed rows into the durable table with
// ON CONFLICT handling, and record the outcome. Any failure aborts the
// whole transaction; no partial writes are ever visible.

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const ddlSales = `
CREATE TABLE IF NOT EXISTS sales (
  order_id        BIGINT PRIMARY KEY,
  region          TEXT    NOT NULL,
  country         TEXT    NOT NULL,
  item_type       TEXT    NOT NULL,
  sales_channel   TEXT    NOT NULL,
  order_priority  TEXT    NOT NULL,
  order_date      DATE    NOT NULL,
  ship_date       DATE    NOT NULL,
  units_sold      INTEGER NOT NULL,
  unit_price      NUMERIC(10,2)  NOT NULL,
  unit_cost       NUMERIC(10,2)  NOT NULL,
  total_revenue   NUMERIC(18,2)  NOT NULL,
  total_cost      NUMERIC(18,2)  NOT NULL,
  total_profit    NUMERIC(18,2)  NOT NULL
)`

// ddlDateCheck defines the date guard used by the typed CTE. The regex
// alone admits lexically plausible but impossible dates (02/30); make_date
// rejects those, so to_date in the CTE only ever sees real calendar dates
// and an unparseable date is an invalid row, never a transaction abort.
const ddlDateCheck = `
CREATE OR REPLACE FUNCTION sales_valid_mdy(s text) RETURNS boolean
LANGUAGE plpgsql IMMUTABLE AS $fn$
BEGIN
  IF s !~ '` + patternDate + `' THEN
    RETURN false;
  END IF;
  PERFORM make_date(split_part(s, '/', 3)::int,
                    split_part(s, '/', 1)::int,
                    split_part(s, '/', 2)::int);
  RETURN true;
EXCEPTION WHEN datetime_field_overflow THEN
  RETURN false;
END
$fn$`

// schemaStatements creates the durable table, its secondary indexes, the
// date guard function, and the import history table. Each statement is
// idempotent.
var schemaStatements = []string{
	ddlSales,
	`CREATE INDEX IF NOT EXISTS idx_sales_order_date ON sales(order_date)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_country    ON sales(country)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_item_type  ON sales(item_type)`,
	ddlDateCheck,
	ddlHistory,
}

// The staging table mirrors the CSV header exactly, one text column per raw
// field, and is dropped automatically when the transaction ends.
const ddlStage = `
CREATE TEMP TABLE sales_import (
  "Region"          TEXT, "Country"        TEXT, "Item Type"     TEXT,
  "Sales Channel"   TEXT, "Order Priority" TEXT,
  "Order Date"      TEXT, "Order ID"       TEXT, "Ship Date"     TEXT,
  "Units Sold"      TEXT, "Unit Price"     TEXT, "Unit Cost"     TEXT,
  "Total Revenue"   TEXT, "Total Cost"     TEXT, "Total Profit"  TEXT
) ON COMMIT DROP`

const copyStage = `COPY sales_import FROM STDIN WITH (FORMAT csv, HEADER true)`

// validTypedCTE selects the staged rows satisfying every field-format
// constraint and coerces them to the durable column types. The numeric
// regex patterns are the Go constants from validate.go, inlined; dates go
// through sales_valid_mdy so the to_date casts cannot fail.
const validTypedCTE = `
WITH typed AS (
  SELECT
    "Region"         AS region,
    "Country"        AS country,
    "Item Type"      AS item_type,
    "Sales Channel"  AS sales_channel,
    "Order Priority" AS order_priority,
    to_date("Order Date", 'MM/DD/YYYY')  AS order_date,
    ("Order ID")::bigint                 AS order_id,
    to_date("Ship Date", 'MM/DD/YYYY')   AS ship_date,
    ("Units Sold")::int                  AS units_sold,
    ("Unit Price")::numeric(10,2)        AS unit_price,
    ("Unit Cost")::numeric(10,2)         AS unit_cost,
    ("Total Revenue")::numeric(18,2)     AS total_revenue,
    ("Total Cost")::numeric(18,2)        AS total_cost,
    ("Total Profit")::numeric(18,2)      AS total_profit
  FROM sales_import
  WHERE "Order ID" ~ '` + patternUnsignedInt + `'
    AND "Units Sold" ~ '` + patternUnsignedInt + `'
    AND "Unit Price" ~ '` + patternDecimal + `'
    AND "Unit Cost" ~ '` + patternDecimal + `'
    AND "Total Revenue" ~ '` + patternDecimal + `'
    AND "Total Cost" ~ '` + patternDecimal + `'
    AND "Total Profit" ~ '` + patternSignedDecimal + `'
    AND sales_valid_mdy("Order Date")
    AND sales_valid_mdy("Ship Date")
)
`

const countTotal = `SELECT COUNT(*) FROM sales_import`

const countValid = validTypedCTE + `SELECT COUNT(*) FROM typed`

// dup_in_file measures repeats within the uploaded file, independent of
// conflicts against existing data: staged rows minus distinct non-empty
// Order ID values.
const countDupInFile = `
SELECT COALESCE(COUNT(*) - COUNT(DISTINCT NULLIF("Order ID", '')), 0)
FROM sales_import`

const insertColumns = `
INSERT INTO sales (
  region, country, item_type, sales_channel, order_priority,
  order_date, order_id, ship_date, units_sold,
  unit_price, unit_cost, total_revenue, total_cost, total_profit
)
SELECT region, country, item_type, sales_channel, order_priority,
       order_date, order_id, ship_date, units_sold,
       unit_price, unit_cost, total_revenue, total_cost, total_profit
FROM typed
`

const insertDoNothing = validTypedCTE + insertColumns + `ON CONFLICT (order_id) DO NOTHING`

const insertDoUpdate = validTypedCTE + insertColumns + `ON CONFLICT (order_id) DO UPDATE SET
  region         = EXCLUDED.region,
  country        = EXCLUDED.country,
  item_type      = EXCLUDED.item_type,
  sales_channel  = EXCLUDED.sales_channel,
  order_priority = EXCLUDED.order_priority,
  order_date     = EXCLUDED.order_date,
  ship_date      = EXCLUDED.ship_date,
  units_sold     = EXCLUDED.units_sold,
  unit_price     = EXCLUDED.unit_price,
  unit_cost      = EXCLUDED.unit_cost,
  total_revenue  = EXCLUDED.total_revenue,
  total_cost     = EXCLUDED.total_cost,
  total_profit   = EXCLUDED.total_profit`

// ImportOptions describes one import request.
type ImportOptions struct {
	// Source labels where the upload came from; echoed in the result and
	// recorded in history.
	Source string

	// FileName is the uploaded file's name, recorded in history.
	FileName string

	// UpdateOnConflict selects DO_UPDATE reconciliation: conflicting rows
	// have all non-key columns overwritten instead of being skipped.
	UpdateOnConflict bool
}

// Import streams a CSV upload into the durable table.
//
// The first input line is treated as a header and skipped. The stream must
// be UTF-8; malformed bytes abort the import. Counts follow the invariants
// total_rows == valid_rows + invalid_rows and
// inserted + skipped_conflicts == valid_rows (after floor-at-zero).
func (s *Service) Import(ctx context.Context, upload io.Reader, opts ImportOptions) (*ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	s.metrics.ImportsStarted.Inc()
	start := time.Now()

	result, err := s.runImport(ctx, upload, opts, start)
	if err != nil {
		stage := "unknown"
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		s.metrics.ImportsFailed.WithLabelValues(stage).Inc()
		return nil, err
	}

	s.metrics.ImportsCompleted.WithLabelValues(string(result.UpdateMode)).Inc()
	s.metrics.ImportRows.WithLabelValues("inserted").Add(float64(result.Inserted))
	s.metrics.ImportRows.WithLabelValues("invalid").Add(float64(result.InvalidRows))
	s.metrics.ImportRows.WithLabelValues("skipped_conflict").Add(float64(result.SkippedConflicts))
	s.metrics.ImportRows.WithLabelValues("dup_in_file").Add(float64(result.DupInFile))
	s.metrics.ImportDuration.Observe(time.Since(start).Seconds())

	slog.InfoContext(ctx, "import completed",
		"source", result.Source,
		"total", result.TotalRows,
		"inserted", result.Inserted,
		"invalid", result.InvalidRows,
		"dup_in_file", result.DupInFile,
		"skipped_conflicts", result.SkippedConflicts,
		"update_mode", result.UpdateMode,
		"duration_ms", result.DurationMs,
	)

	return result, nil
}

func (s *Service) runImport(ctx context.Context, upload io.Reader, opts ImportOptions, start time.Time) (*ImportResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, stageErr("begin", err)
	}
	// Rollback is a no-op after a successful commit. If the caller
	// disconnects mid-import, closing the connection aborts the
	// transaction server-side and the staging table goes with it.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if s.opts.SpeedOptimize {
		if _, err := tx.Exec(ctx, `SET LOCAL synchronous_commit = off`); err != nil {
			return nil, stageErr("begin", err)
		}
	}

	for _, q := range schemaStatements {
		if _, err := tx.Exec(ctx, q); err != nil {
			return nil, stageErr("schema", err)
		}
	}

	if _, err := tx.Exec(ctx, ddlStage); err != nil {
		return nil, stageErr("stage", err)
	}

	counting := WrapForCopy(upload)
	buffered := bufio.NewReaderSize(counting, s.opts.CopyChunkSize)
	if _, err := tx.Conn().PgConn().CopyFrom(ctx, buffered, copyStage); err != nil {
		return nil, stageErr("copy", err)
	}
	s.metrics.ImportBytes.Add(float64(counting.BytesRead))

	var totalRows, validRows, dupInFile int64
	if err := tx.QueryRow(ctx, countTotal).Scan(&totalRows); err != nil {
		return nil, stageErr("count_total", err)
	}
	if err := tx.QueryRow(ctx, countValid).Scan(&validRows); err != nil {
		return nil, stageErr("count_valid", err)
	}
	if err := tx.QueryRow(ctx, countDupInFile).Scan(&dupInFile); err != nil {
		return nil, stageErr("count_dups", err)
	}

	insertSQL := insertDoNothing
	mode := UpdateModeNothing
	if opts.UpdateOnConflict {
		insertSQL = insertDoUpdate
		mode = UpdateModeUpdate
	}

	tag, err := tx.Exec(ctx, insertSQL)
	if err != nil {
		return nil, stageErr("reconcile", err)
	}
	inserted := tag.RowsAffected()

	invalidRows, skippedConflicts := derivedCounts(totalRows, validRows, inserted)

	result := &ImportResult{
		Inserted:         inserted,
		SkippedConflicts: skippedConflicts,
		DupInFile:        dupInFile,
		InvalidRows:      invalidRows,
		TotalRows:        totalRows,
		Source:           opts.Source,
		UpdateMode:       mode,
	}

	historyID := uuid.New()
	if err := recordHistory(ctx, tx, historyID, opts.FileName, result, time.Since(start)); err != nil {
		return nil, stageErr("history", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, stageErr("commit", err)
	}

	result.DurationMs = float64(time.Since(start).Microseconds()) / 1000.0
	return result, nil
}

// derivedCounts computes invalid and skipped-conflict counts with the
// floor-at-zero tolerance for transient count races inside the transaction.
func derivedCounts(totalRows, validRows, inserted int64) (invalidRows, skippedConflicts int64) {
	invalidRows = totalRows - validRows
	if invalidRows < 0 {
		invalidRows = 0
	}
	skippedConflicts = validRows - inserted
	if skippedConflicts < 0 {
		skippedConflicts = 0
	}
	return invalidRows, skippedConflicts
}
