package sales

// query.go implements the point-lookup and aggregate side of the read API.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// selectColumns is the shared select list. Monetary columns are cast to
// float8 in SQL so the store's numeric(,2) rounding crosses the boundary
// unchanged and is never re-rounded client-side.
const selectColumns = `order_id, region, country, item_type, sales_channel, order_priority,
  order_date, ship_date, units_sold,
  unit_price::float8, unit_cost::float8,
  total_revenue::float8, total_cost::float8, total_profit::float8`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var orderDate, shipDate time.Time
	err := row.Scan(
		&rec.OrderID, &rec.Region, &rec.Country, &rec.ItemType,
		&rec.SalesChannel, &rec.OrderPriority,
		&orderDate, &shipDate, &rec.UnitsSold,
		&rec.UnitPrice, &rec.UnitCost,
		&rec.TotalRevenue, &rec.TotalCost, &rec.TotalProfit,
	)
	if err != nil {
		return Record{}, err
	}
	rec.OrderDate = DateOf(orderDate)
	rec.ShipDate = DateOf(shipDate)
	return rec, nil
}

// GetByID returns the record keyed by orderID, or nil when no such record
// exists. Absence is a valid empty result, not an error.
func (s *Service) GetByID(ctx context.Context, orderID int64) (*Record, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery("get_by_id", time.Since(start)) }()

	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM sales WHERE order_id = $1`, orderID)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sales by id: %w", err)
	}
	return &rec, nil
}

// GetStats aggregates the subset matching filter (same predicates as the
// pager). An empty subset yields count=0, nil min/max dates, zero sums.
func (s *Service) GetStats(ctx context.Context, filter *Filter) (*Stats, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery("stats", time.Since(start)) }()

	conds, args := filter.conditions(nil, nil)
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	sql := `SELECT COUNT(*), MIN(order_date), MAX(order_date),
  COALESCE(SUM(total_revenue), 0)::float8,
  COALESCE(SUM(total_profit), 0)::float8
FROM sales` + where

	var st Stats
	var minDate, maxDate *time.Time
	err := s.pool.QueryRow(ctx, sql, args...).Scan(
		&st.Count, &minDate, &maxDate, &st.SumTotalRevenue, &st.SumTotalProfit)
	if err != nil {
		return nil, fmt.Errorf("query sales stats: %w", err)
	}

	if minDate != nil {
		d := DateOf(*minDate)
		st.MinOrderDate = &d
	}
	if maxDate != nil {
		d := DateOf(*maxDate)
		st.MaxOrderDate = &d
	}

	return &st, nil
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) bool {
	return s.pool.Ping(ctx) == nil
}

// Version returns the store's version string.
func (s *Service) Version(ctx context.Context) (string, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery("version", time.Since(start)) }()

	var version string
	if err := s.pool.QueryRow(ctx, `SELECT version()`).Scan(&version); err != nil {
		return "", fmt.Errorf("query version: %w", err)
	}
	return version, nil
}
