package sales

// pager.go implements keyset pagination over the (order_date, order_id)
// composite key. The cursor anchors a strict row-wise tuple comparison, so
// traversal is stable and duplicate-free even when many rows share a date,
// and an offset is never used.

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MaxPageSize caps how many records one page returns. Requests outside
// [1, MaxPageSize] are clamped, never rejected.
const MaxPageSize = 200

// PageParams describes one page request.
type PageParams struct {
	// First is the requested page size, clamped to [1, MaxPageSize].
	First int

	// After is the opaque cursor of the last-seen row, or empty for the
	// first page.
	After string

	// Filter restricts the traversed set; nil imposes no constraint.
	Filter *Filter

	// Direction orders by (order_date, order_id); default DESC.
	Direction Direction
}

func clampFirst(first int) int {
	if first < 1 {
		return 1
	}
	if first > MaxPageSize {
		return MaxPageSize
	}
	return first
}

// buildPageQuery renders the page SELECT. It fetches first+1 rows so the
// caller can detect hasNextPage without a separate count query.
func buildPageQuery(p PageParams) (sql string, args []any, first int, err error) {
	first = clampFirst(p.First)

	dir := p.Direction
	if dir != DirectionAsc {
		dir = DirectionDesc
	}

	conds, args := p.Filter.conditions(nil, nil)

	if p.After != "" {
		orderDate, orderID, err := DecodeCursor(p.After)
		if err != nil {
			return "", nil, 0, err
		}
		comp := "<"
		if dir == DirectionAsc {
			comp = ">"
		}
		args = append(args, orderDate.Time, orderID)
		conds = append(conds, fmt.Sprintf("(order_date, order_id) %s ($%d, $%d)",
			comp, len(args)-1, len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = "\nWHERE " + strings.Join(conds, "\n  AND ")
	}

	args = append(args, first+1)
	sql = fmt.Sprintf(`SELECT %s
FROM sales%s
ORDER BY order_date %s, order_id %s
LIMIT $%d`, selectColumns, where, dir, dir, len(args))

	return sql, args, first, nil
}

// Page returns one page of records ordered by (order_date, order_id).
//
// When the result set is empty, endCursor echoes the incoming After value
// unchanged so a client polling a filter that yields nothing new keeps its
// position.
func (s *Service) Page(ctx context.Context, p PageParams) (*Connection, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery("page", time.Since(start)) }()

	sql, args, first, err := buildPageQuery(p)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query sales page: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, first+1)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sales row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sales page: %w", err)
	}

	hasNext := len(records) > first
	if hasNext {
		records = records[:first]
	}

	edges := make([]Edge, len(records))
	for i, rec := range records {
		edges[i] = Edge{
			Cursor: EncodeCursor(rec.OrderDate, rec.OrderID),
			Node:   rec,
		}
	}

	conn := &Connection{
		Edges:    edges,
		PageInfo: PageInfo{HasNextPage: hasNext},
	}
	if len(edges) > 0 {
		conn.PageInfo.EndCursor = &edges[len(edges)-1].Cursor
	} else if p.After != "" {
		after := p.After
		conn.PageInfo.EndCursor = &after
	}

	return conn, nil
}
