package sales

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date without a time-of-day component. It marshals to
// and from ISO "YYYY-MM-DD" strings on the API boundary.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Record is a durable sales record, uniquely keyed by OrderID.
// Monetary values carry the store's 2-fraction-digit rounding and are
// rendered as floating-point numbers on the API boundary.
type Record struct {
	OrderID       int64   `json:"order_id"`
	Region        string  `json:"region"`
	Country       string  `json:"country"`
	ItemType      string  `json:"item_type"`
	SalesChannel  string  `json:"sales_channel"`
	OrderPriority string  `json:"order_priority"`
	OrderDate     Date    `json:"order_date"`
	ShipDate      Date    `json:"ship_date"`
	UnitsSold     int32   `json:"units_sold"`
	UnitPrice     float64 `json:"unit_price"`
	UnitCost      float64 `json:"unit_cost"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalCost     float64 `json:"total_cost"`
	TotalProfit   float64 `json:"total_profit"`
}

// UpdateMode tags which conflict-resolution branch an import took.
type UpdateMode string

const (
	// UpdateModeNothing skips incoming rows that conflict on order_id.
	UpdateModeNothing UpdateMode = "DO_NOTHING"
	// UpdateModeUpdate overwrites all non-key columns on conflict.
	UpdateModeUpdate UpdateMode = "DO_UPDATE"
)

// ImportResult reports the outcome of one bulk import.
//
// In DO_UPDATE mode Inserted reflects the affected-row count of the
// insert-or-update statement, so updated rows count toward it; tests rely
// on Inserted + SkippedConflicts == ValidRows in both modes.
type ImportResult struct {
	Inserted         int64      `json:"inserted"`
	SkippedConflicts int64      `json:"skipped_conflicts"`
	DupInFile        int64      `json:"dup_in_file"`
	InvalidRows      int64      `json:"invalid_rows"`
	TotalRows        int64      `json:"total_rows"`
	DurationMs       float64    `json:"duration_ms"`
	Source           string     `json:"source"`
	UpdateMode       UpdateMode `json:"update_mode"`
}

// Direction orders pagination by (order_date, order_id).
type Direction string

const (
	DirectionAsc  Direction = "ASC"
	DirectionDesc Direction = "DESC"
)

// ParseDirection interprets s case-insensitively; anything other than
// "ASC" is the default DESC.
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, string(DirectionAsc)) {
		return DirectionAsc
	}
	return DirectionDesc
}

// Filter is a conjunction of optional predicates over sales records.
// Zero-valued fields impose no constraint; all active predicates are ANDed.
type Filter struct {
	Region        string
	Country       string
	ItemType      string
	SalesChannel  string
	OrderPriority string

	// OrderDateFrom/To bound order_date inclusively.
	OrderDateFrom *Date
	OrderDateTo   *Date

	// MinProfit/MaxProfit bound total_profit inclusively.
	MinProfit *float64
	MaxProfit *float64

	// Q matches country OR region OR item_type, substring, case-insensitive.
	Q string
}

// Edge pairs a record with the cursor that re-anchors pagination at it.
type Edge struct {
	Cursor string `json:"cursor"`
	Node   Record `json:"node"`
}

// PageInfo carries forward-pagination state.
type PageInfo struct {
	EndCursor   *string `json:"endCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// Connection is one page of records.
type Connection struct {
	Edges    []Edge   `json:"edges"`
	PageInfo PageInfo `json:"pageInfo"`
}

// Stats aggregates the filtered subset. Min/MaxOrderDate are nil and the
// sums zero when no rows match.
type Stats struct {
	Count           int64   `json:"count"`
	MinOrderDate    *Date   `json:"min_order_date"`
	MaxOrderDate    *Date   `json:"max_order_date"`
	SumTotalRevenue float64 `json:"sum_total_revenue"`
	SumTotalProfit  float64 `json:"sum_total_profit"`
}
