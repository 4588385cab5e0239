package sales

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestDerivedCounts(t *testing.T) {
	tests := []struct {
		name        string
		total       int64
		valid       int64
		inserted    int64
		wantInvalid int64
		wantSkipped int64
	}{
		{"all inserted", 10, 10, 10, 0, 0},
		{"some invalid", 10, 7, 7, 3, 0},
		{"some conflicts skipped", 10, 10, 6, 0, 4},
		{"invalid and skipped", 10, 7, 5, 3, 2},
		{"empty file", 0, 0, 0, 0, 0},
		{"invalid floored at zero", 5, 7, 7, 0, 0},
		{"skipped floored at zero", 5, 3, 4, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invalid, skipped := derivedCounts(tt.total, tt.valid, tt.inserted)
			if invalid != tt.wantInvalid {
				t.Errorf("invalid = %d, want %d", invalid, tt.wantInvalid)
			}
			if skipped != tt.wantSkipped {
				t.Errorf("skipped = %d, want %d", skipped, tt.wantSkipped)
			}
		})
	}
}

func TestReconcileStatements(t *testing.T) {
	if !strings.Contains(insertDoNothing, "ON CONFLICT (order_id) DO NOTHING") {
		t.Error("DO_NOTHING statement lacks its conflict clause")
	}
	if !strings.Contains(insertDoUpdate, "ON CONFLICT (order_id) DO UPDATE SET") {
		t.Error("DO_UPDATE statement lacks its conflict clause")
	}
	// Both reconcile paths must restrict themselves to rows passing every
	// field-format constraint.
	for _, pattern := range []string{patternUnsignedInt, patternDecimal, patternSignedDecimal} {
		if !strings.Contains(validTypedCTE, pattern) {
			t.Errorf("typed CTE is missing constraint pattern %q", pattern)
		}
	}
	// Dates are guarded by the calendar-aware helper, not the bare regex,
	// so to_date can never abort the transaction.
	for _, col := range []string{`sales_valid_mdy("Order Date")`, `sales_valid_mdy("Ship Date")`} {
		if !strings.Contains(validTypedCTE, col) {
			t.Errorf("typed CTE is missing date guard %s", col)
		}
	}
	if !strings.Contains(ddlDateCheck, patternDate) {
		t.Error("date guard function does not embed the shared date pattern")
	}

	found := false
	for _, stmt := range schemaStatements {
		if stmt == ddlDateCheck {
			found = true
		}
	}
	if !found {
		t.Error("schema statements do not create the date guard function")
	}
}

// Everything below runs only against a real database, pointed at by
// TEST_DATABASE_URL. The schema is created on demand and test tables are
// truncated between cases.

func testService(t *testing.T) *Service {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	svc := NewService(pool, nil, Options{})
	if err := svc.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE sales, import_history`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return svc
}

const importHeader = "Region,Country,Item Type,Sales Channel,Order Priority,Order Date,Order ID,Ship Date,Units Sold,Unit Price,Unit Cost,Total Revenue,Total Cost,Total Profit\n"

func salesRow(orderID, country, revenue string) string {
	return "Europe," + country + ",Baby Food,Offline,H,12/20/2013," + orderID + ",01/05/2014,10,1.50,1.00," + revenue + ",10.00,5.00\n"
}

func TestImport_Integration(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	csv := importHeader +
		salesRow("100", "Norway", "15.00") +
		salesRow("200", "Sweden", "15.00") +
		"Europe,Norway,Baby Food,Offline,H,12/20/2013,abc,01/05/2014,10,1.50,1.00,15.00,10.00,5.00\n"

	res, err := svc.Import(ctx, strings.NewReader(csv), ImportOptions{Source: "test", FileName: "t.csv"})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if res.TotalRows != 3 || res.Inserted != 2 || res.InvalidRows != 1 {
		t.Errorf("result = %+v, want total=3 inserted=2 invalid=1", res)
	}
	if res.SkippedConflicts != 0 || res.DupInFile != 0 {
		t.Errorf("result = %+v, want no conflicts or dups", res)
	}
	if res.UpdateMode != UpdateModeNothing {
		t.Errorf("UpdateMode = %s, want %s", res.UpdateMode, UpdateModeNothing)
	}

	rec, err := svc.GetByID(ctx, 100)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec == nil || rec.Country != "Norway" || rec.TotalRevenue != 15.00 {
		t.Errorf("record = %+v, want Norway with revenue 15.00", rec)
	}
}

func TestImport_Integration_ImpossibleDateIsInvalid(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	// 02/30 passes the lexical pattern but names no real date. The row must
	// count as invalid; it must not abort the transaction.
	csv := importHeader +
		salesRow("100", "Norway", "15.00") +
		"Europe,Norway,Baby Food,Offline,H,02/30/2020,200,01/05/2014,10,1.50,1.00,15.00,10.00,5.00\n" +
		"Europe,Norway,Baby Food,Offline,H,02/29/2023,300,01/05/2014,10,1.50,1.00,15.00,10.00,5.00\n"

	res, err := svc.Import(ctx, strings.NewReader(csv), ImportOptions{Source: "test"})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if res.TotalRows != 3 || res.Inserted != 1 || res.InvalidRows != 2 {
		t.Errorf("result = %+v, want total=3 inserted=1 invalid=2", res)
	}

	rec, err := svc.GetByID(ctx, 100)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec == nil {
		t.Error("valid row alongside impossible dates was not inserted")
	}
}

func TestImport_Integration_DuplicateRowsInFile(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	csv := importHeader +
		salesRow("100", "Norway", "15.00") +
		salesRow("100", "Finland", "99.00") +
		salesRow("200", "Sweden", "15.00")

	res, err := svc.Import(ctx, strings.NewReader(csv), ImportOptions{Source: "test"})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	// The repeated id stages twice but reconciles once: the second
	// occurrence is a skipped conflict within the same statement.
	if res.TotalRows != 3 || res.DupInFile != 1 {
		t.Errorf("result = %+v, want total=3 dup_in_file=1", res)
	}
	if res.Inserted != 2 || res.SkippedConflicts != 1 {
		t.Errorf("result = %+v, want inserted=2 skipped=1", res)
	}

	for _, id := range []int64{100, 200} {
		rec, err := svc.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%d) error = %v", id, err)
		}
		if rec == nil {
			t.Errorf("order %d missing after import", id)
		}
	}
}

func TestImport_Integration_DoNothingPreservesExisting(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	first := importHeader + salesRow("100", "Norway", "15.00")
	if _, err := svc.Import(ctx, strings.NewReader(first), ImportOptions{Source: "test"}); err != nil {
		t.Fatalf("first Import() error = %v", err)
	}

	second := importHeader + salesRow("100", "Finland", "99.00")
	res, err := svc.Import(ctx, strings.NewReader(second), ImportOptions{Source: "test"})
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}

	if res.Inserted != 0 || res.SkippedConflicts != 1 {
		t.Errorf("result = %+v, want inserted=0 skipped=1", res)
	}

	rec, err := svc.GetByID(ctx, 100)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.Country != "Norway" {
		t.Errorf("Country = %s, existing row was overwritten", rec.Country)
	}
}

func TestImport_Integration_DoUpdateOverwrites(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	first := importHeader + salesRow("100", "Norway", "15.00")
	if _, err := svc.Import(ctx, strings.NewReader(first), ImportOptions{Source: "test"}); err != nil {
		t.Fatalf("first Import() error = %v", err)
	}

	second := importHeader + salesRow("100", "Finland", "99.00")
	res, err := svc.Import(ctx, strings.NewReader(second), ImportOptions{Source: "test", UpdateOnConflict: true})
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}

	// Under DO_UPDATE every valid row is affected, so nothing counts as
	// skipped.
	if res.Inserted != 1 || res.SkippedConflicts != 0 {
		t.Errorf("result = %+v, want inserted=1 skipped=0", res)
	}
	if res.UpdateMode != UpdateModeUpdate {
		t.Errorf("UpdateMode = %s, want %s", res.UpdateMode, UpdateModeUpdate)
	}

	rec, err := svc.GetByID(ctx, 100)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.Country != "Finland" || rec.TotalRevenue != 99.00 {
		t.Errorf("record = %+v, want overwritten values", rec)
	}
}

func TestImport_Integration_InvalidUTF8Aborts(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	csv := importHeader + "Europe,Norw\xFFay,Baby Food,Offline,H,12/20/2013,100,01/05/2014,10,1.50,1.00,15.00,10.00,5.00\n"

	if _, err := svc.Import(ctx, strings.NewReader(csv), ImportOptions{Source: "test"}); err == nil {
		t.Fatal("Import() error = nil, want abort on invalid UTF-8")
	}

	// The transaction rolled back; nothing was written.
	rec, err := svc.GetByID(ctx, 100)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec != nil {
		t.Errorf("record = %+v, want none after aborted import", rec)
	}
}

func TestImport_Integration_RecordsHistory(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	csv := importHeader + salesRow("100", "Norway", "15.00")
	if _, err := svc.Import(ctx, strings.NewReader(csv), ImportOptions{Source: "api", FileName: "sales.csv"}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	entries, err := svc.ListHistory(ctx, 10)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Source != "api" || e.FileName != "sales.csv" || e.Inserted != 1 {
		t.Errorf("entry = %+v, want source=api file=sales.csv inserted=1", e)
	}
}

func TestPage_Integration_ExhaustiveTraversal(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	var b strings.Builder
	b.WriteString(importHeader)
	// Five orders sharing one date plus two on other dates, so traversal
	// must rely on the id tiebreaker.
	for _, id := range []string{"10", "11", "12", "13", "14"} {
		b.WriteString(salesRow(id, "Norway", "15.00"))
	}
	b.WriteString("Europe,Sweden,Meat,Online,C,01/07/2014,20,02/09/2014,10,1.50,1.00,15.00,10.00,5.00\n")
	b.WriteString("Europe,Sweden,Meat,Online,C,11/02/2013,21,12/09/2013,10,1.50,1.00,15.00,10.00,5.00\n")

	if _, err := svc.Import(ctx, strings.NewReader(b.String()), ImportOptions{Source: "test"}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	seen := map[int64]bool{}
	after := ""
	pages := 0
	for {
		conn, err := svc.Page(ctx, PageParams{First: 3, After: after})
		if err != nil {
			t.Fatalf("Page() error = %v", err)
		}
		for _, e := range conn.Edges {
			if seen[e.Node.OrderID] {
				t.Fatalf("order %d returned twice", e.Node.OrderID)
			}
			seen[e.Node.OrderID] = true
		}
		pages++
		if !conn.PageInfo.HasNextPage {
			break
		}
		after = *conn.PageInfo.EndCursor
	}

	if len(seen) != 7 {
		t.Errorf("traversed %d records, want 7", len(seen))
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}

	// The newest record comes first in the default descending order.
	conn, err := svc.Page(ctx, PageParams{First: 1})
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(conn.Edges) != 1 || conn.Edges[0].Node.OrderID != 20 {
		t.Errorf("first record = %+v, want order 20 (2014-01-07)", conn.Edges)
	}
}

func TestPage_Integration_EmptyPageEchoesCursor(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	csv := importHeader + salesRow("100", "Norway", "15.00")
	if _, err := svc.Import(ctx, strings.NewReader(csv), ImportOptions{Source: "test"}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	first, err := svc.Page(ctx, PageParams{First: 5})
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if first.PageInfo.HasNextPage {
		t.Error("HasNextPage = true, want false")
	}
	cursor := *first.PageInfo.EndCursor

	next, err := svc.Page(ctx, PageParams{First: 5, After: cursor})
	if err != nil {
		t.Fatalf("Page() after end error = %v", err)
	}
	if len(next.Edges) != 0 {
		t.Fatalf("edges = %v, want empty past the end", next.Edges)
	}
	if next.PageInfo.EndCursor == nil || *next.PageInfo.EndCursor != cursor {
		t.Errorf("EndCursor = %v, want incoming cursor echoed", next.PageInfo.EndCursor)
	}
}

func TestGetStats_Integration(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	csv := importHeader +
		salesRow("100", "Norway", "15.00") +
		"Europe,Sweden,Meat,Online,C,01/07/2014,200,02/09/2014,10,1.50,1.00,25.00,10.00,5.00\n"
	if _, err := svc.Import(ctx, strings.NewReader(csv), ImportOptions{Source: "test"}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	st, err := svc.GetStats(ctx, nil)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if st.Count != 2 {
		t.Errorf("Count = %d, want 2", st.Count)
	}
	if st.SumTotalRevenue != 40.00 {
		t.Errorf("SumTotalRevenue = %v, want 40.00", st.SumTotalRevenue)
	}
	if st.MinOrderDate == nil || st.MinOrderDate.String() != "2013-12-20" {
		t.Errorf("MinOrderDate = %v, want 2013-12-20", st.MinOrderDate)
	}
	if st.MaxOrderDate == nil || st.MaxOrderDate.String() != "2014-01-07" {
		t.Errorf("MaxOrderDate = %v, want 2014-01-07", st.MaxOrderDate)
	}

	empty, err := svc.GetStats(ctx, &Filter{Country: "Japan"})
	if err != nil {
		t.Fatalf("GetStats(filtered) error = %v", err)
	}
	if empty.Count != 0 || empty.MinOrderDate != nil || empty.SumTotalRevenue != 0 {
		t.Errorf("empty stats = %+v, want zeroes and nil dates", empty)
	}
}

func TestImport_Integration_RespectsTimeout(t *testing.T) {
	svc := testService(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	csv := importHeader + salesRow("100", "Norway", "15.00")
	if _, err := svc.Import(ctx, strings.NewReader(csv), ImportOptions{Source: "test"}); err == nil {
		t.Fatal("Import() error = nil, want context deadline error")
	}
}
