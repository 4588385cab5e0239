package sales

// validate.go defines the row-format constraints for staged CSV rows.
//
// The same patterns are applied in two places and must stay identical:
//   - inside the import transaction, as Postgres regex predicates in the
//     typed CTE (see importer.go), classifying staged rows set-based
//   - in Go, by ValidateRow/TypeRow for the DB-free preview dry-run
//
// A row failing any constraint is invalid: excluded from the valid/typed
// count but included in the total row count.

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Constraint patterns, shared verbatim with the SQL typed CTE.
const (
	patternUnsignedInt   = `^[0-9]+$`
	patternDecimal       = `^[0-9]+(\.[0-9]+)?$`
	patternSignedDecimal = `^-?[0-9]+(\.[0-9]+)?$`

	// patternDate is the lexical guard for MM/DD/YYYY values. Calendar
	// validity (the day exists in that month and year) is checked
	// separately: time.Parse here, sales_valid_mdy in the import CTE. A
	// lexically plausible but impossible date (e.g. 02/30) is an invalid
	// row, never a transaction abort.
	patternDate = `^(0?[1-9]|1[0-2])/(0?[1-9]|[12][0-9]|3[01])/[0-9]{4}$`
)

// CSVDateLayout is the upload date format (MM/DD/YYYY).
const CSVDateLayout = "01/02/2006"

var (
	reUnsignedInt   = regexp.MustCompile(patternUnsignedInt)
	reDecimal       = regexp.MustCompile(patternDecimal)
	reSignedDecimal = regexp.MustCompile(patternSignedDecimal)
	reDate          = regexp.MustCompile(patternDate)
)

// CSVHeader lists the exact upload header fields, in column order. The
// names are not normalized; embedded spaces and mixed case are expected.
var CSVHeader = []string{
	"Region", "Country", "Item Type", "Sales Channel", "Order Priority",
	"Order Date", "Order ID", "Ship Date", "Units Sold", "Unit Price",
	"Unit Cost", "Total Revenue", "Total Cost", "Total Profit",
}

// StagedRow holds the raw textual columns of one uploaded row, mirroring
// CSVHeader. It exists only for the duration of one import or preview.
type StagedRow struct {
	Region        string
	Country       string
	ItemType      string
	SalesChannel  string
	OrderPriority string
	OrderDate     string
	OrderID       string
	ShipDate      string
	UnitsSold     string
	UnitPrice     string
	UnitCost      string
	TotalRevenue  string
	TotalCost     string
	TotalProfit   string
}

// stagedRowFromFields maps a CSV record (in CSVHeader order) to a StagedRow.
func stagedRowFromFields(fields []string) StagedRow {
	var row StagedRow
	dst := []*string{
		&row.Region, &row.Country, &row.ItemType, &row.SalesChannel,
		&row.OrderPriority, &row.OrderDate, &row.OrderID, &row.ShipDate,
		&row.UnitsSold, &row.UnitPrice, &row.UnitCost, &row.TotalRevenue,
		&row.TotalCost, &row.TotalProfit,
	}
	for i, p := range dst {
		if i < len(fields) {
			*p = fields[i]
		}
	}
	return row
}

// FieldError describes a single failed constraint on one field.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult reports all failed constraints for one row.
type ValidationResult struct {
	Valid  bool
	Errors []FieldError
}

// ValidateRow applies every field-format constraint and returns all
// violations, in CSVHeader order of the constrained fields.
func ValidateRow(row StagedRow) ValidationResult {
	result := ValidationResult{Valid: true}

	fail := func(field, value, msg string) {
		result.Valid = false
		result.Errors = append(result.Errors, FieldError{Field: field, Value: value, Message: msg})
	}

	if !validDate(row.OrderDate) {
		fail("Order Date", row.OrderDate, "must be a date in MM/DD/YYYY format")
	}
	if !reUnsignedInt.MatchString(row.OrderID) {
		fail("Order ID", row.OrderID, "must be a non-negative integer")
	} else if _, err := strconv.ParseInt(row.OrderID, 10, 64); err != nil {
		fail("Order ID", row.OrderID, "does not fit a 64-bit integer")
	}
	if !validDate(row.ShipDate) {
		fail("Ship Date", row.ShipDate, "must be a date in MM/DD/YYYY format")
	}
	if !reUnsignedInt.MatchString(row.UnitsSold) {
		fail("Units Sold", row.UnitsSold, "must be a non-negative integer")
	}
	if !reDecimal.MatchString(row.UnitPrice) {
		fail("Unit Price", row.UnitPrice, "must be a non-negative decimal")
	}
	if !reDecimal.MatchString(row.UnitCost) {
		fail("Unit Cost", row.UnitCost, "must be a non-negative decimal")
	}
	if !reDecimal.MatchString(row.TotalRevenue) {
		fail("Total Revenue", row.TotalRevenue, "must be a non-negative decimal")
	}
	if !reDecimal.MatchString(row.TotalCost) {
		fail("Total Cost", row.TotalCost, "must be a non-negative decimal")
	}
	if !reSignedDecimal.MatchString(row.TotalProfit) {
		fail("Total Profit", row.TotalProfit, "must be a decimal (may be negative)")
	}

	return result
}

// validDate checks the pattern guard and that the value names a real
// calendar date under MM/DD/YYYY.
func validDate(s string) bool {
	if !reDate.MatchString(s) {
		return false
	}
	_, err := time.Parse(CSVDateLayout, s)
	return err == nil
}

// TypeRow coerces a staged row into a strongly-typed Record. It returns
// the first constraint violation if the row is invalid.
func TypeRow(row StagedRow) (Record, error) {
	if res := ValidateRow(row); !res.Valid {
		return Record{}, res.Errors[0]
	}

	orderDate, _ := time.Parse(CSVDateLayout, row.OrderDate)
	shipDate, _ := time.Parse(CSVDateLayout, row.ShipDate)
	orderID, _ := strconv.ParseInt(row.OrderID, 10, 64)
	unitsSold, err := strconv.ParseInt(row.UnitsSold, 10, 32)
	if err != nil {
		return Record{}, FieldError{Field: "Units Sold", Value: row.UnitsSold, Message: "does not fit a 32-bit integer"}
	}

	return Record{
		OrderID:       orderID,
		Region:        row.Region,
		Country:       row.Country,
		ItemType:      row.ItemType,
		SalesChannel:  row.SalesChannel,
		OrderPriority: row.OrderPriority,
		OrderDate:     DateOf(orderDate),
		ShipDate:      DateOf(shipDate),
		UnitsSold:     int32(unitsSold),
		UnitPrice:     parseMoney(row.UnitPrice),
		UnitCost:      parseMoney(row.UnitCost),
		TotalRevenue:  parseMoney(row.TotalRevenue),
		TotalCost:     parseMoney(row.TotalCost),
		TotalProfit:   parseMoney(row.TotalProfit),
	}, nil
}

// parseMoney converts a pre-validated decimal string, rounded to 2 fraction
// digits the way the store's numeric(,2) columns round.
func parseMoney(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return roundCents(f)
}

func roundCents(f float64) float64 {
	if f < 0 {
		return -roundCents(-f)
	}
	return float64(int64(f*100+0.5)) / 100
}
