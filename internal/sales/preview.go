package sales

// preview.go implements a DB-free dry-run of an import: parse the CSV,
// apply the same field-format constraints and duplicate counting the
// loader's SQL applies, and report what an import would count, without
// touching the store.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// MaxPreviewErrors is the default cap on row errors returned by Preview.
const MaxPreviewErrors = 50

// PreviewResult reports what an import of the same stream would count.
//
// WouldAbort distinguishes constraint-invalid rows, which an import counts
// and moves past, from structurally broken rows (wrong field count), which
// make the staging COPY fail and roll back the whole import. When it is
// set the counts describe the file, not an achievable import outcome.
type PreviewResult struct {
	TotalRows   int64      `json:"total_rows"`
	ValidRows   int64      `json:"valid_rows"`
	InvalidRows int64      `json:"invalid_rows"`
	DupInFile   int64      `json:"dup_in_file"`
	WouldAbort  bool       `json:"would_abort"`
	Errors      []RowError `json:"errors,omitempty"`
}

// RowError locates one constraint violation in the uploaded file.
// Line numbers are 1-based and count the header line.
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Preview validates an upload without staging it. The first line is
// treated as a header and skipped, matching the loader. maxErrors caps the
// returned row errors; 0 means MaxPreviewErrors.
//
// Counting matches the loader's SQL: every data row counts toward
// total_rows, a row failing any constraint is invalid, and dup_in_file is
// rows minus distinct non-empty Order ID values.
func Preview(upload io.Reader, maxErrors int) (*PreviewResult, error) {
	if maxErrors <= 0 {
		maxErrors = MaxPreviewErrors
	}

	reader := csv.NewReader(WrapForCopy(upload))
	reader.FieldsPerRecord = -1

	// Header line.
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return &PreviewResult{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	result := &PreviewResult{}
	distinctIDs := make(map[string]struct{})
	line := 1

	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A structurally broken file would abort the whole import.
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		line++
		result.TotalRows++

		if len(fields) != len(CSVHeader) {
			result.InvalidRows++
			result.WouldAbort = true
			if len(result.Errors) < maxErrors {
				result.Errors = append(result.Errors, RowError{
					Line:    line,
					Message: fmt.Sprintf("expected %d fields, got %d; an import would fail on this row", len(CSVHeader), len(fields)),
				})
			}
			continue
		}

		row := stagedRowFromFields(fields)
		if row.OrderID != "" {
			distinctIDs[row.OrderID] = struct{}{}
		}

		res := ValidateRow(row)
		if res.Valid {
			result.ValidRows++
			continue
		}

		result.InvalidRows++
		for _, fe := range res.Errors {
			if len(result.Errors) >= maxErrors {
				break
			}
			result.Errors = append(result.Errors, RowError{
				Line:    line,
				Field:   fe.Field,
				Value:   fe.Value,
				Message: fe.Message,
			})
		}
	}

	if dup := result.TotalRows - int64(len(distinctIDs)); dup > 0 {
		result.DupInFile = dup
	}

	return result, nil
}
