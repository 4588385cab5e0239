package sales

import (
	"errors"
	"fmt"
)

// ErrTooManyImports is returned when all import slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// ErrBadCursor is returned when a pagination cursor cannot be decoded.
// Cursors are opaque; only tokens previously issued by the server are valid.
var ErrBadCursor = errors.New("malformed pagination cursor")

// ErrInvalidUTF8 is returned when an upload stream contains bytes that are
// not valid UTF-8. The import transaction is rolled back in full.
var ErrInvalidUTF8 = errors.New("upload is not valid UTF-8")

// StageError wraps a failure from one stage of the import pipeline so
// callers can tell where the transaction was aborted. The whole transaction
// is rolled back; no partial writes are visible.
type StageError struct {
	Stage string // begin, schema, stage, copy, count_total, count_valid, count_dups, reconcile, history, commit
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("import %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stageErr wraps err with its pipeline stage, passing nil through.
func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
