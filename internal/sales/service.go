package sales

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sabata/salesd/internal/metrics"
)

// Service provides the sales dataset operations: bulk import, keyset
// pagination, point lookups, and aggregate statistics. All state beyond the
// connection pool and the durable store lives in the import limiter.
type Service struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
	limiter *ImportLimiter
	opts    Options
}

// Options tunes import behavior. Zero values fall back to defaults, except
// SpeedOptimize which is an explicit choice.
type Options struct {
	// MaxConcurrentImports bounds parallel import transactions.
	MaxConcurrentImports int

	// ImportWaitTimeout is how long Import blocks for a slot before
	// failing with ErrTooManyImports.
	ImportWaitTimeout time.Duration

	// CopyChunkSize is the read-buffer size for streaming into COPY.
	CopyChunkSize int

	// SpeedOptimize relaxes commit durability for import transactions only
	// (SET LOCAL synchronous_commit = off).
	SpeedOptimize bool
}

// NewService creates a Service backed by pool. A nil m disables nothing;
// metrics are recorded into a private, unscraped registry.
func NewService(pool *pgxpool.Pool, m *metrics.Metrics, opts Options) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	if opts.MaxConcurrentImports <= 0 {
		opts.MaxConcurrentImports = DefaultMaxConcurrentImports
	}
	if opts.ImportWaitTimeout <= 0 {
		opts.ImportWaitTimeout = DefaultMaxWaitTime
	}
	if opts.CopyChunkSize <= 0 {
		opts.CopyChunkSize = DefaultCopyChunkSize
	}

	return &Service{
		pool:    pool,
		metrics: m,
		limiter: NewImportLimiter(opts.MaxConcurrentImports, opts.ImportWaitTimeout),
		opts:    opts,
	}
}

// EnsureSchema creates the durable table, its indexes, and the import
// history table if they do not exist. Imports also ensure the schema inside
// their own transaction; this exists so read endpoints work on a fresh
// database before the first import.
func (s *Service) EnsureSchema(ctx context.Context) error {
	for _, q := range schemaStatements {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return stageErr("schema", err)
		}
	}
	return nil
}

// ImportsActive reports the number of in-flight imports.
func (s *Service) ImportsActive() int {
	return s.limiter.ActiveCount()
}

// WaitForImports blocks until in-flight imports drain or ctx expires.
// Used during graceful shutdown.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
