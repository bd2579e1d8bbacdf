package exportstore

import (
	"context"
	"errors"

	"github.com/daimoniac/covdocs/internal/defects"
)

// ErrRunNotFound is returned when no export run exists for the requested scope
var ErrRunNotFound = errors.New("export run not found")

// Run describes one exported defect set for a stream/snapshot
type Run struct {
	ID          int64
	Stream      string
	Snapshot    string
	DefectCount int
	CreatedAt   int64
}

// RunFilter narrows ListRuns results
type RunFilter struct {
	Stream string
	Limit  int
}

// Store persists defect exports for offline inspection. The document build
// path never reads from it; it exists purely as an export target.
type Store interface {
	// RecordRun saves a fetched defect set under a new run
	RecordRun(ctx context.Context, stream, snapshot string, records []defects.Record) (*Run, error)

	// GetLastRun retrieves the most recent run for a stream
	GetLastRun(ctx context.Context, stream string) (*Run, error)

	// ListRuns returns runs, newest first
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)

	// GetDefects loads the defect records stored under a run
	GetDefects(ctx context.Context, runID int64) ([]defects.Record, error)

	// CleanupExcessRuns removes old runs for a stream, keeping the most recent N
	CleanupExcessRuns(ctx context.Context, stream string, maxRunsToKeep int) (int, error)

	// Close closes the store
	Close() error
}
