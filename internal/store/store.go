// Package store persists NAV records and the per-file run log.
package store

import (
	"context"
	"time"

	"github.com/sells-group/nav-cli/internal/db"
	"github.com/sells-group/nav-cli/internal/model"
)

// DefaultRunLimit bounds ListRuns when no limit is given.
const DefaultRunLimit = 50

// Store defines the persistence interface for NAV ingestion.
type Store interface {
	// NAV data
	UpsertNAV(ctx context.Context, recs []model.NavRecord) (db.UpsertResult, error)
	EarliestNavDate(ctx context.Context) (*time.Time, error)
	LookupNAV(ctx context.Context, schemeCode string, navDate time.Time) (*model.NavRecord, error)

	// Run log
	StartRun(ctx context.Context, source string) (string, error)
	FinishRun(ctx context.Context, id string, status model.RunStatus, result model.RunResult, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func runLimit(limit int) int {
	if limit <= 0 {
		return DefaultRunLimit
	}
	return limit
}
