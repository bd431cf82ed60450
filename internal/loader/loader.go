// Package loader persists validated NAV records in memory-bounded batches,
// one transaction per batch.
package loader

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/nav-cli/internal/db"
	"github.com/sells-group/nav-cli/internal/model"
)

// Default sizing parameters.
const (
	DefaultMinBatchSize = 500
	DefaultRowBytes     = 1000
)

// Store upserts one batch of records in a single transaction, rolling it back
// on failure.
type Store interface {
	UpsertNAV(ctx context.Context, recs []model.NavRecord) (db.UpsertResult, error)
}

// PersistenceError reports a batch the store rejected. Batches before it are
// committed; batches after it were not attempted.
type PersistenceError struct {
	Batch     int // zero-based index of the failing batch
	Committed int // batches committed before the failure
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("loader: batch %d failed after %d committed: %v", e.Batch, e.Committed, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Options configures a Loader. Zero values select the defaults.
type Options struct {
	Sizer BatchSizer
	Probe MemoryProbe
}

// Loader writes records through a Store.
type Loader struct {
	store Store
	sizer BatchSizer
	probe MemoryProbe
}

// New creates a Loader.
func New(store Store, opts Options) *Loader {
	l := &Loader{store: store, sizer: opts.Sizer, probe: opts.Probe}
	if l.sizer == nil {
		l.sizer = MemoryBatchSizer(DefaultMinBatchSize, DefaultRowBytes)
	}
	if l.probe == nil {
		l.probe = SystemMemory
	}
	return l
}

// Load supersedes duplicate keys, sizes batches and upserts them in order.
// On a batch failure the summary covers the committed batches and the error
// is a *PersistenceError.
func (l *Loader) Load(ctx context.Context, recs []model.NavRecord) (*model.LoadSummary, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "loader"))

	unique, superseded := Supersede(recs)
	sum := &model.LoadSummary{Records: len(unique), Superseded: superseded}
	if len(unique) == 0 {
		return sum, nil
	}
	if superseded > 0 {
		log.Info("superseded duplicate keys", zap.Int("count", superseded))
	}

	sum.BatchSize = l.batchSize(ctx, len(unique))
	for i, off := 0, 0; off < len(unique); i, off = i+1, off+sum.BatchSize {
		if err := ctx.Err(); err != nil {
			sum.Duration = time.Since(start)
			return sum, &PersistenceError{Batch: i, Committed: sum.Batches, Err: err}
		}
		end := min(off+sum.BatchSize, len(unique))
		res, err := l.store.UpsertNAV(ctx, unique[off:end])
		if err != nil {
			sum.Duration = time.Since(start)
			log.Error("batch failed", zap.Int("batch", i), zap.Int("committed", sum.Batches), zap.Error(err))
			return sum, &PersistenceError{Batch: i, Committed: sum.Batches, Err: err}
		}
		sum.Inserted += res.Inserted
		sum.Updated += res.Updated
		sum.Batches++
		log.Debug("batch committed",
			zap.Int("batch", i),
			zap.Int("rows", end-off),
			zap.Int64("inserted", res.Inserted),
			zap.Int64("updated", res.Updated),
		)
	}
	sum.Duration = time.Since(start)

	log.Info("load complete",
		zap.Int("records", sum.Records),
		zap.Int64("inserted", sum.Inserted),
		zap.Int64("updated", sum.Updated),
		zap.Int("batches", sum.Batches),
		zap.Int("batch_size", sum.BatchSize),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func (l *Loader) batchSize(ctx context.Context, n int) int {
	avail, err := l.probe(ctx)
	if err != nil {
		zap.L().Warn("loader: memory probe failed, sizing by record count", zap.Error(err))
		avail = math.MaxUint64
	}
	size := l.sizer(avail, n)
	if size < 1 {
		size = 1
	}
	return size
}

// Supersede collapses records sharing a key to the last occurrence, keeping
// the surviving records in the order of their last appearance. It returns the
// number of records removed.
func Supersede(recs []model.NavRecord) ([]model.NavRecord, int) {
	last := make(map[model.NavKey]int, len(recs))
	for i, r := range recs {
		last[r.Key()] = i
	}
	if len(last) == len(recs) {
		return recs, 0
	}
	out := make([]model.NavRecord, 0, len(last))
	for i, r := range recs {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}
	return out, len(recs) - len(out)
}
