package navsync

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nav-cli/internal/planner"
)

// Monthly backfills the months before the earliest stored NAV date, or before
// the latest business day when the store is empty. Bulletins already on disk
// are reprocessed rather than downloaded again.
func (r *Runner) Monthly(ctx context.Context, months int) (*Summary, error) {
	if r.bulletins == nil {
		return nil, eris.New("navsync: no bulletin source configured")
	}
	if months <= 0 {
		return nil, eris.Errorf("navsync: months must be positive, got %d", months)
	}
	start := time.Now()

	earliest, err := planner.EarliestKnownDate(ctx, r.store)
	if err != nil {
		return nil, eris.Wrap(err, "navsync: earliest known date")
	}
	w := planner.MonthsWindow(earliest, r.now(), months)
	dates := w.Dates()
	zap.L().Info("monthly backfill planned",
		zap.Time("start", w.Start),
		zap.Time("end", w.End),
		zap.Int("dates", len(dates)),
	)

	sum := &Summary{Planned: len(dates)}
	paths, err := r.collect(ctx, dates, true, sum)
	if err != nil {
		return sum, err
	}
	if len(paths) == 0 {
		zap.L().Warn("no bulletins available for the window")
	}
	err = r.processInto(ctx, paths, sum)
	sum.Duration = time.Since(start)
	logSummary("monthly", sum)
	return sum, err
}

// Yearly downloads every missing bulletin for the last years*365 days and,
// unless downloadOnly is set, processes the newly downloaded files.
func (r *Runner) Yearly(ctx context.Context, years int, downloadOnly bool) (*Summary, error) {
	if r.bulletins == nil {
		return nil, eris.New("navsync: no bulletin source configured")
	}
	if years <= 0 {
		return nil, eris.Errorf("navsync: years must be positive, got %d", years)
	}
	start := time.Now()

	w := planner.YearsWindow(r.now(), years)
	dates := w.Dates()
	zap.L().Info("yearly backfill planned",
		zap.Time("start", w.Start),
		zap.Time("end", w.End),
		zap.Int("dates", len(dates)),
		zap.Bool("download_only", downloadOnly),
	)

	sum := &Summary{Planned: len(dates)}
	paths, err := r.collect(ctx, dates, false, sum)
	if err != nil {
		return sum, err
	}
	if !downloadOnly {
		err = r.processInto(ctx, paths, sum)
	}
	sum.Duration = time.Since(start)
	logSummary("yearly", sum)
	return sum, err
}

// LoadFiles processes local bulletin files.
func (r *Runner) LoadFiles(ctx context.Context, paths []string) (*Summary, error) {
	sum, err := r.ProcessFiles(ctx, paths)
	logSummary("load", sum)
	return sum, err
}
