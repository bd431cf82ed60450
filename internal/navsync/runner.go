// Package navsync drives bulletin files through parse, validate and load, and
// implements the daily, monthly and yearly sync modes.
package navsync

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nav-cli/internal/bulletin"
	"github.com/sells-group/nav-cli/internal/loader"
	"github.com/sells-group/nav-cli/internal/model"
	"github.com/sells-group/nav-cli/internal/planner"
	"github.com/sells-group/nav-cli/internal/store"
	"github.com/sells-group/nav-cli/internal/validate"
)

// Bulletins locates and retrieves the bulletin for a date.
type Bulletins interface {
	Path(date time.Time) string
	Fetch(ctx context.Context, date time.Time) (string, error)
}

// FileResult is the outcome of processing one bulletin file.
type FileResult struct {
	Path     string
	RunID    string
	Status   model.RunStatus
	Parsed   int
	Valid    int
	Inserted int64
	Updated  int64
	Err      error
}

// Summary aggregates a sync or load run.
type Summary struct {
	Planned     int           `json:"planned"`
	Fetched     int           `json:"fetched"`
	Reused      int           `json:"reused"`
	FetchFailed int           `json:"fetch_failed"`
	Files       int           `json:"files"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Empty       int           `json:"empty"`
	FailedFiles []string      `json:"failed_files,omitempty"`
	Inserted    int64         `json:"inserted"`
	Updated     int64         `json:"updated"`
	Duration    time.Duration `json:"duration"`
}

func (s *Summary) add(r FileResult) {
	s.Files++
	s.Inserted += r.Inserted
	s.Updated += r.Updated
	switch r.Status {
	case model.RunStatusComplete:
		s.Succeeded++
	case model.RunStatusEmpty:
		s.Empty++
	default:
		s.Failed++
		s.FailedFiles = append(s.FailedFiles, r.Path)
	}
}

// Runner orchestrates bulletin processing.
type Runner struct {
	store     store.Store
	loader    *loader.Loader
	bulletins Bulletins
	now       func() time.Time
	exists    func(path string) bool
}

// NewRunner creates a Runner. bulletins may be nil when only local files are loaded.
func NewRunner(st store.Store, ld *loader.Loader, b Bulletins) *Runner {
	return &Runner{
		store:     st,
		loader:    ld,
		bulletins: b,
		now:       func() time.Time { return time.Now().UTC() },
		exists:    fileExists,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ProcessFile parses, validates and loads one bulletin, recording it in the
// run log. The returned error is non-nil only when the run log itself cannot
// be written; file-level failures are reported in FileResult.Err.
func (r *Runner) ProcessFile(ctx context.Context, path string) (FileResult, error) {
	log := zap.L().With(zap.String("component", "navsync"), zap.String("file", path))
	res := FileResult{Path: path, Status: model.RunStatusFailed}

	runID, err := r.store.StartRun(ctx, path)
	if err != nil {
		return res, eris.Wrapf(err, "navsync: start run for %s", path)
	}
	res.RunID = runID

	start := time.Now()
	res.Err = r.process(ctx, path, &res)
	elapsed := time.Since(start)

	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
		log.Error("file failed", zap.Error(res.Err), zap.Duration("elapsed", elapsed))
	} else {
		log.Info("file processed",
			zap.String("status", string(res.Status)),
			zap.Int("parsed", res.Parsed),
			zap.Int("valid", res.Valid),
			zap.Int64("inserted", res.Inserted),
			zap.Int64("updated", res.Updated),
			zap.Duration("elapsed", elapsed),
		)
	}

	result := model.RunResult{RowsParsed: res.Parsed, RowsValid: res.Valid, Inserted: res.Inserted, Updated: res.Updated}
	if err := r.store.FinishRun(ctx, runID, res.Status, result, errMsg); err != nil {
		return res, eris.Wrapf(err, "navsync: finish run for %s", path)
	}
	return res, nil
}

func (r *Runner) process(ctx context.Context, path string, res *FileResult) error {
	rows, stats, err := bulletin.ParseFile(path)
	if err != nil {
		return err
	}
	res.Parsed = len(rows)
	zap.L().Debug("bulletin parsed",
		zap.String("file", path),
		zap.String("encoding", stats.Encoding),
		zap.Int("lines", stats.Lines),
		zap.Int("headers", stats.Headers),
		zap.Int("discarded", stats.Discarded),
	)

	valid, err := validate.Validate(rows)
	if err != nil {
		return err
	}
	res.Valid = valid.Summary.TotalOut
	if len(valid.Records) == 0 {
		res.Status = model.RunStatusEmpty
		return nil
	}

	sum, err := r.loader.Load(ctx, valid.Records)
	if sum != nil {
		res.Inserted = sum.Inserted
		res.Updated = sum.Updated
	}
	if err != nil {
		return err
	}
	res.Status = model.RunStatusComplete
	return nil
}

// ProcessFiles processes paths in order. A failing file is counted and the
// run continues with the next one.
func (r *Runner) ProcessFiles(ctx context.Context, paths []string) (*Summary, error) {
	sum := &Summary{}
	err := r.processInto(ctx, paths, sum)
	return sum, err
}

func (r *Runner) processInto(ctx context.Context, paths []string, sum *Summary) error {
	start := time.Now()
	defer func() { sum.Duration += time.Since(start) }()

	for _, p := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		res, err := r.ProcessFile(ctx, p)
		if err != nil {
			return err
		}
		sum.add(res)
	}
	return nil
}

// Daily fetches and processes the bulletin for the latest business day. A
// fetch failure is returned as is.
func (r *Runner) Daily(ctx context.Context) (*Summary, error) {
	if r.bulletins == nil {
		return nil, eris.New("navsync: no bulletin source configured")
	}
	start := time.Now()
	date := planner.LatestBusinessDay(r.now())
	sum := &Summary{Planned: 1}

	path, err := r.bulletins.Fetch(ctx, date)
	if err != nil {
		sum.FetchFailed++
		return sum, err
	}
	sum.Fetched++

	err = r.processInto(ctx, []string{path}, sum)
	sum.Duration = time.Since(start)
	logSummary("daily", sum)
	return sum, err
}

// collect resolves the bulletin path for each date. Existing files are reused
// when reuse is set and skipped otherwise. Fetch failures skip the date.
func (r *Runner) collect(ctx context.Context, dates []time.Time, reuse bool, sum *Summary) ([]string, error) {
	log := zap.L().With(zap.String("component", "navsync"))
	var paths []string
	for _, d := range dates {
		select {
		case <-ctx.Done():
			return paths, ctx.Err()
		default:
		}

		if p := r.bulletins.Path(d); r.exists(p) {
			sum.Reused++
			if reuse {
				paths = append(paths, p)
			}
			log.Debug("bulletin already present", zap.String("path", p))
			continue
		}

		p, err := r.bulletins.Fetch(ctx, d)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return paths, err
			}
			sum.FetchFailed++
			log.Warn("bulletin unavailable", zap.Time("date", d), zap.Error(err))
			continue
		}
		sum.Fetched++
		paths = append(paths, p)
	}
	return paths, nil
}

func logSummary(mode string, sum *Summary) {
	zap.L().Info("sync complete",
		zap.String("mode", mode),
		zap.Int("planned", sum.Planned),
		zap.Int("fetched", sum.Fetched),
		zap.Int("reused", sum.Reused),
		zap.Int("fetch_failed", sum.FetchFailed),
		zap.Int("files", sum.Files),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("empty", sum.Empty),
		zap.Strings("failed_files", sum.FailedFiles),
		zap.Int64("inserted", sum.Inserted),
		zap.Int64("updated", sum.Updated),
		zap.Duration("duration", sum.Duration),
	)
}
