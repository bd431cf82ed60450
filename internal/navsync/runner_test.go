package navsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/nav-cli/internal/fetcher"
	"github.com/sells-group/nav-cli/internal/loader"
	"github.com/sells-group/nav-cli/internal/model"
	"github.com/sells-group/nav-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockBulletins struct {
	mock.Mock
	dir string
}

func (m *mockBulletins) Path(date time.Time) string {
	return filepath.Join(m.dir, "navall_"+date.Format(model.ISODateLayout)+".txt")
}

func (m *mockBulletins) Fetch(ctx context.Context, date time.Time) (string, error) {
	args := m.Called(ctx, date)
	return args.String(0), args.Error(1)
}

// serve makes Fetch for date write a bulletin and return its path.
func (m *mockBulletins) serve(t *testing.T, date time.Time) {
	t.Helper()
	path := m.Path(date)
	m.On("Fetch", mock.Anything, date).
		Run(func(mock.Arguments) { writeFile(t, path, bulletinFor(date, "10.5")) }).
		Return(path, nil).Once()
}

// refuseRest makes every other Fetch fail the way the portal does on holidays.
func (m *mockBulletins) refuseRest() {
	m.On("Fetch", mock.Anything, mock.Anything).
		Return("", &fetcher.FetchError{Reason: "nothing to parse"})
}

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func bulletinFor(date time.Time, nav string) string {
	d := date.Format(model.BulletinDateLayout)
	return strings.Join([]string{
		"Scheme Code;Scheme Name;ISIN Div Payout/ISIN Growth;ISIN Div Reinvestment;Net Asset Value;Repurchase Price;Sale Price;Date",
		"",
		"Open Ended Schemes(Equity Scheme - Large Cap Fund)",
		"",
		"Axis Mutual Fund",
		"",
		fmt.Sprintf("120503;Axis Bluechip Fund - Growth;INF846K01DP8;-;%s;;;%s", nav, d),
		fmt.Sprintf("120504;Axis Bluechip Fund - IDCW;INF846K01DQ6;INF846K01DR4;%s;;;%s", nav, d),
		fmt.Sprintf("120505;Axis Bluechip Fund - Bonus;INF846K01DS2;-;N.A.;;;%s", d),
	}, "\r\n")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestRunner(t *testing.T, now time.Time) (*Runner, *store.SQLiteStore, *mockBulletins) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "nav.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	ld := loader.New(st, loader.Options{
		Probe: func(context.Context) (uint64, error) { return 1 << 30, nil },
	})
	b := &mockBulletins{dir: t.TempDir()}
	r := NewRunner(st, ld, b)
	r.now = func() time.Time { return now }
	return r, st, b
}

func TestProcessFile(t *testing.T) {
	r, st, b := newTestRunner(t, day(time.April, 7))
	ctx := context.Background()
	path := b.Path(day(time.April, 2))
	writeFile(t, path, bulletinFor(day(time.April, 2), "45.67895"))

	res, err := r.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, model.RunStatusComplete, res.Status)
	assert.Equal(t, 4, res.Parsed)
	assert.Equal(t, 2, res.Valid)
	assert.Equal(t, int64(2), res.Inserted)

	got, err := st.LookupNAV(ctx, "120503", day(time.April, 2))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "45.6790", got.NAV.StringFixed(4))
	assert.Equal(t, "Open Ended Schemes(Equity Scheme - Large Cap Fund)", got.SchemeType)
	assert.Equal(t, "Axis Mutual Fund", got.FundStructure)

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 2, runs[0].RowsValid)
}

func TestLoadFiles_Idempotent(t *testing.T) {
	r, _, b := newTestRunner(t, day(time.April, 7))
	ctx := context.Background()
	path := b.Path(day(time.April, 2))
	writeFile(t, path, bulletinFor(day(time.April, 2), "10"))

	first, err := r.LoadFiles(ctx, []string{path})
	require.NoError(t, err)
	second, err := r.LoadFiles(ctx, []string{path})
	require.NoError(t, err)

	assert.Equal(t, int64(2), first.Inserted)
	assert.Equal(t, int64(0), second.Inserted)
	assert.Equal(t, first.Inserted, second.Updated)
}

func TestLoadFiles_ContinuesPastFailures(t *testing.T) {
	r, st, b := newTestRunner(t, day(time.April, 7))
	ctx := context.Background()

	good := b.Path(day(time.April, 2))
	writeFile(t, good, bulletinFor(day(time.April, 2), "10"))
	blank := filepath.Join(b.dir, "blank.txt")
	writeFile(t, blank, "Open Ended Schemes\r\n\r\nAxis Mutual Fund\r\n")
	allBad := filepath.Join(b.dir, "allbad.txt")
	writeFile(t, allBad, "1;a;b;c;N.A.;;;02-Apr-2025\n")
	missing := filepath.Join(b.dir, "missing.txt")

	sum, err := r.LoadFiles(ctx, []string{missing, blank, allBad, good})
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Files)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.Empty)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, []string{missing, blank}, sum.FailedFiles)
	assert.Equal(t, int64(2), sum.Inserted)

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	byID := map[string]model.RunEntry{}
	for _, e := range runs {
		byID[e.Source] = e
	}
	assert.Equal(t, model.RunStatusFailed, byID[blank].Status)
	assert.Contains(t, byID[blank].Error, "empty input")
	assert.Equal(t, model.RunStatusEmpty, byID[allBad].Status)
}

func TestProcessFiles_Canceled(t *testing.T) {
	r, _, _ := newTestRunner(t, day(time.April, 7))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := r.ProcessFiles(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sum.Files)
}

func TestDaily_FetchesLatestBusinessDay(t *testing.T) {
	// Monday: the latest business day is the preceding Friday.
	r, st, b := newTestRunner(t, day(time.April, 7))
	b.serve(t, day(time.April, 4))

	sum, err := r.Daily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Fetched)
	assert.Equal(t, 1, sum.Succeeded)
	b.AssertExpectations(t)

	earliest, err := st.EarliestNavDate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, day(time.April, 4), *earliest)
}

func TestDaily_FetchErrorIsFatal(t *testing.T) {
	r, _, b := newTestRunner(t, day(time.April, 7))
	b.refuseRest()

	sum, err := r.Daily(context.Background())
	var fe *fetcher.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, sum.FetchFailed)
	assert.Equal(t, 0, sum.Files)
}

func TestMonthly_EmptyStore(t *testing.T) {
	r, _, b := newTestRunner(t, day(time.April, 7))
	// Already on disk: reused without a fetch.
	writeFile(t, b.Path(day(time.April, 3)), bulletinFor(day(time.April, 3), "11"))
	b.serve(t, day(time.April, 4))
	b.serve(t, day(time.March, 10))
	b.refuseRest()

	sum, err := r.Monthly(context.Background(), 1)
	require.NoError(t, err)

	// 2025-03-05 through 2025-04-04.
	assert.Equal(t, 23, sum.Planned)
	assert.Equal(t, 2, sum.Fetched)
	assert.Equal(t, 1, sum.Reused)
	assert.Equal(t, 20, sum.FetchFailed)
	assert.Equal(t, 3, sum.Files)
	assert.Equal(t, 3, sum.Succeeded)
	assert.Equal(t, int64(6), sum.Inserted)
	b.AssertNotCalled(t, "Fetch", mock.Anything, day(time.April, 3))
}

func TestMonthly_BackfillsBeforeEarliest(t *testing.T) {
	r, st, b := newTestRunner(t, day(time.October, 1))
	ctx := context.Background()
	seed := b.Path(day(time.April, 2))
	writeFile(t, seed, bulletinFor(day(time.April, 2), "10"))
	_, err := r.LoadFiles(ctx, []string{seed})
	require.NoError(t, err)

	b.serve(t, day(time.April, 1))
	b.refuseRest()

	sum, err := r.Monthly(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)

	earliest, err := st.EarliestNavDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, day(time.April, 1), *earliest)
}

func TestYearly_DownloadOnly(t *testing.T) {
	r, st, b := newTestRunner(t, day(time.April, 7))
	writeFile(t, b.Path(day(time.April, 3)), bulletinFor(day(time.April, 3), "11"))
	b.serve(t, day(time.April, 4))
	b.refuseRest()

	sum, err := r.Yearly(context.Background(), 1, true)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Fetched)
	assert.Equal(t, 1, sum.Reused)
	assert.Equal(t, sum.Planned-2, sum.FetchFailed)
	assert.Equal(t, 0, sum.Files)

	earliest, err := st.EarliestNavDate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, earliest)
}

func TestYearly_ProcessesNewDownloadsOnly(t *testing.T) {
	r, _, b := newTestRunner(t, day(time.April, 7))
	writeFile(t, b.Path(day(time.April, 3)), bulletinFor(day(time.April, 3), "11"))
	b.serve(t, day(time.April, 4))
	b.refuseRest()

	sum, err := r.Yearly(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Files)
	assert.Equal(t, int64(2), sum.Inserted)
}

func TestModes_RejectBadArguments(t *testing.T) {
	r, _, _ := newTestRunner(t, day(time.April, 7))
	_, err := r.Monthly(context.Background(), 0)
	assert.Error(t, err)
	_, err = r.Yearly(context.Background(), -1, false)
	assert.Error(t, err)

	noSource := NewRunner(nil, nil, nil)
	_, err = noSource.Daily(context.Background())
	assert.Error(t, err)
}

func TestCollect_StopsOnCancel(t *testing.T) {
	r, _, b := newTestRunner(t, day(time.April, 7))
	b.On("Fetch", mock.Anything, mock.Anything).Return("", context.Canceled).Once()

	sum := &Summary{}
	_, err := r.collect(context.Background(), []time.Time{day(time.April, 4), day(time.April, 3)}, true, sum)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, sum.FetchFailed)
	b.AssertNumberOfCalls(t, "Fetch", 1)
}
