package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/sells-group/nav-cli/internal/db"
	"github.com/sells-group/nav-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. NAV values are kept
// as fixed four-place text and dates as ISO text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS nav_data (
	scheme_type         TEXT NOT NULL DEFAULT '',
	scheme_category     TEXT NOT NULL DEFAULT '',
	scheme_sub_category TEXT NOT NULL DEFAULT '',
	scheme_code         TEXT NOT NULL,
	isin_growth         TEXT NOT NULL DEFAULT '',
	isin_reinv          TEXT NOT NULL DEFAULT '',
	scheme_name         TEXT NOT NULL,
	nav                 TEXT NOT NULL,
	nav_date            TEXT NOT NULL,
	fund_structure      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (scheme_code, nav_date)
);

CREATE TABLE IF NOT EXISTS nav_runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	rows_parsed  INTEGER NOT NULL DEFAULT 0,
	rows_valid   INTEGER NOT NULL DEFAULT 0,
	inserted     INTEGER NOT NULL DEFAULT 0,
	updated      INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_nav_data_nav_date ON nav_data(nav_date);
CREATE INDEX IF NOT EXISTS idx_nav_runs_started_at ON nav_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const (
	sqliteExists = `SELECT EXISTS (SELECT 1 FROM nav_data WHERE scheme_code = ? AND nav_date = ?)`
	sqliteUpsert = `INSERT INTO nav_data (
		scheme_type, scheme_category, scheme_sub_category, scheme_code, isin_growth,
		isin_reinv, scheme_name, nav, nav_date, fund_structure
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (scheme_code, nav_date) DO UPDATE SET
		nav = excluded.nav,
		scheme_name = excluded.scheme_name,
		fund_structure = excluded.fund_structure`
)

// UpsertNAV writes recs row by row inside one transaction, probing for an
// existing key before each write to classify it. Later records with a key
// already written in the same call overwrite the earlier ones.
func (s *SQLiteStore) UpsertNAV(ctx context.Context, recs []model.NavRecord) (db.UpsertResult, error) {
	var res db.UpsertResult
	if len(recs) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	exists, err := tx.PrepareContext(ctx, sqliteExists)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: prepare exists")
	}
	defer exists.Close() //nolint:errcheck

	upsert, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return res, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer upsert.Close() //nolint:errcheck

	var batch db.UpsertResult
	for _, r := range recs {
		date := r.NAVDate.Format(model.ISODateLayout)

		var found bool
		if err := exists.QueryRowContext(ctx, r.SchemeCode, date).Scan(&found); err != nil {
			return res, eris.Wrapf(err, "sqlite: probe %s %s", r.SchemeCode, date)
		}
		if _, err := upsert.ExecContext(ctx,
			r.SchemeType, r.SchemeCategory, r.SchemeSubCategory, r.SchemeCode, r.ISINGrowth,
			r.ISINReinv, r.SchemeName, r.NAV.StringFixed(4), date, r.FundStructure,
		); err != nil {
			return res, eris.Wrapf(err, "sqlite: upsert %s %s", r.SchemeCode, date)
		}
		if found {
			batch.Updated++
		} else {
			batch.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return res, eris.Wrap(err, "sqlite: commit upsert")
	}
	return batch, nil
}

func (s *SQLiteStore) EarliestNavDate(ctx context.Context) (*time.Time, error) {
	var earliest sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(nav_date) FROM nav_data`).Scan(&earliest); err != nil {
		return nil, eris.Wrap(err, "sqlite: earliest nav date")
	}
	if !earliest.Valid {
		return nil, nil
	}
	t, err := time.Parse(model.ISODateLayout, earliest.String)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse nav date %q", earliest.String)
	}
	return &t, nil
}

func (s *SQLiteStore) LookupNAV(ctx context.Context, schemeCode string, navDate time.Time) (*model.NavRecord, error) {
	var (
		r         model.NavRecord
		nav, date string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT scheme_type, scheme_category, scheme_sub_category, scheme_code, isin_growth, isin_reinv,
		        scheme_name, nav, nav_date, fund_structure
		 FROM nav_data WHERE scheme_code = ? AND nav_date = ?`,
		schemeCode, navDate.Format(model.ISODateLayout),
	).Scan(&r.SchemeType, &r.SchemeCategory, &r.SchemeSubCategory, &r.SchemeCode, &r.ISINGrowth,
		&r.ISINReinv, &r.SchemeName, &nav, &date, &r.FundStructure)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: lookup nav %s", schemeCode)
	}
	if r.NAV, err = decimal.NewFromString(nav); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse stored nav %q", nav)
	}
	if r.NAVDate, err = time.Parse(model.ISODateLayout, date); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse stored date %q", date)
	}
	return &r, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, source string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nav_runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		id, source, string(model.RunStatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: start run for %s", source)
	}
	return id, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, status model.RunStatus, result model.RunResult, errMsg string) error {
	var errCol sql.NullString
	if errMsg != "" {
		errCol = sql.NullString{String: errMsg, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE nav_runs
		 SET status = ?, completed_at = ?, rows_parsed = ?, rows_valid = ?, inserted = ?, updated = ?, error = ?
		 WHERE id = ?`,
		string(status), time.Now().UTC(), result.RowsParsed, result.RowsValid,
		result.Inserted, result.Updated, errCol, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", id)
	}
	return checkRowsAffected(res, "run", id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, status, started_at, completed_at, rows_parsed, rows_valid,
		        inserted, updated, COALESCE(error, '')
		 FROM nav_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		runLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var entries []model.RunEntry
	for rows.Next() {
		var (
			e         model.RunEntry
			status    string
			completed sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Source, &status, &e.StartedAt, &completed,
			&e.RowsParsed, &e.RowsValid, &e.Inserted, &e.Updated, &e.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		e.Status = model.RunStatus(status)
		if completed.Valid {
			t := completed.Time
			e.CompletedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
