package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/nav-cli/internal/db"
	"github.com/sells-group/nav-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller owns the pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return MigratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var navUpsert = db.UpsertConfig{
	Table:        model.NavTable,
	Columns:      model.NavColumns,
	ConflictKeys: model.NavKeyColumns,
	UpdateCols:   model.NavUpdateColumns,
}

// UpsertNAV writes recs in one transaction via COPY into a temp table. Keys
// must be unique within recs.
func (s *PostgresStore) UpsertNAV(ctx context.Context, recs []model.NavRecord) (db.UpsertResult, error) {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = navTuple(r)
	}
	res, err := db.BulkUpsert(ctx, s.pool, navUpsert, rows)
	if err != nil {
		return res, eris.Wrap(err, "postgres: upsert nav")
	}
	return res, nil
}

// navTuple orders a record's values as model.NavColumns.
func navTuple(r model.NavRecord) []any {
	return []any{
		r.SchemeType,
		r.SchemeCategory,
		r.SchemeSubCategory,
		r.SchemeCode,
		r.ISINGrowth,
		r.ISINReinv,
		r.SchemeName,
		numeric(r.NAV),
		r.NAVDate,
		r.FundStructure,
	}
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func (s *PostgresStore) EarliestNavDate(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT nav_date FROM nav_data ORDER BY nav_date ASC LIMIT 1`,
	).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: earliest nav date")
	}
	return &t, nil
}

func (s *PostgresStore) LookupNAV(ctx context.Context, schemeCode string, navDate time.Time) (*model.NavRecord, error) {
	var (
		r   model.NavRecord
		nav string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT scheme_type, scheme_category, scheme_sub_category, scheme_code, isin_growth, isin_reinv,
		        scheme_name, nav::text, nav_date, fund_structure
		 FROM nav_data WHERE scheme_code = $1 AND nav_date = $2`,
		schemeCode, navDate,
	).Scan(&r.SchemeType, &r.SchemeCategory, &r.SchemeSubCategory, &r.SchemeCode, &r.ISINGrowth,
		&r.ISINReinv, &r.SchemeName, &nav, &r.NAVDate, &r.FundStructure)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: lookup nav %s", schemeCode)
	}
	if r.NAV, err = decimal.NewFromString(nav); err != nil {
		return nil, eris.Wrapf(err, "postgres: parse stored nav %q", nav)
	}
	return &r, nil
}

func (s *PostgresStore) StartRun(ctx context.Context, source string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO nav_runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, source, string(model.RunStatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: start run for %s", source)
	}
	return id, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, id string, status model.RunStatus, result model.RunResult, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE nav_runs
		 SET status = $1, completed_at = $2, rows_parsed = $3, rows_valid = $4,
		     inserted = $5, updated = $6, error = NULLIF($7, '')
		 WHERE id = $8`,
		string(status), time.Now().UTC(), result.RowsParsed, result.RowsValid,
		result.Inserted, result.Updated, errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", id)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, status, started_at, completed_at, rows_parsed, rows_valid,
		        inserted, updated, COALESCE(error, '')
		 FROM nav_runs ORDER BY started_at DESC LIMIT $1`,
		runLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var entries []model.RunEntry
	for rows.Next() {
		var (
			e      model.RunEntry
			status string
		)
		if err := rows.Scan(&e.ID, &e.Source, &status, &e.StartedAt, &e.CompletedAt,
			&e.RowsParsed, &e.RowsValid, &e.Inserted, &e.Updated, &e.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		e.Status = model.RunStatus(status)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
