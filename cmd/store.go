package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/nav-cli/internal/fetcher"
	"github.com/sells-group/nav-cli/internal/loader"
	"github.com/sells-group/nav-cli/internal/navsync"
	"github.com/sells-group/nav-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "nav.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("no database_url configured (set store.database_url or NAV_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newLoader(st store.Store) *loader.Loader {
	return loader.New(st, loader.Options{
		Sizer: loader.MemoryBatchSizer(cfg.Loader.MinBatchSize, cfg.Loader.RowBytes),
	})
}

func newBulletins() *fetcher.Bulletins {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   cfg.Fetch.UserAgent,
		Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxAttempts: cfg.Fetch.MaxAttempts,
		RatePerSec:  rate.Limit(cfg.Fetch.RatePerSec),
	})
	return fetcher.NewBulletins(f, cfg.Fetch.BaseURL, cfg.Fetch.DataDir)
}

// newRunner wires a runner over st. Local-only commands pass withFetch false.
func newRunner(st store.Store, withFetch bool) *navsync.Runner {
	if !withFetch {
		return navsync.NewRunner(st, newLoader(st), nil)
	}
	return navsync.NewRunner(st, newLoader(st), newBulletins())
}
