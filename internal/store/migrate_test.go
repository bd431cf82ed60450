package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectMigrationLock(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS nav_schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
}

func expectMigrationUnlock(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func TestMigrationNames_Sorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_nav_data.sql", "002_create_nav_runs.sql"}, names)
}

func TestMigratePostgres_FreshDB(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigrationLock(mock)
	mock.ExpectQuery("SELECT filename FROM nav_schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS nav_data").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO nav_schema_migrations").WithArgs("001_create_nav_data.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS nav_runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO nav_schema_migrations").WithArgs("002_create_nav_runs.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectMigrationUnlock(mock)

	require.NoError(t, MigratePostgres(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratePostgres_SkipsApplied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigrationLock(mock)
	mock.ExpectQuery("SELECT filename FROM nav_schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("001_create_nav_data.sql"))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS nav_runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO nav_schema_migrations").WithArgs("002_create_nav_runs.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectMigrationUnlock(mock)

	s := NewPostgresFromPool(mock)
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratePostgres_ApplyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectMigrationLock(mock)
	mock.ExpectQuery("SELECT filename FROM nav_schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS nav_data").WillReturnError(errors.New("permission denied"))
	expectMigrationUnlock(mock)

	err = MigratePostgres(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 001_create_nav_data.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratePostgres_LockError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockID).WillReturnError(errors.New("no conn"))

	err = MigratePostgres(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire migration lock")
}
