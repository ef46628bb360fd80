package pgtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/coursehistory/coursehistory-go/changelog/postgresengine"
	"github.com/coursehistory/coursehistory-go/config"
)

// DSNEnv names the environment variable holding the test database DSN.
const DSNEnv = "COURSEHISTORY_TEST_DSN"

// TableName is the change log table the helpers create and fill.
const TableName = "change_records_test"

const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
	id          BIGSERIAL PRIMARY KEY,
	entity_kind TEXT        NOT NULL,
	entity_id   TEXT,
	action      TEXT        NOT NULL,
	actor_id    TEXT,
	occurred_at TIMESTAMPTZ NOT NULL,
	changes     JSON
)`

const insertSQL = `INSERT INTO ` + TableName +
	` (id, entity_kind, entity_id, action, actor_id, occurred_at, changes) VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Wrapper abstracts over the database handle a store was built on.
type Wrapper interface {
	Store() postgresengine.Store
	Exec(ctx context.Context, query string, args ...any) error
	Close()
}

type pgxPoolWrapper struct {
	pool  *pgxpool.Pool
	store postgresengine.Store
}

func (w *pgxPoolWrapper) Store() postgresengine.Store { return w.store }

func (w *pgxPoolWrapper) Exec(ctx context.Context, query string, args ...any) error {
	_, err := w.pool.Exec(ctx, query, args...)
	return err
}

func (w *pgxPoolWrapper) Close() { w.pool.Close() }

type sqlDBWrapper struct {
	db    *sql.DB
	store postgresengine.Store
}

func (w *sqlDBWrapper) Store() postgresengine.Store { return w.store }

func (w *sqlDBWrapper) Exec(ctx context.Context, query string, args ...any) error {
	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

func (w *sqlDBWrapper) Close() { _ = w.db.Close() }

type sqlxDBWrapper struct {
	db    *sqlx.DB
	store postgresengine.Store
}

func (w *sqlxDBWrapper) Store() postgresengine.Store { return w.store }

func (w *sqlxDBWrapper) Exec(ctx context.Context, query string, args ...any) error {
	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

func (w *sqlxDBWrapper) Close() { _ = w.db.Close() }

// CreateWrapper connects with the adapter selected by ADAPTER_TYPE and makes sure the test table exists.
// It skips the test when no test database is configured.
func CreateWrapper(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s is not set", DSNEnv)
	}

	ctx := context.Background()
	settings := config.DefaultSettings().Database
	options = append([]postgresengine.Option{postgresengine.WithTableName(TableName)}, options...)

	var wrapper Wrapper

	switch adapterType := strings.ToLower(os.Getenv("ADAPTER_TYPE")); adapterType {
	case typePGXPool, "":
		pool, err := config.OpenPGXPool(ctx, settings, dsn)
		require.NoError(t, err, "error connecting to DB pool in test setup")

		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating store")

		wrapper = &pgxPoolWrapper{pool: pool, store: store}

	case typeSQLDB:
		db, err := sql.Open("postgres", dsn)
		require.NoError(t, err, "error opening DB in test setup")

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating store")

		wrapper = &sqlDBWrapper{db: db, store: store}

	case typeSQLXDB:
		db, err := config.OpenSQLX(ctx, settings, dsn)
		require.NoError(t, err, "error opening DB in test setup")

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating store")

		wrapper = &sqlxDBWrapper{db: db, store: store}

	default:
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	require.NoError(t, wrapper.Exec(ctx, createTableSQL), "error creating the test table")

	return wrapper
}

// CleanUp empties the test table.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	err := wrapper.Exec(context.Background(), "TRUNCATE TABLE "+TableName+" RESTART IDENTITY")
	require.NoError(t, err, "error cleaning up the change records table")
}

// Row is one change record as the writing application stores it.
type Row struct {
	ID         int64
	EntityKind string
	EntityID   *string
	Action     string
	ActorID    *string
	OccurredAt time.Time
	Changes    *string
}

// InsertChangeRecords writes fixture rows into the test table.
func InsertChangeRecords(t testing.TB, wrapper Wrapper, rows ...Row) {
	t.Helper()

	for _, row := range rows {
		err := wrapper.Exec(context.Background(), insertSQL,
			row.ID, row.EntityKind, row.EntityID, row.Action, row.ActorID, row.OccurredAt, row.Changes)
		require.NoError(t, err, "error inserting fixture row %d", row.ID)
	}
}
