// Package pgtest provides helpers for integration tests against a real PostgreSQL database.
//
// Tests using it are skipped unless COURSEHISTORY_TEST_DSN is set. The adapter the store runs on
// is picked with ADAPTER_TYPE (pgx.pool, sql.db or sqlx.db; pgx.pool when empty), so the same
// test suite can run against every driver.
//
// Usage:
//
//	wrapper := pgtest.CreateWrapper(t)
//	defer wrapper.Close()
//
//	pgtest.CleanUp(t, wrapper)
//	pgtest.InsertChangeRecords(t, wrapper, pgtest.Row{...})
//	store := wrapper.Store()
package pgtest
