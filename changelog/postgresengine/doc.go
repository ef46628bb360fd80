// Package postgresengine provides a PostgreSQL implementation of the change log store.
//
// The store only reads: rows are written by the application that mutates courses.
// It supports multiple database adapters (pgx, sql.DB, sqlx) and routes
// eventually consistent reads to an optional replica.
//
// Expected table layout:
//
//	CREATE TABLE change_records (
//		id          BIGSERIAL PRIMARY KEY,
//		entity_kind TEXT        NOT NULL,
//		entity_id   TEXT,
//		action      TEXT        NOT NULL,
//		actor_id    TEXT,
//		occurred_at TIMESTAMPTZ NOT NULL,
//		changes     JSON
//	);
//
// The changes column is JSON rather than JSONB so the member order of snapshots survives.
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewStoreFromPGXPool(db)
//
//	// With a custom table name and logging
//	store, _ := postgresengine.NewStoreFromPGXPool(
//		db,
//		postgresengine.WithTableName("audit_logs"),
//		postgresengine.WithLogger(slog.Default()),
//	)
//
//	records, _ := store.Query(ctx, filter)
//	snapshots, _ := store.QueryEntitySnapshots(ctx, filter)
package postgresengine
