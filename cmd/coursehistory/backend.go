package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/coursehistory/coursehistory-go/catalog"
	"github.com/coursehistory/coursehistory-go/changelog/postgresengine"
	"github.com/coursehistory/coursehistory-go/config"
	"github.com/coursehistory/coursehistory-go/history"
)

// backend holds the database handles of one run and the store and catalog built on them.
type backend struct {
	store   postgresengine.Store
	catalog catalog.Catalog
	closers []func()
}

func (b backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend connects the change log store with the configured driver and the catalog through sqlx.
// A configured replica serves the change log reads.
func openBackend(
	ctx context.Context,
	settings config.Settings,
	logs loggers,
	tracer history.TracingCollector,
	metrics history.MetricsCollector,
) (backend, error) {

	var b backend
	db := settings.Database

	catalogDB, err := config.OpenSQLX(ctx, db, db.PrimaryDSN)
	if err != nil {
		return backend{}, err
	}
	b.closers = append(b.closers, func() { _ = catalogDB.Close() })

	catalogOptions := []catalog.Option{catalog.WithLogger(logs.logger)}
	if logs.contextualLogger != nil {
		catalogOptions = append(catalogOptions, catalog.WithContextualLogger(logs.contextualLogger))
	}

	b.catalog, err = catalog.NewCatalogFromSQLX(catalogDB, catalogOptions...)
	if err != nil {
		b.close()
		return backend{}, err
	}

	storeOptions := []postgresengine.Option{
		postgresengine.WithTableName(db.ChangeLogTable),
		postgresengine.WithLogger(logs.logger),
		postgresengine.WithTracing(tracer),
		postgresengine.WithMetrics(metrics),
	}
	if logs.contextualLogger != nil {
		storeOptions = append(storeOptions, postgresengine.WithContextualLogger(logs.contextualLogger))
	}

	switch db.Driver {
	case config.DriverSQLX:
		b.store, err = openSQLXStore(ctx, db, catalogDB, &b, storeOptions)
	default:
		b.store, err = openPGXStore(ctx, db, &b, storeOptions)
	}

	if err != nil {
		b.close()
		return backend{}, err
	}

	return b, nil
}

func openPGXStore(
	ctx context.Context,
	db config.DatabaseSettings,
	b *backend,
	options []postgresengine.Option,
) (postgresengine.Store, error) {

	primary, err := config.OpenPGXPool(ctx, db, db.PrimaryDSN)
	if err != nil {
		return postgresengine.Store{}, err
	}
	b.closers = append(b.closers, primary.Close)

	if db.ReplicaDSN == "" {
		return postgresengine.NewStoreFromPGXPool(primary, options...)
	}

	var replica *pgxpool.Pool
	if replica, err = config.OpenPGXPool(ctx, db, db.ReplicaDSN); err != nil {
		return postgresengine.Store{}, err
	}
	b.closers = append(b.closers, replica.Close)

	return postgresengine.NewStoreFromPGXPoolAndReplica(primary, replica, options...)
}

func openSQLXStore(
	ctx context.Context,
	db config.DatabaseSettings,
	primary *sqlx.DB,
	b *backend,
	options []postgresengine.Option,
) (postgresengine.Store, error) {

	if db.ReplicaDSN == "" {
		return postgresengine.NewStoreFromSQLX(primary, options...)
	}

	replica, err := config.OpenSQLX(ctx, db, db.ReplicaDSN)
	if err != nil {
		return postgresengine.Store{}, err
	}
	b.closers = append(b.closers, func() { _ = replica.Close() })

	return postgresengine.NewStoreFromSQLXAndReplica(primary, replica, options...)
}
