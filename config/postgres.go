package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// sqlxIdleShare is the share of open connections the sqlx pool keeps idle.
const sqlxIdleShare = 4

var ErrConnectingDatabaseFailed = errors.New("connecting to database failed")

// PGXPoolConfig builds a pgxpool.Config for dsn with the pool limits of the settings.
func PGXPoolConfig(settings DatabaseSettings, dsn string) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}

	poolConfig.MaxConns = settings.MaxConns
	poolConfig.MinConns = settings.MinConns
	poolConfig.MaxConnLifetime = settings.MaxConnLifetime
	poolConfig.MaxConnIdleTime = settings.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = settings.ConnectTimeout

	return poolConfig, nil
}

// OpenPGXPool connects a pgxpool.Pool and checks the connection.
func OpenPGXPool(ctx context.Context, settings DatabaseSettings, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := PGXPoolConfig(settings, dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Join(ErrConnectingDatabaseFailed, err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(ErrConnectingDatabaseFailed, err)
	}

	return pool, nil
}

// OpenSQLX opens a *sqlx.DB on the lib/pq driver with the pool limits of the settings and checks the connection.
func OpenSQLX(ctx context.Context, settings DatabaseSettings, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Join(ErrConnectingDatabaseFailed, err)
	}

	ConfigureSQLXPool(db, settings)

	pingCtx, cancel := context.WithTimeout(ctx, settings.ConnectTimeout)
	defer cancel()

	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrConnectingDatabaseFailed, err)
	}

	return db, nil
}

// ConfigureSQLXPool applies the pool limits of the settings to db.
func ConfigureSQLXPool(db *sqlx.DB, settings DatabaseSettings) {
	db.SetMaxOpenConns(int(settings.MaxConns))
	db.SetMaxIdleConns(max(int(settings.MinConns), int(settings.MaxConns)/sqlxIdleShare))
	db.SetConnMaxLifetime(settings.MaxConnLifetime)
	db.SetConnMaxIdleTime(settings.MaxConnIdleTime)
}
