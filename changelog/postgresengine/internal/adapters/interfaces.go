package adapters

import "context"

// DBAdapter defines the interface for database operations needed by the change log store.
// The store never writes, so only reads are exposed.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}
