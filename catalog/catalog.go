package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/coursehistory/coursehistory-go/changelog"
)

var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyTableName        = errors.New("catalog table name must not be empty")
	ErrUnknownEntityKind     = errors.New("entity kind has no catalog table")
	ErrQueryingCatalogFailed = errors.New("querying catalog failed")
)

const (
	logMsgQueryExecuted = "executed catalog query"
	logMsgQueryFailed   = "catalog query failed"
	logAttrTable        = "table"
	logAttrRowCount     = "row_count"
	logAttrDurationMS   = "duration_ms"
	logAttrError        = "error"
)

// Querier is the part of *sqlx.DB the catalog needs.
type Querier interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

// Tables names the catalog tables.
type Tables struct {
	Courses           string
	Lessons           string
	Tests             string
	Attachments       string
	CourseDepartments string
	CourseLevels      string
	Users             string
	Statuses          string
	Departments       string
	Levels            string
}

// DefaultTables returns the table names of the standard schema.
func DefaultTables() Tables {
	return Tables{
		Courses:           "courses",
		Lessons:           "lessons",
		Tests:             "tests",
		Attachments:       "attachments",
		CourseDepartments: "course_departments",
		CourseLevels:      "course_levels",
		Users:             "users",
		Statuses:          "course_statuses",
		Departments:       "departments",
		Levels:            "levels",
	}
}

func (t Tables) validate() error {
	for _, name := range []string{
		t.Courses, t.Lessons, t.Tests, t.Attachments, t.CourseDepartments,
		t.CourseLevels, t.Users, t.Statuses, t.Departments, t.Levels,
	} {
		if name == "" {
			return ErrEmptyTableName
		}
	}

	return nil
}

// membershipTable returns the table holding the live rows of a dependent kind.
func (t Tables) membershipTable(kind changelog.EntityKind) (string, bool) {
	switch kind {
	case changelog.Lesson:
		return t.Lessons, true
	case changelog.Test:
		return t.Tests, true
	case changelog.Attachment:
		return t.Attachments, true
	case changelog.CourseDepartmentLink:
		return t.CourseDepartments, true
	case changelog.CourseLevelLink:
		return t.CourseLevels, true
	default:
		return "", false
	}
}

// Catalog implements the history lookups on a Postgres database.
type Catalog struct {
	db               Querier
	tables           Tables
	logger           changelog.Logger
	contextualLogger changelog.ContextualLogger
}

// Option configures a Catalog.
type Option func(*Catalog) error

// WithTables replaces the default table names.
func WithTables(tables Tables) Option {
	return func(c *Catalog) error {
		if err := tables.validate(); err != nil {
			return err
		}

		c.tables = tables
		return nil
	}
}

// WithLogger sets the logger for executed statements.
func WithLogger(logger changelog.Logger) Option {
	return func(c *Catalog) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets the context-aware logger for executed statements.
func WithContextualLogger(logger changelog.ContextualLogger) Option {
	return func(c *Catalog) error {
		c.contextualLogger = logger
		return nil
	}
}

// NewCatalogFromSQLX creates a Catalog on a sqlx database handle.
func NewCatalogFromSQLX(db *sqlx.DB, options ...Option) (Catalog, error) {
	if db == nil {
		return Catalog{}, ErrNilDatabaseConnection
	}

	return NewCatalog(db, options...)
}

// NewCatalog creates a Catalog on any Querier.
func NewCatalog(db Querier, options ...Option) (Catalog, error) {
	if db == nil {
		return Catalog{}, ErrNilDatabaseConnection
	}

	catalog := Catalog{db: db, tables: DefaultTables()}
	for _, option := range options {
		if err := option(&catalog); err != nil {
			return Catalog{}, err
		}
	}

	return catalog, nil
}

// CourseExists reports whether a course row exists.
func (c Catalog) CourseExists(ctx context.Context, courseID uuid.UUID) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id::text = $1)", pq.QuoteIdentifier(c.tables.Courses))

	var exists bool
	start := time.Now()
	if err := c.db.GetContext(ctx, &exists, query, courseID.String()); err != nil {
		return false, c.failed(ctx, c.tables.Courses, err)
	}

	c.executed(ctx, c.tables.Courses, 1, time.Since(start))

	return exists, nil
}

// LiveIDs lists the ids of the rows of a dependent kind whose course_id references the course.
func (c Catalog) LiveIDs(ctx context.Context, kind changelog.EntityKind, courseID uuid.UUID) ([]string, error) {
	table, ok := c.tables.membershipTable(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityKind, kind)
	}

	query := fmt.Sprintf(
		"SELECT id::text FROM %s WHERE course_id::text = $1 ORDER BY id",
		pq.QuoteIdentifier(table),
	)

	ids := make([]string, 0)
	start := time.Now()
	if err := c.db.SelectContext(ctx, &ids, query, courseID.String()); err != nil {
		return nil, c.failed(ctx, table, err)
	}

	c.executed(ctx, table, len(ids), time.Since(start))

	return ids, nil
}

// DisplayNames resolves user ids to their full names.
func (c Catalog) DisplayNames(ctx context.Context, actorIDs []string) (map[string]string, error) {
	return c.names(ctx, c.tables.Users, "full_name", actorIDs)
}

// Statuses returns the lookup of course status names.
func (c Catalog) Statuses() NameLookup {
	return NameLookup{catalog: c, table: c.tables.Statuses, column: "name"}
}

// Departments returns the lookup of department names.
func (c Catalog) Departments() NameLookup {
	return NameLookup{catalog: c, table: c.tables.Departments, column: "name"}
}

// Levels returns the lookup of level names.
func (c Catalog) Levels() NameLookup {
	return NameLookup{catalog: c, table: c.tables.Levels, column: "name"}
}

// Lessons returns the lookup of live lesson titles.
func (c Catalog) Lessons() NameLookup {
	return NameLookup{catalog: c, table: c.tables.Lessons, column: "title"}
}

// NameLookup resolves the ids of one table to the text of one of its columns.
type NameLookup struct {
	catalog Catalog
	table   string
	column  string
}

// Names implements history.NameLookup.
func (l NameLookup) Names(ctx context.Context, ids []string) (map[string]string, error) {
	return l.catalog.names(ctx, l.table, l.column, ids)
}

type nameRow struct {
	ID   string         `db:"id"`
	Name sql.NullString `db:"name"`
}

func (c Catalog) names(ctx context.Context, table, column string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	query := fmt.Sprintf(
		"SELECT id::text AS id, %s AS name FROM %s WHERE id::text = ANY($1)",
		pq.QuoteIdentifier(column),
		pq.QuoteIdentifier(table),
	)

	rows := make([]nameRow, 0, len(ids))
	start := time.Now()
	if err := c.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, c.failed(ctx, table, err)
	}

	c.executed(ctx, table, len(rows), time.Since(start))

	for _, row := range rows {
		if row.Name.Valid {
			names[row.ID] = row.Name.String
		}
	}

	return names, nil
}

func (c Catalog) executed(ctx context.Context, table string, rowCount int, duration time.Duration) {
	args := []any{logAttrTable, table, logAttrRowCount, rowCount, logAttrDurationMS, float64(duration.Microseconds()) / 1000}

	if c.logger != nil {
		c.logger.Debug(logMsgQueryExecuted, args...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.DebugContext(ctx, logMsgQueryExecuted, args...)
	}
}

func (c Catalog) failed(ctx context.Context, table string, err error) error {
	args := []any{logAttrTable, table, logAttrError, err.Error()}

	if c.logger != nil {
		c.logger.Error(logMsgQueryFailed, args...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.ErrorContext(ctx, logMsgQueryFailed, args...)
	}

	return errors.Join(ErrQueryingCatalogFailed, err)
}
