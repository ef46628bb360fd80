package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/coursehistory/coursehistory-go/changelog"
	"github.com/coursehistory/coursehistory-go/changelog/postgresengine/internal/adapters"
)

const (
	defaultTableName              = "change_records"
	logMsgBuildSelectQueryFailed  = "failed to build select query"
	logMsgDBQueryFailed           = "database query execution failed"
	logMsgCloseRowsFailed         = "failed to close database rows"
	logMsgScanRowFailed           = "failed to scan database row"
	logMsgIterateRowsFailed       = "failed to iterate database rows"
	logMsgChangeRecordSkipped     = "change record skipped, row can not be read as a change record"
	logMsgQueryCompleted          = "query completed"
	logMsgSnapshotQueryCompleted  = "snapshot query completed"
	logMsgSQLExecuted             = "executed sql for: "
	logMsgOperation               = "changelog operation: "
	logAttrError                  = "error"
	logAttrRecordID               = "record_id"
	logAttrQuery                  = "query"
	logAttrRecordCount            = "record_count"
	logAttrDurationMS             = "duration_ms"
	logAttrConsistency            = "consistency"
	logActionQuery                = "query"
	logActionQuerySnapshots       = "query_snapshots"
	colID                         = "id"
	colEntityKind                 = "entity_kind"
	colEntityID                   = "entity_id"
	colAction                     = "action"
	colActorID                    = "actor_id"
	colOccurredAt                 = "occurred_at"
	colChanges                    = "changes"
	dialectPostgres               = "postgres"
	alwaysFalse                   = "FALSE"
)

// storedActionSpellings lists every spelling writers have used for an Action.
var storedActionSpellings = map[changelog.Action][]string{
	changelog.Created:  {"Created", "Added"},
	changelog.Modified: {"Modified", "Updated"},
	changelog.Deleted:  {"Deleted"},
}

type sqlQueryString = string

// Store reads change records from a Postgres change log table.
// It never writes: the change log is populated by an external writer.
type Store struct {
	db               adapters.DBAdapter
	tableName        string
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

type queryResultRow struct {
	id          int64
	entityKind  string
	entityID    *string
	action      string
	actorID     *string
	occurredAt  time.Time
	changesJSON []byte
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, changelog.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolAndReplica creates a new Store using a primary and a replica pgx Pool.
// The replica serves reads whose context carries changelog.EventualConsistency.
func NewStoreFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, changelog.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, changelog.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, changelog.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

// NewStoreFromSQLXAndReplica creates a new Store using a primary and a replica sqlx.DB.
func NewStoreFromSQLXAndReplica(db *sqlx.DB, replica *sqlx.DB, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, changelog.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapterWithReplica(db, replica), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	store := Store{
		db:        db,
		tableName: defaultTableName,
	}

	for _, option := range options {
		if err := option(&store); err != nil {
			return Store{}, err
		}
	}

	return store, nil
}

// Query retrieves change records matching the changelog.Filter,
// newest first (occurred_at descending, ties by ascending id so the order is stable).
func (s Store) Query(ctx context.Context, filter changelog.Filter) (changelog.ChangeRecords, error) {
	ctx, span := s.startQuerySpan(ctx, operationQuery)
	start := time.Now()

	var empty changelog.ChangeRecords

	sqlQuery, buildQueryErr := s.buildSelectQuery(filter)
	if buildQueryErr != nil {
		s.logError(ctx, logMsgBuildSelectQueryFailed, buildQueryErr)
		s.recordErrorMetrics(ctx, operationQuery, errorTypeBuildQuery)
		s.finishQuerySpanError(span, errorTypeBuildQuery, time.Since(start))

		return empty, buildQueryErr
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery, logActionQuery)
	if queryErr != nil {
		s.recordErrorMetrics(ctx, operationQuery, errorTypeDatabaseQuery)
		s.finishQuerySpanError(span, errorTypeDatabaseQuery, time.Since(start))

		return empty, queryErr
	}
	defer s.closeRows(ctx, rows)

	records, scanErr := s.processQueryResults(ctx, rows)
	if scanErr != nil {
		s.recordErrorMetrics(ctx, operationQuery, errorTypeRowScan)
		s.finishQuerySpanError(span, errorTypeRowScan, time.Since(start))

		return empty, scanErr
	}

	duration := time.Since(start)
	s.logOperation(
		ctx,
		logMsgQueryCompleted,
		logAttrRecordCount, len(records),
		logAttrDurationMS, toMilliseconds(duration),
		logAttrConsistency, changelog.GetConsistencyLevel(ctx).String(),
	)
	s.recordQueryMetrics(ctx, operationQuery, len(records), duration)
	s.finishQuerySpanSuccess(span, len(records), duration)

	return records, nil
}

// QueryEntitySnapshots retrieves only the entity id and the changes payload of matching change records.
// It is the lightweight scan used to recover membership of deleted entities from their snapshots.
func (s Store) QueryEntitySnapshots(ctx context.Context, filter changelog.Filter) ([]changelog.EntitySnapshot, error) {
	ctx, span := s.startQuerySpan(ctx, operationQuerySnapshots)
	start := time.Now()

	sqlQuery, buildQueryErr := s.buildSnapshotSelectQuery(filter)
	if buildQueryErr != nil {
		s.logError(ctx, logMsgBuildSelectQueryFailed, buildQueryErr)
		s.recordErrorMetrics(ctx, operationQuerySnapshots, errorTypeBuildQuery)
		s.finishQuerySpanError(span, errorTypeBuildQuery, time.Since(start))

		return nil, buildQueryErr
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery, logActionQuerySnapshots)
	if queryErr != nil {
		s.recordErrorMetrics(ctx, operationQuerySnapshots, errorTypeDatabaseQuery)
		s.finishQuerySpanError(span, errorTypeDatabaseQuery, time.Since(start))

		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	snapshots := make([]changelog.EntitySnapshot, 0)

	for rows.Next() {
		var snapshot changelog.EntitySnapshot

		if rowScanErr := rows.Scan(&snapshot.EntityID, &snapshot.ChangesJSON); rowScanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, rowScanErr)
			s.recordErrorMetrics(ctx, operationQuerySnapshots, errorTypeRowScan)
			s.finishQuerySpanError(span, errorTypeRowScan, time.Since(start))

			return nil, errors.Join(changelog.ErrScanningDBRowFailed, rowScanErr)
		}

		snapshots = append(snapshots, snapshot)
	}

	if iterErr := rows.Err(); iterErr != nil {
		s.logError(ctx, logMsgIterateRowsFailed, iterErr)
		s.recordErrorMetrics(ctx, operationQuerySnapshots, errorTypeRowScan)
		s.finishQuerySpanError(span, errorTypeRowScan, time.Since(start))

		return nil, errors.Join(changelog.ErrQueryingChangeRecordsFailed, iterErr)
	}

	duration := time.Since(start)
	s.logOperation(
		ctx,
		logMsgSnapshotQueryCompleted,
		logAttrRecordCount, len(snapshots),
		logAttrDurationMS, toMilliseconds(duration),
	)
	s.recordQueryMetrics(ctx, operationQuerySnapshots, len(snapshots), duration)
	s.finishQuerySpanSuccess(span, len(snapshots), duration)

	return snapshots, nil
}

// executeQuery executes the SQL query and logs it with timing information.
func (s Store) executeQuery(ctx context.Context, sqlQuery sqlQueryString, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)

		return nil, errors.Join(changelog.ErrQueryingChangeRecordsFailed, queryErr)
	}

	return rows, nil
}

// closeRows closes database rows and logs any errors.
func (s Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// processQueryResults converts database rows into change records.
// A row with an unknown action or without entity kind is skipped with a warning.
func (s Store) processQueryResults(ctx context.Context, rows adapters.DBRows) (changelog.ChangeRecords, error) {
	records := make(changelog.ChangeRecords, 0)

	for rows.Next() {
		var result queryResultRow

		rowScanErr := rows.Scan(
			&result.id,
			&result.entityKind,
			&result.entityID,
			&result.action,
			&result.actorID,
			&result.occurredAt,
			&result.changesJSON,
		)
		if rowScanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, rowScanErr)

			return nil, errors.Join(changelog.ErrScanningDBRowFailed, rowScanErr)
		}

		record, buildErr := changelog.BuildChangeRecord(
			result.id,
			result.entityKind,
			result.entityID,
			result.action,
			result.actorID,
			result.occurredAt,
			result.changesJSON,
		)
		if buildErr != nil {
			s.logWarn(ctx, logMsgChangeRecordSkipped, logAttrRecordID, result.id, logAttrError, buildErr.Error())
			continue
		}

		records = append(records, record)
	}

	if iterErr := rows.Err(); iterErr != nil {
		s.logError(ctx, logMsgIterateRowsFailed, iterErr)

		return nil, errors.Join(changelog.ErrQueryingChangeRecordsFailed, iterErr)
	}

	return records, nil
}

func (s Store) buildSelectQuery(filter changelog.Filter) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(colID, colEntityKind, colEntityID, colAction, colActorID, colOccurredAt, colChanges).
		Order(goqu.I(colOccurredAt).Desc(), goqu.I(colID).Asc())

	selectStmt = s.addWhereClause(filter, selectStmt)

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(changelog.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (s Store) buildSnapshotSelectQuery(filter changelog.Filter) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(colEntityID, colChanges).
		Order(goqu.I(colID).Asc())

	selectStmt = s.addWhereClause(filter, selectStmt)

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(changelog.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (s Store) addWhereClause(filter changelog.Filter, selectStmt *goqu.SelectDataset) *goqu.SelectDataset {
	itemsExpressions := make([]goqu.Expression, 0)

	for _, item := range filter.Items() {
		if item.MatchesNothing() {
			itemsExpressions = append(itemsExpressions, goqu.L(alwaysFalse))
			continue
		}

		entityKindExpressions := make([]goqu.Expression, 0)
		for _, entityKind := range item.EntityKinds() {
			entityKindExpressions = append(
				entityKindExpressions,
				goqu.Ex{colEntityKind: string(entityKind)},
			)
		}

		// entity kinds must always be filtered with OR
		itemExpressions := []goqu.Expression{goqu.Or(entityKindExpressions...)}

		if item.RestrictsToEntityIDs() {
			itemExpressions = append(itemExpressions, goqu.C(colEntityID).In(item.EntityIDs()))
		}

		itemExpressions = append(itemExpressions, actionExpression(item.Actions()))

		itemsExpressions = append(itemsExpressions, goqu.And(itemExpressions...))
	}

	occurredAtExpressions := make([]goqu.Expression, 0)

	if !filter.OccurredFrom().IsZero() {
		occurredAtExpressions = append(
			occurredAtExpressions,
			goqu.C(colOccurredAt).Gte(filter.OccurredFrom()),
		)
	}

	if !filter.OccurredUntil().IsZero() {
		occurredAtExpressions = append(
			occurredAtExpressions,
			goqu.C(colOccurredAt).Lte(filter.OccurredUntil()),
		)
	}

	selectStmt = selectStmt.Where(
		goqu.And(
			goqu.Or(itemsExpressions...),
			goqu.And(occurredAtExpressions...),
		),
	)

	return selectStmt
}

func actionExpression(actions []changelog.Action) exp.ExpressionList {
	if len(actions) == 0 {
		return goqu.And()
	}

	spellings := make([]string, 0, len(actions)*2)
	for _, action := range actions {
		spellings = append(spellings, storedActionSpellings[action]...)
	}

	return goqu.And(goqu.C(colAction).In(spellings))
}
