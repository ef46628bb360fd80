package postgresengine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehistory/coursehistory-go/changelog"
	"github.com/coursehistory/coursehistory-go/changelog/postgresengine/internal/adapters"
	"github.com/coursehistory/coursehistory-go/testutil/testdoubles"
)

/***** test doubles for the DB adapter *****/

type fakeDB struct {
	rows     *fakeRows
	err      error
	executed []string
}

func (db *fakeDB) Query(_ context.Context, query string) (adapters.DBRows, error) {
	db.executed = append(db.executed, query)

	if db.err != nil {
		return nil, db.err
	}

	return db.rows, nil
}

type fakeRows struct {
	values  [][]any
	pos     int
	scanErr error
	iterErr error
	closed  bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}

	r.pos++

	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}

	row := r.values[r.pos-1]
	for i := range dest {
		target := reflect.ValueOf(dest[i]).Elem()
		if row[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(row[i]))
	}

	return nil
}

func (r *fakeRows) Err() error {
	return r.iterErr
}

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

func ptr(s string) *string {
	return &s
}

func changeRow(id int64, kind string, entityID, action string, actorID *string, occurredAt time.Time, changes string) []any {
	var payload []byte
	if changes != "" {
		payload = []byte(changes)
	}

	return []any{id, kind, ptr(entityID), action, actorID, occurredAt, payload}
}

func newTestStore(t *testing.T, db adapters.DBAdapter, options ...Option) Store {
	t.Helper()

	store, err := newStore(db, options...)
	require.NoError(t, err)

	return store
}

/***** query building *****/

func Test_BuildSelectQuery(t *testing.T) {
	store := newTestStore(t, &fakeDB{})

	tests := []struct {
		name        string
		filter      changelog.Filter
		contains    []string
		notContains []string
	}{
		{
			name:        "empty filter reads the whole table",
			filter:      changelog.BuildChangeFilter().MatchingAnyRecord(),
			contains:    []string{`FROM "change_records"`, `ORDER BY "occurred_at" DESC, "id" ASC`},
			notContains: []string{"WHERE"},
		},
		{
			name: "kind and ids",
			filter: changelog.BuildChangeFilter().
				Matching().
				AnyEntityKindOf(changelog.Course).
				AndAnyEntityIDOf("c1").
				OrMatching().
				AnyEntityKindOf(changelog.Lesson).
				AndAnyEntityIDOf("l2", "l1").
				Finalize(),
			contains: []string{
				`"entity_kind" = 'Course'`,
				`"entity_id" IN ('c1')`,
				`"entity_kind" = 'Lesson'`,
				`"entity_id" IN ('l1', 'l2')`,
				" OR ",
			},
			notContains: []string{"FALSE"},
		},
		{
			name: "empty id set renders an always false term",
			filter: changelog.BuildChangeFilter().
				Matching().
				AnyEntityKindOf(changelog.Course).
				AndAnyEntityIDOf("c1").
				OrMatching().
				AnyEntityKindOf(changelog.Test).
				AndAnyEntityIDOf().
				Finalize(),
			contains:    []string{"FALSE", `"entity_id" IN ('c1')`},
			notContains: []string{`'Test'`},
		},
		{
			name: "actions expand to every stored spelling",
			filter: changelog.BuildChangeFilter().
				Matching().
				AnyEntityKindOf(changelog.Lesson).
				AndAnyActionOf(changelog.Created, changelog.Deleted).
				Finalize(),
			contains: []string{`"action" IN ('Created', 'Added', 'Deleted')`},
		},
		{
			name: "time bounds",
			filter: changelog.BuildChangeFilter().
				OccurredFrom(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)).
				OccurredUntil(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)).
				MatchingAnyRecord(),
			contains: []string{`"occurred_at" >= `, `"occurred_at" <= `},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			sqlQuery, err := store.buildSelectQuery(tt.filter)

			// assert
			require.NoError(t, err)
			for _, fragment := range tt.contains {
				assert.Contains(t, sqlQuery, fragment)
			}
			for _, fragment := range tt.notContains {
				assert.NotContains(t, sqlQuery, fragment)
			}
		})
	}
}

func Test_BuildSnapshotSelectQuery_ProjectsIDAndPayload(t *testing.T) {
	store := newTestStore(t, &fakeDB{}, WithTableName("audit_logs"))

	filter := changelog.BuildChangeFilter().
		Matching().
		AnyEntityKindOf(changelog.Lesson).
		AndAnyActionOf(changelog.Deleted).
		Finalize()

	sqlQuery, err := store.buildSnapshotSelectQuery(filter)

	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `SELECT "entity_id", "changes" FROM "audit_logs"`)
	assert.Contains(t, sqlQuery, `"action" IN ('Deleted')`)
}

/***** reading *****/

func Test_Query_MapsRowsToChangeRecords(t *testing.T) {
	// setup
	local := time.FixedZone("UTC+7", 7*60*60)
	occurredAt := time.Date(2025, 3, 1, 17, 0, 0, 0, local)
	rows := &fakeRows{values: [][]any{
		changeRow(2, "Lesson", "l1", "Updated", ptr("u1"), occurredAt, `{"oldValues":{"Title":"A"},"newValues":{"Title":"B"}}`),
		changeRow(1, "Course", "c1", "Added", nil, occurredAt.Add(-time.Hour), ""),
	}}
	db := &fakeDB{rows: rows}
	store := newTestStore(t, db)

	// act
	records, err := store.Query(context.Background(), changelog.BuildChangeFilter().MatchingAnyRecord())

	// assert
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, rows.closed)
	assert.Len(t, db.executed, 1)

	assert.Equal(t, int64(2), records[0].ID)
	assert.Equal(t, changelog.Lesson, records[0].EntityKind)
	assert.Equal(t, changelog.Modified, records[0].Action)
	assert.Equal(t, "l1", records[0].EntityIDOrEmpty())
	assert.Equal(t, time.UTC, records[0].OccurredAt.Location())
	assert.True(t, records[0].OccurredAt.Equal(occurredAt))
	assert.True(t, records[0].HasSnapshot())

	assert.Equal(t, changelog.Created, records[1].Action)
	assert.Nil(t, records[1].ActorID)
	assert.False(t, records[1].HasSnapshot())
}

func Test_Query_Errors(t *testing.T) {
	tests := []struct {
		name    string
		db      *fakeDB
		wantErr error
	}{
		{
			name:    "query fails",
			db:      &fakeDB{err: errors.New("connection refused")},
			wantErr: changelog.ErrQueryingChangeRecordsFailed,
		},
		{
			name:    "scan fails",
			db:      &fakeDB{rows: &fakeRows{values: [][]any{{}}, scanErr: errors.New("bad column")}},
			wantErr: changelog.ErrScanningDBRowFailed,
		},
		{
			name:    "iteration fails",
			db:      &fakeDB{rows: &fakeRows{iterErr: errors.New("conn reset")}},
			wantErr: changelog.ErrQueryingChangeRecordsFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logSpy := testdoubles.NewSpyLogger()
			store := newTestStore(t, tt.db, WithLogger(logger))

			records, err := store.Query(context.Background(), changelog.BuildChangeFilter().MatchingAnyRecord())

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, records)
			assert.Positive(t, logSpy.GetRecordCount())
		})
	}
}

func Test_Query_SkipsRowsThatAreNoChangeRecords(t *testing.T) {
	// setup
	occurredAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	logger, logSpy := testdoubles.NewSpyLogger()
	db := &fakeDB{rows: &fakeRows{values: [][]any{
		changeRow(3, "Lesson", "l1", "Modified", nil, occurredAt, ""),
		changeRow(2, "Lesson", "l1", "Archived", nil, occurredAt, ""),
		changeRow(1, "", "l1", "Created", nil, occurredAt, ""),
	}}}
	store := newTestStore(t, db, WithLogger(logger))

	// act
	records, err := store.Query(context.Background(), changelog.BuildChangeFilter().MatchingAnyRecord())

	// assert
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(3), records[0].ID)

	assert.True(t, logSpy.HasWarnLogWithMessage(logMsgChangeRecordSkipped).WithAttr(logAttrRecordID, "2").Assert())

	skipped := 0
	for _, logged := range logSpy.GetRecords() {
		if logged.Message == logMsgChangeRecordSkipped {
			skipped++
		}
	}
	assert.Equal(t, 2, skipped)
}

func Test_QueryEntitySnapshots_ScansProjection(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{values: [][]any{
		{ptr("l1"), []byte(`{"oldValues":{"CourseId":"c1"},"newValues":{}}`)},
		{nil, []byte(nil)},
	}}}
	store := newTestStore(t, db)

	snapshots, err := store.QueryEntitySnapshots(context.Background(), changelog.BuildChangeFilter().MatchingAnyRecord())

	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "l1", *snapshots[0].EntityID)
	assert.Nil(t, snapshots[1].EntityID)
	assert.Contains(t, db.executed[0], `SELECT "entity_id", "changes"`)
}

/***** construction *****/

func Test_NewStore_Validation(t *testing.T) {
	_, err := NewStoreFromPGXPool(nil)
	assert.ErrorIs(t, err, changelog.ErrNilDatabaseConnection)

	_, err = NewStoreFromSQLDB(nil)
	assert.ErrorIs(t, err, changelog.ErrNilDatabaseConnection)

	_, err = NewStoreFromSQLX(nil)
	assert.ErrorIs(t, err, changelog.ErrNilDatabaseConnection)

	_, err = NewStoreFromSQLXAndReplica(nil, nil)
	assert.ErrorIs(t, err, changelog.ErrNilDatabaseConnection)

	_, err = newStore(&fakeDB{}, WithTableName(""))
	assert.ErrorIs(t, err, changelog.ErrEmptyTableNameSupplied)
}

/***** observability *****/

func Test_Query_Observability(t *testing.T) {
	// setup
	occurredAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	logger, logSpy := testdoubles.NewSpyLogger()
	metrics := testdoubles.NewMetricsCollectorSpy()
	tracing := testdoubles.NewTracingCollectorSpy()

	db := &fakeDB{rows: &fakeRows{values: [][]any{
		changeRow(1, "Course", "c1", "Modified", nil, occurredAt, ""),
	}}}
	store := newTestStore(t, db, WithLogger(logger), WithMetrics(metrics), WithTracing(tracing))

	// act
	ctx := changelog.WithEventualConsistency(context.Background())
	_, err := store.Query(ctx, changelog.BuildChangeFilter().MatchingAnyRecord())

	// assert
	require.NoError(t, err)

	assert.True(t, logSpy.HasDebugLogWithMessage(logMsgSQLExecuted+logActionQuery).WithDurationMS().Assert())
	assert.True(t, logSpy.HasInfoLogWithMessage(logMsgOperation+logMsgQueryCompleted).
		WithDurationMS().
		WithAttr(logAttrRecordCount, "1").
		WithAttr(logAttrConsistency, "eventual").
		Assert())

	assert.True(t, metrics.HasDurationRecord(metricQueryDuration, spanAttrOperation, operationQuery))
	assert.True(t, metrics.HasValueRecord(metricRecordsQueried, 1))

	assert.True(t, tracing.HasSpanRecordForName(spanNameQuery).
		WithStatus(statusSuccess).
		WithStartAttribute(spanAttrConsistency, "eventual").
		WithEndAttribute(spanAttrRecordCount, "1").
		Assert())
}

func Test_Query_ErrorObservability(t *testing.T) {
	metrics := testdoubles.NewMetricsCollectorSpy()
	tracing := testdoubles.NewTracingCollectorSpy()
	store := newTestStore(t, &fakeDB{err: errors.New("boom")}, WithMetrics(metrics), WithTracing(tracing))

	_, err := store.Query(context.Background(), changelog.BuildChangeFilter().MatchingAnyRecord())

	assert.Error(t, err)
	assert.True(t, metrics.HasCounterRecord(metricDatabaseErrors, spanAttrErrorType, errorTypeDatabaseQuery))
	assert.True(t, tracing.HasSpanRecordForName(spanNameQuery).
		WithStatus(statusError).
		WithEndAttribute(spanAttrErrorType, errorTypeDatabaseQuery).
		Assert())
}
