package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehistory/coursehistory-go/changelog"
	"github.com/coursehistory/coursehistory-go/testutil/testdoubles"
)

type executedQuery struct {
	sql  string
	args []any
}

// fakeQuerier answers every statement with the configured rows and remembers what it was asked.
type fakeQuerier struct {
	exists   bool
	ids      []string
	nameRows []nameRow
	err      error
	executed []executedQuery
}

func (f *fakeQuerier) SelectContext(_ context.Context, dest any, query string, args ...any) error {
	f.executed = append(f.executed, executedQuery{sql: query, args: args})
	if f.err != nil {
		return f.err
	}

	switch d := dest.(type) {
	case *[]string:
		*d = append(*d, f.ids...)
	case *[]nameRow:
		*d = append(*d, f.nameRows...)
	default:
		return errors.New("unexpected destination")
	}

	return nil
}

func (f *fakeQuerier) GetContext(_ context.Context, dest any, query string, args ...any) error {
	f.executed = append(f.executed, executedQuery{sql: query, args: args})
	if f.err != nil {
		return f.err
	}

	*(dest.(*bool)) = f.exists

	return nil
}

func Test_Catalog_CourseExists(t *testing.T) {
	// setup
	db := &fakeQuerier{exists: true}
	catalog, err := NewCatalog(db)
	require.NoError(t, err)
	courseID := uuid.New()

	// act
	exists, err := catalog.CourseExists(context.Background(), courseID)

	// assert
	require.NoError(t, err)
	assert.True(t, exists)
	require.Len(t, db.executed, 1)
	assert.Equal(t, `SELECT EXISTS (SELECT 1 FROM "courses" WHERE id::text = $1)`, db.executed[0].sql)
	assert.Equal(t, []any{courseID.String()}, db.executed[0].args)
}

func Test_Catalog_LiveIDs(t *testing.T) {
	testCases := []struct {
		kind  changelog.EntityKind
		table string
	}{
		{changelog.Lesson, `"lessons"`},
		{changelog.Test, `"tests"`},
		{changelog.Attachment, `"attachments"`},
		{changelog.CourseDepartmentLink, `"course_departments"`},
		{changelog.CourseLevelLink, `"course_levels"`},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			// arrange
			db := &fakeQuerier{ids: []string{"a", "b"}}
			catalog, err := NewCatalog(db)
			require.NoError(t, err)

			// act
			ids, err := catalog.LiveIDs(context.Background(), tc.kind, uuid.New())

			// assert
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids)
			assert.Equal(t,
				"SELECT id::text FROM "+tc.table+" WHERE course_id::text = $1 ORDER BY id",
				db.executed[0].sql)
		})
	}

	t.Run("the course itself has no membership table", func(t *testing.T) {
		catalog, err := NewCatalog(&fakeQuerier{})
		require.NoError(t, err)

		_, err = catalog.LiveIDs(context.Background(), changelog.Course, uuid.New())

		assert.ErrorIs(t, err, ErrUnknownEntityKind)
	})
}

func Test_Catalog_NameLookups(t *testing.T) {
	// setup
	db := &fakeQuerier{nameRows: []nameRow{
		{ID: "1", Name: sql.NullString{String: "Nháp", Valid: true}},
		{ID: "2", Name: sql.NullString{}},
	}}
	catalog, err := NewCatalog(db, WithTables(Tables{
		Courses: "c", Lessons: "l", Tests: "t", Attachments: "a", CourseDepartments: "cd",
		CourseLevels: "cl", Users: "u", Statuses: "s", Departments: "d", Levels: "lv",
	}))
	require.NoError(t, err)

	// act
	names, err := catalog.Statuses().Names(context.Background(), []string{"1", "2", "3"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "Nháp"}, names, "null names count as unknown")
	require.Len(t, db.executed, 1)
	assert.Equal(t, `SELECT id::text AS id, "name" AS name FROM "s" WHERE id::text = ANY($1)`, db.executed[0].sql)

	valuer, ok := db.executed[0].args[0].(driver.Valuer)
	require.True(t, ok, "ids are passed as a postgres array")
	value, err := valuer.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"1","2","3"}`, value)
}

func Test_Catalog_NameLookups_UseTheirColumns(t *testing.T) {
	// setup
	db := &fakeQuerier{}
	catalog, err := NewCatalog(db)
	require.NoError(t, err)

	// act
	_, _ = catalog.Lessons().Names(context.Background(), []string{"x"})
	_, _ = catalog.DisplayNames(context.Background(), []string{"x"})
	_, _ = catalog.Departments().Names(context.Background(), []string{"x"})
	_, _ = catalog.Levels().Names(context.Background(), []string{"x"})
	_, _ = catalog.Levels().Names(context.Background(), nil)

	// assert
	require.Len(t, db.executed, 4, "nothing to resolve, nothing asked")
	assert.Contains(t, db.executed[0].sql, `"title" AS name FROM "lessons"`)
	assert.Contains(t, db.executed[1].sql, `"full_name" AS name FROM "users"`)
	assert.Contains(t, db.executed[2].sql, `FROM "departments"`)
	assert.Contains(t, db.executed[3].sql, `FROM "levels"`)
}

func Test_Catalog_Failures(t *testing.T) {
	// setup
	errDB := errors.New("connection reset")
	logger, logSpy := testdoubles.NewSpyLogger()
	catalog, err := NewCatalog(&fakeQuerier{err: errDB}, WithLogger(logger))
	require.NoError(t, err)

	// act
	_, existsErr := catalog.CourseExists(context.Background(), uuid.New())
	_, namesErr := catalog.Statuses().Names(context.Background(), []string{"1"})

	// assert
	assert.ErrorIs(t, existsErr, ErrQueryingCatalogFailed)
	assert.ErrorIs(t, existsErr, errDB)
	assert.ErrorIs(t, namesErr, errDB)
	assert.True(t, logSpy.HasErrorLogWithMessage(logMsgQueryFailed).WithAttr(logAttrTable, "courses").Assert())
}

func Test_NewCatalog_Validation(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.ErrorIs(t, err, ErrNilDatabaseConnection)

	_, err = NewCatalogFromSQLX(nil)
	assert.ErrorIs(t, err, ErrNilDatabaseConnection)

	_, err = NewCatalog(&fakeQuerier{}, WithTables(Tables{Courses: "courses"}))
	assert.ErrorIs(t, err, ErrEmptyTableName)
}
