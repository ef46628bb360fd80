package history_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehistory/coursehistory-go/changelog"
	"github.com/coursehistory/coursehistory-go/history"
	"github.com/coursehistory/coursehistory-go/testutil/testdoubles"
)

func Test_Resolver_Resolve(t *testing.T) {
	// setup
	courseID := uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-901234567890")
	otherCourseID := uuid.MustParse("11111111-2222-4333-8444-555555555555")

	deletedLesson := `{"oldValues":{"Id":"l-deleted","CourseId":"` + courseID.String() + `","Title":"Old"},"newValues":{}}`
	deletedUppercase := `{"oldValues":{"CourseId":"` + strings.ToUpper(courseID.String()) + `"},"newValues":{}}`
	deletedElsewhere := `{"oldValues":{"CourseId":"` + otherCourseID.String() + `"},"newValues":{}}`
	prefixOnly := `{"oldValues":{"CourseId":"` + courseID.String()[:8] + `"},"newValues":{}}`

	store := testdoubles.NewChangeLogFake(
		record(1, changelog.Lesson, "l-deleted", changelog.Deleted, nil, at(0), deletedLesson),
		record(2, changelog.Lesson, "l-upper", changelog.Deleted, nil, at(0), deletedUppercase),
		record(3, changelog.Lesson, "l-elsewhere", changelog.Deleted, nil, at(0), deletedElsewhere),
		record(4, changelog.Lesson, "l-prefix", changelog.Deleted, nil, at(0), prefixOnly),
		record(5, changelog.Lesson, "l-modified", changelog.Modified, nil, at(0), deletedLesson),
		record(6, changelog.Attachment, "a-broken", changelog.Deleted, nil, at(0), `not json`),
		record(7, changelog.CourseDepartmentLink, "cd-1", changelog.Deleted, nil, at(0), deletedUppercase),
	)
	membership := testdoubles.NewMembershipReaderFake().
		WithLive(changelog.Lesson, courseID, "l-live", "l-deleted").
		WithLive(changelog.Test, courseID, "t-live").
		WithLive(changelog.Lesson, otherCourseID, "l-other")

	logger, logSpy := testdoubles.NewSpyLogger()
	resolver := history.NewResolver(store, membership, logger, nil)

	// act
	sets, err := resolver.Resolve(context.Background(), courseID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"l-deleted", "l-live", "l-upper"}, sets.IDs(changelog.Lesson))
	assert.Equal(t, []string{"t-live"}, sets.IDs(changelog.Test))
	assert.Empty(t, sets.IDs(changelog.Attachment))
	assert.Equal(t, []string{"cd-1"}, sets.IDs(changelog.CourseDepartmentLink))
	assert.Empty(t, sets.IDs(changelog.CourseLevelLink))
	assert.Len(t, sets, len(changelog.DependentEntityKinds()))

	assert.Equal(t, len(changelog.DependentEntityKinds()), store.SnapshotQueryCalls(), "one scan per kind")
	assert.True(t, logSpy.HasWarnLogWithMessage("malformed snapshot skipped").
		WithAttr("entity_id", "a-broken").
		Assert())
}

func Test_Resolver_Resolve_Failures(t *testing.T) {
	// setup
	courseID := uuid.New()
	errLookup := errors.New("catalog down")
	errScan := errors.New("scan failed")

	testCases := []struct {
		description string
		store       *testdoubles.ChangeLogFake
		membership  *testdoubles.MembershipReaderFake
		expected    error
	}{
		{
			description: "membership lookup fails",
			store:       testdoubles.NewChangeLogFake(),
			membership:  &testdoubles.MembershipReaderFake{Err: errLookup},
			expected:    errLookup,
		},
		{
			description: "deletion scan fails",
			store:       testdoubles.NewChangeLogFake().FailSnapshotQueryWith(errScan),
			membership:  testdoubles.NewMembershipReaderFake(),
			expected:    errScan,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			// arrange
			resolver := history.NewResolver(tc.store, tc.membership, nil, nil)

			// act
			sets, err := resolver.Resolve(context.Background(), courseID)

			// assert
			assert.Nil(t, sets)
			assert.ErrorIs(t, err, history.ErrResolvingRelatedEntitiesFailed)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}
