package changelog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coursehistory/coursehistory-go/changelog"
)

func ptr(s string) *string {
	return &s
}

func record(kind changelog.EntityKind, entityID string, action changelog.Action, occurredAt time.Time) changelog.ChangeRecord {
	return changelog.ChangeRecord{
		ID:         1,
		EntityKind: kind,
		EntityID:   ptr(entityID),
		Action:     action,
		OccurredAt: occurredAt,
	}
}

//nolint:funlen
func Test_FilterBuilder_ValidCombinations(t *testing.T) {
	tests := []struct {
		name     string
		build    func() changelog.Filter
		validate func(t *testing.T, filter changelog.Filter)
	}{
		{
			name: "matching_any_record_creates_empty_filter",
			build: func() changelog.Filter {
				return changelog.BuildChangeFilter().MatchingAnyRecord()
			},
			validate: func(t *testing.T, f changelog.Filter) {
				assert.Empty(t, f.Items())
				assert.True(t, f.OccurredFrom().IsZero())
				assert.True(t, f.OccurredUntil().IsZero())
			},
		},
		{
			name: "single_entity_kind_filter",
			build: func() changelog.Filter {
				return changelog.BuildChangeFilter().
					Matching().
					AnyEntityKindOf(changelog.Lesson).
					Finalize()
			},
			validate: func(t *testing.T, f changelog.Filter) {
				assert.Len(t, f.Items(), 1)
				assert.Equal(t, []changelog.EntityKind{changelog.Lesson}, f.Items()[0].EntityKinds())
				assert.Empty(t, f.Items()[0].EntityIDs())
				assert.False(t, f.Items()[0].RestrictsToEntityIDs())
				assert.False(t, f.Items()[0].MatchesNothing())
				assert.Empty(t, f.Items()[0].Actions())
			},
		},
		{
			name: "entity_kinds_are_sanitized",
			build: func() changelog.Filter {
				return changelog.BuildChangeFilter().
					Matching().
					AnyEntityKindOf(changelog.Test, "", changelog.Lesson, changelog.Test).
					Finalize()
			},
			validate: func(t *testing.T, f changelog.Filter) {
				assert.Equal(t, []changelog.EntityKind{changelog.Lesson, changelog.Test}, f.Items()[0].EntityKinds())
			},
		},
		{
			name: "entity_ids_are_sanitized",
			build: func() changelog.Filter {
				return changelog.BuildChangeFilter().
					Matching().
					AnyEntityKindOf(changelog.Lesson).
					AndAnyEntityIDOf("b", "", "a", "b").
					Finalize()
			},
			validate: func(t *testing.T, f changelog.Filter) {
				assert.Equal(t, []string{"a", "b"}, f.Items()[0].EntityIDs())
				assert.True(t, f.Items()[0].RestrictsToEntityIDs())
				assert.False(t, f.Items()[0].MatchesNothing())
			},
		},
		{
			name: "empty_entity_id_set_matches_nothing",
			build: func() changelog.Filter {
				return changelog.BuildChangeFilter().
					Matching().
					AnyEntityKindOf(changelog.Attachment).
					AndAnyEntityIDOf().
					Finalize()
			},
			validate: func(t *testing.T, f changelog.Filter) {
				assert.True(t, f.Items()[0].RestrictsToEntityIDs())
				assert.True(t, f.Items()[0].MatchesNothing())
			},
		},
		{
			name: "entity_kind_and_actions",
			build: func() changelog.Filter {
				return changelog.BuildChangeFilter().
					Matching().
					AnyEntityKindOf(changelog.Lesson).
					AndAnyActionOf(changelog.Deleted, changelog.Deleted).
					Finalize()
			},
			validate: func(t *testing.T, f changelog.Filter) {
				assert.Equal(t, []changelog.Action{changelog.Deleted}, f.Items()[0].Actions())
				assert.False(t, f.Items()[0].RestrictsToEntityIDs())
			},
		},
		{
			name: "multiple_items_with_time_range",
			build: func() changelog.Filter {
				return changelog.BuildChangeFilter().
					OccurredFrom(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)).
					OccurredUntil(time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)).
					Matching().
					AnyEntityKindOf(changelog.Course).
					AndAnyEntityIDOf("c1").
					OrMatching().
					AnyEntityKindOf(changelog.Lesson).
					AndAnyEntityIDOf("l1", "l2").
					AndAnyActionOf(changelog.Created, changelog.Modified).
					Finalize()
			},
			validate: func(t *testing.T, f changelog.Filter) {
				assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), f.OccurredFrom())
				assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), f.OccurredUntil())
				assert.Len(t, f.Items(), 2)
				assert.Equal(t, []string{"c1"}, f.Items()[0].EntityIDs())
				assert.Equal(t, []string{"l1", "l2"}, f.Items()[1].EntityIDs())
				assert.Equal(t, []changelog.Action{changelog.Created, changelog.Modified}, f.Items()[1].Actions())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, tt.build())
		})
	}
}

func Test_FilterBuilder_IsImmutable(t *testing.T) {
	base := changelog.BuildChangeFilter().
		Matching().
		AnyEntityKindOf(changelog.Course).
		AndAnyEntityIDOf("c1")

	first := base.Finalize()
	second := base.OrMatching().AnyEntityKindOf(changelog.Lesson).Finalize()

	assert.Len(t, first.Items(), 1)
	assert.Len(t, second.Items(), 2)
}

//nolint:funlen
func Test_Filter_Matches(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	courseAndLessons := changelog.BuildChangeFilter().
		Matching().
		AnyEntityKindOf(changelog.Course).
		AndAnyEntityIDOf("c1").
		OrMatching().
		AnyEntityKindOf(changelog.Lesson).
		AndAnyEntityIDOf("l1").
		OrMatching().
		AnyEntityKindOf(changelog.Test).
		AndAnyEntityIDOf().
		Finalize()

	tests := []struct {
		name   string
		filter changelog.Filter
		record changelog.ChangeRecord
		want   bool
	}{
		{
			name:   "empty filter matches everything",
			filter: changelog.BuildChangeFilter().MatchingAnyRecord(),
			record: record(changelog.Test, "x", changelog.Deleted, t0),
			want:   true,
		},
		{
			name:   "root item matches",
			filter: courseAndLessons,
			record: record(changelog.Course, "c1", changelog.Modified, t0),
			want:   true,
		},
		{
			name:   "other course does not match",
			filter: courseAndLessons,
			record: record(changelog.Course, "c2", changelog.Modified, t0),
			want:   false,
		},
		{
			name:   "lesson id of another kind does not match",
			filter: courseAndLessons,
			record: record(changelog.Attachment, "l1", changelog.Created, t0),
			want:   false,
		},
		{
			name:   "dependent item matches",
			filter: courseAndLessons,
			record: record(changelog.Lesson, "l1", changelog.Deleted, t0),
			want:   true,
		},
		{
			name:   "empty id set never matches",
			filter: courseAndLessons,
			record: record(changelog.Test, "t1", changelog.Created, t0),
			want:   false,
		},
		{
			name:   "record without entity id does not match an id restriction",
			filter: courseAndLessons,
			record: changelog.ChangeRecord{
				EntityKind: changelog.Course,
				Action:     changelog.Modified,
				OccurredAt: t0,
			},
			want: false,
		},
		{
			name: "action restriction",
			filter: changelog.BuildChangeFilter().
				Matching().
				AnyEntityKindOf(changelog.Lesson).
				AndAnyActionOf(changelog.Deleted).
				Finalize(),
			record: record(changelog.Lesson, "l1", changelog.Modified, t0),
			want:   false,
		},
		{
			name: "before occurred from",
			filter: changelog.BuildChangeFilter().
				OccurredFrom(t0.Add(time.Second)).
				MatchingAnyRecord(),
			record: record(changelog.Lesson, "l1", changelog.Modified, t0),
			want:   false,
		},
		{
			name: "at occurred until",
			filter: changelog.BuildChangeFilter().
				OccurredUntil(t0).
				MatchingAnyRecord(),
			record: record(changelog.Lesson, "l1", changelog.Modified, t0),
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.record))
		})
	}
}
