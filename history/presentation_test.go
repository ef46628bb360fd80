package history_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehistory/coursehistory-go/changelog"
	"github.com/coursehistory/coursehistory-go/history"
	"github.com/coursehistory/coursehistory-go/testutil/testdoubles"
)

func Test_PresentationMapper_Map(t *testing.T) {
	// setup
	location, err := history.LoadLocation(history.DefaultTimeZone)
	require.NoError(t, err)

	mapper := history.NewPresentationMapper(location, history.DefaultTimestampLayout)

	records := changelog.ChangeRecords{
		record(1, changelog.Course, courseEntityID, changelog.Created, ptr("alice"), at(0), ""),
		record(3, changelog.Lesson, "l-1", changelog.Modified, ptr("ghost"), at(time.Hour), ""),
		record(2, changelog.CourseDepartmentLink, "cd-1", changelog.Created, ptr("alice"), at(time.Hour), ""),
		record(4, changelog.Test, "t-1", changelog.Deleted, nil, at(time.Hour), ""),
	}
	actors := map[string]string{"alice": "Alice Nguyễn"}
	diffs := map[int64][]history.DiffEntry{
		1: {history.Added("Tên khóa học", changelog.StringScalar("Go"))},
	}
	reference := map[int64]history.ReferenceData{
		1: history.ReferenceDataOf(
			history.Added(history.LabelStatus, changelog.StringScalar("Nháp")),
			history.Deleted(history.LabelDepartment, changelog.StringScalar("Kỹ thuật")),
		),
	}

	// act
	presented := mapper.Map(records, actors, diffs, reference)

	// assert
	require.Len(t, presented, 3, "link records are not shown")

	assert.Equal(t, int64(3), presented[0].ID, "newest first")
	assert.Equal(t, int64(4), presented[1].ID, "ties keep the fetched order")
	assert.Equal(t, int64(1), presented[2].ID)

	assert.Equal(t, history.UnknownActor, presented[0].ActorName)
	assert.Equal(t, history.UnknownActor, presented[1].ActorName)
	assert.Equal(t, "Alice Nguyễn", presented[2].ActorName)

	course := presented[2]
	assert.Equal(t, "10/03/2024 09:00:00", course.TimestampDisplay)
	assert.Equal(t, "Tạo mới", course.ActionDisplay)
	assert.Equal(t, "Khóa học", course.EntityKindDisplay)
	assert.Equal(t, courseEntityID, course.EntityID)
	assert.Equal(t, []string{"Tên khóa học", history.LabelStatus}, fieldsOf(course.AddedFields), "diff entries come first")
	assert.Equal(t, []string{history.LabelDepartment}, fieldsOf(course.DeletedFields))
	assert.NotNil(t, course.ChangedFields)
	assert.Empty(t, course.ChangedFields)
}

func Test_PresentationMapper_ShowsLinksOfSeparateSaves(t *testing.T) {
	// setup
	alice := ptr("alice")
	registry := history.NewProviderRegistry(history.NewCourseProvider(
		nil,
		testdoubles.NewNameLookupFake(map[string]string{departmentA: "Kỹ thuật"}),
		nil,
		time.Second,
	))
	mapper := history.NewPresentationMapper(time.UTC, history.DefaultTimestampLayout)
	batch := changelog.ChangeRecords{
		record(2, changelog.CourseDepartmentLink, "cd-1", changelog.Created, alice, at(time.Hour),
			`{"oldValues":{},"newValues":{"CourseId":"`+courseEntityID+`","DepartmentId":"`+departmentA+`"}}`),
		record(1, changelog.Course, courseEntityID, changelog.Created, alice, at(0),
			`{"oldValues":{},"newValues":{"Name":"Go"}}`),
	}

	// act
	reference, err := registry.Provide(context.Background(), batch)
	require.NoError(t, err)

	presented := mapper.Map(batch, map[string]string{"alice": "Alice"}, nil, reference)

	// assert
	require.Len(t, presented, 2)

	link := presented[0]
	assert.Equal(t, int64(2), link.ID)
	assert.Equal(t, changelog.Course, link.EntityKind)
	assert.Equal(t, "Khóa học", link.EntityKindDisplay)
	assert.Equal(t, courseEntityID, link.EntityID)
	assert.Equal(t, changelog.Modified, link.Action)
	assert.Equal(t, "Alice", link.ActorName)
	assert.Equal(t, []history.DiffEntry{
		history.Added(history.LabelDepartment, changelog.StringScalar("Kỹ thuật")),
	}, link.AddedFields)

	assert.Equal(t, int64(1), presented[1].ID)
	assert.Empty(t, presented[1].AddedFields)
}

func Test_PresentationMapper_MatchesActorIDsCaseInsensitively(t *testing.T) {
	// setup
	const actorID = "B1C2D3E4-0000-4000-8000-0000000000AA"
	mapper := history.NewPresentationMapper(time.UTC, "")
	records := changelog.ChangeRecords{
		record(1, changelog.Lesson, "l-1", changelog.Created, ptr(actorID), at(0), ""),
	}
	actors := map[string]string{"b1c2d3e4-0000-4000-8000-0000000000aa": "Bình Trần"}

	// act
	presented := mapper.Map(records, actors, nil, nil)

	// assert
	require.Len(t, presented, 1)
	assert.Equal(t, "Bình Trần", presented[0].ActorName)
}

func Test_PresentationMapper_Defaults(t *testing.T) {
	// setup
	mapper := history.NewPresentationMapper(nil, "")
	records := changelog.ChangeRecords{
		record(1, changelog.Lesson, "l-1", changelog.Created, nil, time.Date(2024, 12, 31, 20, 30, 0, 0, time.UTC), ""),
	}

	// act
	presented := mapper.Map(records, nil, nil, nil)

	// assert
	require.Len(t, presented, 1)
	assert.Equal(t, "01/01/2025 03:30:00", presented[0].TimestampDisplay)
}

func Test_PresentationRecord_JSON(t *testing.T) {
	// setup
	mapper := history.NewPresentationMapper(time.UTC, time.RFC3339)
	records := changelog.ChangeRecords{
		record(7, changelog.Lesson, "l-1", changelog.Modified, nil, at(0), ""),
	}
	diffs := map[int64][]history.DiffEntry{
		7: {history.Changed("Tiêu đề", changelog.StringScalar("A"), changelog.StringScalar("B"))},
	}

	// act
	raw, err := json.Marshal(mapper.Map(records, nil, diffs, nil)[0])

	// assert
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 7,
		"action": "Modified",
		"actionDisplay": "Cập nhật",
		"entityKind": "Lesson",
		"entityKindDisplay": "Bài học",
		"entityId": "l-1",
		"actorName": "Unknown",
		"timestampDisplay": "2024-03-10T02:00:00Z",
		"occurredAt": "2024-03-10T02:00:00Z",
		"addedFields": [],
		"changedFields": [{"field": "Tiêu đề", "oldValue": "A", "newValue": "B"}],
		"deletedFields": []
	}`, string(raw))
}

func Test_LoadLocation_RejectsUnknownZones(t *testing.T) {
	_, err := history.LoadLocation("Mars/Olympus_Mons")
	assert.Error(t, err)
}
