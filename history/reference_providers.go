package history

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/coursehistory/coursehistory-go/changelog"
)

// DefaultGroupingWindow is the maximum distance between a course record and the link records of the same save.
const DefaultGroupingWindow = time.Second

// Snapshot fields the providers resolve.
const (
	fieldStatusID     = "StatusId"
	fieldDepartmentID = "DepartmentId"
	fieldLevelID      = "LevelId"
	fieldLessonID     = "LessonId"
	fieldTitle        = "Title"
)

/***** CourseProvider *****/

// CourseProvider resolves the status of a course and attaches the department and level links
// written by the same save to the course record.
//
// A link record belongs to the course record with the same actor that is closest in time,
// as long as the distance does not exceed the grouping window. A link without such a record keeps
// its entries under its own record id, so the mapper can render it as a course entry of its own.
type CourseProvider struct {
	statuses       NameLookup
	departments    NameLookup
	levels         NameLookup
	groupingWindow time.Duration
}

// NewCourseProvider creates a CourseProvider. A non-positive window falls back to DefaultGroupingWindow.
func NewCourseProvider(statuses, departments, levels NameLookup, groupingWindow time.Duration) CourseProvider {
	if groupingWindow <= 0 {
		groupingWindow = DefaultGroupingWindow
	}

	return CourseProvider{
		statuses:       statuses,
		departments:    departments,
		levels:         levels,
		groupingWindow: groupingWindow,
	}
}

// EntityKind returns changelog.Course.
func (p CourseProvider) EntityKind() changelog.EntityKind {
	return changelog.Course
}

// CoveredEntityKinds returns the course kind and both link kinds.
func (p CourseProvider) CoveredEntityKinds() []changelog.EntityKind {
	return []changelog.EntityKind{changelog.Course, changelog.CourseDepartmentLink, changelog.CourseLevelLink}
}

// Provide implements ReferenceDataProvider.
func (p CourseProvider) Provide(ctx context.Context, batch changelog.ChangeRecords) (map[int64]ReferenceData, error) {
	courses := parsedRecordsOf(batch, changelog.Course)
	departmentLinks := parsedRecordsOf(batch, changelog.CourseDepartmentLink)
	levelLinks := parsedRecordsOf(batch, changelog.CourseLevelLink)

	statusNames, err := lookupNames(ctx, p.statuses, referencedIDs(courses, fieldStatusID))
	if err != nil {
		return nil, err
	}

	departmentNames, err := lookupNames(ctx, p.departments, referencedIDs(departmentLinks, fieldDepartmentID))
	if err != nil {
		return nil, err
	}

	levelNames, err := lookupNames(ctx, p.levels, referencedIDs(levelLinks, fieldLevelID))
	if err != nil {
		return nil, err
	}

	result := make(map[int64]ReferenceData, len(courses))
	for _, course := range courses {
		data := ReferenceDataOf(resolvedDiff(course.pair, fieldStatusID, LabelStatus, statusNames)...)
		result[course.record.ID] = data
	}

	p.attachLinks(result, courses, departmentLinks, fieldDepartmentID, LabelDepartment, departmentNames)
	p.attachLinks(result, courses, levelLinks, fieldLevelID, LabelLevel, levelNames)

	for recordID, data := range result {
		if data.IsEmpty() {
			delete(result, recordID)
		}
	}

	return result, nil
}

func (p CourseProvider) attachLinks(
	result map[int64]ReferenceData,
	courses []parsedRecord,
	links []parsedRecord,
	field string,
	label string,
	names map[string]string,
) {

	for _, link := range links {
		ownerID := link.record.ID
		if owner, found := p.owningCourse(link.record, courses); found {
			ownerID = owner.ID
		}

		data := result[ownerID]
		data.append(resolvedDiff(link.pair, field, label, names)...)
		result[ownerID] = data
	}
}

// owningCourse picks the closest course record of the same actor within the grouping window.
// On equal distance the earlier record in the batch wins.
func (p CourseProvider) owningCourse(link changelog.ChangeRecord, courses []parsedRecord) (changelog.ChangeRecord, bool) {
	var owner changelog.ChangeRecord
	best := time.Duration(-1)

	for _, course := range courses {
		if !sameActor(course.record.ActorID, link.ActorID) {
			continue
		}

		distance := absDuration(course.record.OccurredAt.Sub(link.OccurredAt))
		if distance > p.groupingWindow {
			continue
		}

		if best < 0 || distance < best {
			owner = course.record
			best = distance
		}
	}

	return owner, best >= 0
}

/***** LessonTitleProvider *****/

// LessonTitleProvider resolves the LessonId of tests or attachments to the lesson title.
//
// Live lessons are asked first. A lesson that no longer exists is named by the latest Title
// its own records in the batch carry. Without either, the raw id is shown.
type LessonTitleProvider struct {
	kind    changelog.EntityKind
	lessons NameLookup
}

// NewTestProvider creates the LessonTitleProvider for tests.
func NewTestProvider(lessons NameLookup) LessonTitleProvider {
	return LessonTitleProvider{kind: changelog.Test, lessons: lessons}
}

// NewAttachmentProvider creates the LessonTitleProvider for attachments.
func NewAttachmentProvider(lessons NameLookup) LessonTitleProvider {
	return LessonTitleProvider{kind: changelog.Attachment, lessons: lessons}
}

// EntityKind returns the kind the provider was built for.
func (p LessonTitleProvider) EntityKind() changelog.EntityKind {
	return p.kind
}

// Provide implements ReferenceDataProvider.
func (p LessonTitleProvider) Provide(ctx context.Context, batch changelog.ChangeRecords) (map[int64]ReferenceData, error) {
	records := parsedRecordsOf(batch, p.kind)
	if len(records) == 0 {
		return map[int64]ReferenceData{}, nil
	}

	titles, err := lookupNames(ctx, p.lessons, referencedIDs(records, fieldLessonID))
	if err != nil {
		return nil, err
	}

	for lessonID, title := range lessonTitlesFromBatch(batch) {
		if _, live := titles[lessonID]; !live {
			titles[lessonID] = title
		}
	}

	result := make(map[int64]ReferenceData, len(records))
	for _, record := range records {
		data := ReferenceDataOf(resolvedDiff(record.pair, fieldLessonID, LabelLesson, titles)...)
		if !data.IsEmpty() {
			result[record.record.ID] = data
		}
	}

	return result, nil
}

// lessonTitlesFromBatch collects the latest non-null Title per lesson from the Lesson records of the batch.
func lessonTitlesFromBatch(batch changelog.ChangeRecords) map[string]string {
	lessons := slices.Clone(parsedRecordsOf(batch, changelog.Lesson))
	slices.SortStableFunc(lessons, func(a, b parsedRecord) int {
		return b.record.OccurredAt.Compare(a.record.OccurredAt)
	})

	titles := make(map[string]string)
	for _, lesson := range lessons {
		lessonID := canonicalID(lesson.record.EntityIDOrEmpty())
		if lessonID == "" {
			continue
		}

		if _, known := titles[lessonID]; known {
			continue
		}

		for _, values := range []changelog.FieldValues{lesson.pair.NewValues, lesson.pair.OldValues} {
			if title, ok := values.Get(fieldTitle); ok && !title.IsNull() {
				titles[lessonID] = title.String()
				break
			}
		}
	}

	return titles
}

/***** shared helpers *****/

type parsedRecord struct {
	record changelog.ChangeRecord
	pair   changelog.SnapshotPair
}

// parsedRecordsOf returns the records of one kind with a decodable snapshot, in batch order.
// Malformed snapshots are reported by the diff stage, providers just skip them.
func parsedRecordsOf(batch changelog.ChangeRecords, kind changelog.EntityKind) []parsedRecord {
	parsed := make([]parsedRecord, 0)
	for _, record := range batch {
		if record.EntityKind != kind {
			continue
		}

		pair, err := record.Snapshot()
		if err != nil {
			continue
		}

		parsed = append(parsed, parsedRecord{record: record, pair: pair})
	}

	return parsed
}

// referencedIDs collects the distinct non-null values of field across old and new snapshots.
func referencedIDs(records []parsedRecord, field string) []string {
	ids := make([]string, 0)
	for _, parsed := range records {
		for _, values := range []changelog.FieldValues{parsed.pair.OldValues, parsed.pair.NewValues} {
			if value, ok := values.Get(field); ok && !value.IsNull() {
				ids = append(ids, canonicalID(value.String()))
			}
		}
	}

	slices.Sort(ids)

	return slices.Compact(ids)
}

// lookupNames asks the lookup only when there is something to resolve. Result keys are canonical ids.
func lookupNames(ctx context.Context, lookup NameLookup, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 || lookup == nil {
		return names, nil
	}

	found, err := lookup.Names(ctx, ids)
	if err != nil {
		return nil, err
	}

	for id, name := range found {
		names[canonicalID(id)] = name
	}

	return names, nil
}

// resolvedDiff diffs a single id field after replacing the ids by their names.
func resolvedDiff(pair changelog.SnapshotPair, field, label string, names map[string]string) []DiffEntry {
	return diffFields(
		resolvedField(pair.OldValues, field, label, names),
		resolvedField(pair.NewValues, field, label, names),
		noFieldExcluded,
		sameLabel,
	)
}

func resolvedField(values changelog.FieldValues, field, label string, names map[string]string) changelog.FieldValues {
	value, ok := values.Get(field)
	if !ok {
		return changelog.FieldValuesOf()
	}

	if value.IsNull() {
		return changelog.FieldValuesOf(changelog.F(label, value))
	}

	if name, known := names[canonicalID(value.String())]; known {
		return changelog.FieldValuesOf(changelog.F(label, changelog.StringScalar(name)))
	}

	return changelog.FieldValuesOf(changelog.F(label, changelog.StringScalar(value.String())))
}

// canonicalID lower-cases uuids into their canonical form and leaves other ids untouched.
func canonicalID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}

	return id
}

func sameActor(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
