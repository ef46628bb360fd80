package history

import (
	"slices"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/coursehistory/coursehistory-go/changelog"
)

const (
	// DefaultTimeZone is the zone timestamps are displayed in.
	DefaultTimeZone = "Asia/Ho_Chi_Minh"

	// DefaultTimestampLayout renders day/month/year with a 24h clock.
	DefaultTimestampLayout = "02/01/2006 15:04:05"

	// UnknownActor is shown for records without actor or with an actor the directory does not know.
	UnknownActor = "Unknown"
)

var outputJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// PresentationRecord is one history line as shown to a client.
type PresentationRecord struct {
	ID                int64                `json:"id"`
	Action            changelog.Action     `json:"action"`
	ActionDisplay     string               `json:"actionDisplay"`
	EntityKind        changelog.EntityKind `json:"entityKind"`
	EntityKindDisplay string               `json:"entityKindDisplay"`
	EntityID          string               `json:"entityId"`
	ActorName         string               `json:"actorName"`
	TimestampDisplay  string               `json:"timestampDisplay"`
	OccurredAt        time.Time            `json:"occurredAt"`
	AddedFields       []DiffEntry          `json:"addedFields"`
	ChangedFields     []DiffEntry          `json:"changedFields"`
	DeletedFields     []DiffEntry          `json:"deletedFields"`
}

// LoadLocation loads a time zone by name. If the zone database lacks DefaultTimeZone, a fixed +07:00 zone is used.
func LoadLocation(name string) (*time.Location, error) {
	location, err := time.LoadLocation(name)
	if err == nil {
		return location, nil
	}

	if name == DefaultTimeZone {
		return time.FixedZone("ICT", 7*60*60), nil
	}

	return nil, err
}

// PresentationMapper turns fetched records into PresentationRecords.
type PresentationMapper struct {
	location *time.Location
	layout   string
}

// NewPresentationMapper creates a PresentationMapper. A nil location means DefaultTimeZone, an empty layout DefaultTimestampLayout.
func NewPresentationMapper(location *time.Location, layout string) PresentationMapper {
	if location == nil {
		location, _ = LoadLocation(DefaultTimeZone)
	}

	if layout == "" {
		layout = DefaultTimestampLayout
	}

	return PresentationMapper{location: location, layout: layout}
}

// Map orders the records by OccurredAt descending, keeping the fetched order on ties,
// and renders every non-link record. Snapshot diff entries come before reference data entries in each section.
//
// A link record is only rendered when it carries reference data of its own, which happens when no course
// record of the same save owns it. It is then shown as a modification of the course it points at.
func (m PresentationMapper) Map(
	records changelog.ChangeRecords,
	actorNames map[string]string,
	diffs map[int64][]DiffEntry,
	reference map[int64]ReferenceData,
) []PresentationRecord {

	ordered := slices.Clone(records)
	slices.SortStableFunc(ordered, func(a, b changelog.ChangeRecord) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})

	names := make(map[string]string, len(actorNames))
	for id, name := range actorNames {
		names[canonicalID(id)] = name
	}

	presented := make([]PresentationRecord, 0, len(ordered))
	for _, record := range ordered {
		extra := reference[record.ID]

		if record.EntityKind.IsLink() {
			if extra.IsEmpty() {
				continue
			}

			presented = append(presented, m.present(record, names, ReferenceData{}, extra).asCourseEntry(linkedCourseID(record)))
			continue
		}

		var sections ReferenceData
		sections.append(diffs[record.ID]...)

		presented = append(presented, m.present(record, names, sections, extra))
	}

	return presented
}

func (m PresentationMapper) present(
	record changelog.ChangeRecord,
	actorNames map[string]string,
	sections ReferenceData,
	extra ReferenceData,
) PresentationRecord {

	sections.append(extra.Added...)
	sections.append(extra.Changed...)
	sections.append(extra.Deleted...)

	return PresentationRecord{
		ID:                record.ID,
		Action:            record.Action,
		ActionDisplay:     ActionDisplayName(record.Action),
		EntityKind:        record.EntityKind,
		EntityKindDisplay: EntityKindDisplayName(record.EntityKind),
		EntityID:          record.EntityIDOrEmpty(),
		ActorName:         actorName(record.ActorID, actorNames),
		TimestampDisplay:  record.OccurredAt.In(m.location).Format(m.layout),
		OccurredAt:        record.OccurredAt,
		AddedFields:       nonNil(sections.Added),
		ChangedFields:     nonNil(sections.Changed),
		DeletedFields:     nonNil(sections.Deleted),
	}
}

func (r PresentationRecord) asCourseEntry(courseID string) PresentationRecord {
	r.Action = changelog.Modified
	r.ActionDisplay = ActionDisplayName(changelog.Modified)
	r.EntityKind = changelog.Course
	r.EntityKindDisplay = EntityKindDisplayName(changelog.Course)

	if courseID != "" {
		r.EntityID = courseID
	}

	return r
}

// linkedCourseID reads the course a link record points at, or "" if its snapshot does not tell.
func linkedCourseID(record changelog.ChangeRecord) string {
	pair, err := record.Snapshot()
	if err != nil {
		return ""
	}

	for _, values := range []changelog.FieldValues{pair.NewValues, pair.OldValues} {
		if value, ok := values.Get(ForeignKeyField); ok && !value.IsNull() {
			return canonicalID(value.String())
		}
	}

	return ""
}

// actorName expects names keyed by canonical id.
func actorName(actorID *string, names map[string]string) string {
	if actorID == nil {
		return UnknownActor
	}

	if name, ok := names[canonicalID(*actorID)]; ok && name != "" {
		return name
	}

	return UnknownActor
}

// nonNil keeps empty sections rendering as [] instead of null.
func nonNil(entries []DiffEntry) []DiffEntry {
	if entries == nil {
		return []DiffEntry{}
	}

	return entries
}
