package changelog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownAction = errors.New("unknown change record action")
var ErrEmptyEntityKind = errors.New("change record entity kind must not be empty")

// EntityKind names the type of entity a ChangeRecord describes, as it is stored in the change log.
type EntityKind string

const (
	Course               EntityKind = "Course"
	Lesson               EntityKind = "Lesson"
	Test                 EntityKind = "Test"
	Attachment           EntityKind = "Attachment"
	CourseDepartmentLink EntityKind = "CourseDepartment"
	CourseLevelLink      EntityKind = "CourseLevel"
)

// DependentEntityKinds lists the kinds that belong to a Course aggregate, in a fixed order.
func DependentEntityKinds() []EntityKind {
	return []EntityKind{Lesson, Test, Attachment, CourseDepartmentLink, CourseLevelLink}
}

// IsLink reports whether the kind is a pure association between a course and reference data.
func (k EntityKind) IsLink() bool {
	return k == CourseDepartmentLink || k == CourseLevelLink
}

// Action is the kind of mutation a ChangeRecord describes.
type Action string

const (
	Created  Action = "Created"
	Modified Action = "Modified"
	Deleted  Action = "Deleted"
)

// ParseAction maps the stored action text onto an Action.
// Writers have used "Added" for creations, so that spelling is accepted as well.
func ParseAction(stored string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(stored)) {
	case "created", "added":
		return Created, nil
	case "modified", "updated":
		return Modified, nil
	case "deleted":
		return Deleted, nil
	default:
		return "", ErrUnknownAction
	}
}

// ChangeRecords is an alias type for a slice of ChangeRecord
type ChangeRecords = []ChangeRecord

// ChangeRecord is one immutable entry of the change log, describing a single mutation of one entity instance.
//
// While its properties are exported, it should only be constructed with BuildChangeRecord.
type ChangeRecord struct {
	ID          int64
	EntityKind  EntityKind
	EntityID    *string
	Action      Action
	ActorID     *string
	OccurredAt  time.Time
	ChangesJSON []byte
}

// BuildChangeRecord is a factory method for ChangeRecord.
//
// It normalizes OccurredAt to UTC and parses the stored action text.
// The payload is NOT validated here: a malformed payload must not prevent the record from being read.
func BuildChangeRecord(
	id int64,
	entityKind string,
	entityID *string,
	action string,
	actorID *string,
	occurredAt time.Time,
	changesJSON []byte,
) (ChangeRecord, error) {

	if entityKind == "" {
		return ChangeRecord{}, ErrEmptyEntityKind
	}

	parsedAction, err := ParseAction(action)
	if err != nil {
		return ChangeRecord{}, fmt.Errorf("%w: %q", err, action)
	}

	return ChangeRecord{
		ID:          id,
		EntityKind:  EntityKind(entityKind),
		EntityID:    entityID,
		Action:      parsedAction,
		ActorID:     actorID,
		OccurredAt:  occurredAt.UTC(),
		ChangesJSON: changesJSON,
	}, nil
}

// EntityIDOrEmpty returns the entity id or "" if the record carries none.
func (r ChangeRecord) EntityIDOrEmpty() string {
	if r.EntityID == nil {
		return ""
	}

	return *r.EntityID
}

// HasSnapshot reports whether the record carries a changes payload.
func (r ChangeRecord) HasSnapshot() bool {
	return len(r.ChangesJSON) > 0
}

// Snapshot decodes the changes payload. A record without payload yields an empty SnapshotPair.
func (r ChangeRecord) Snapshot() (SnapshotPair, error) {
	if !r.HasSnapshot() {
		return EmptySnapshotPair(), nil
	}

	return ParseSnapshotPair(r.ChangesJSON)
}

// EntitySnapshot is the lightweight projection of a ChangeRecord used for membership scans.
type EntitySnapshot struct {
	EntityID    *string
	ChangesJSON []byte
}

// Snapshot decodes the changes payload. A projection without payload yields an empty SnapshotPair.
func (s EntitySnapshot) Snapshot() (SnapshotPair, error) {
	if len(s.ChangesJSON) == 0 {
		return EmptySnapshotPair(), nil
	}

	return ParseSnapshotPair(s.ChangesJSON)
}
