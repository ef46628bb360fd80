package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/coursehistory/coursehistory-go/changelog"
)

// ChangeLog defines the read operations needed from the change log store.
type ChangeLog interface {
	Query(ctx context.Context, filter changelog.Filter) (changelog.ChangeRecords, error)
	QueryEntitySnapshots(ctx context.Context, filter changelog.Filter) ([]changelog.EntitySnapshot, error)
}

// CourseReader checks whether a course exists.
type CourseReader interface {
	CourseExists(ctx context.Context, courseID uuid.UUID) (bool, error)
}

// MembershipReader lists the ids of live rows of a dependent kind whose foreign key points at the course.
type MembershipReader interface {
	LiveIDs(ctx context.Context, kind changelog.EntityKind, courseID uuid.UUID) ([]string, error)
}

// ActorDirectory resolves actor ids to display names. Unknown ids are left out of the result.
type ActorDirectory interface {
	DisplayNames(ctx context.Context, actorIDs []string) (map[string]string, error)
}

// NameLookup resolves ids of one reference table (statuses, departments, levels, lessons) to names.
// Unknown ids are left out of the result.
type NameLookup interface {
	Names(ctx context.Context, ids []string) (map[string]string, error)
}
