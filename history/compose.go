package history

import (
	"github.com/google/uuid"

	"github.com/coursehistory/coursehistory-go/changelog"
)

// ComposeFilter builds the change log filter for a course history:
// the course itself, OR-ed with one item per dependent kind restricted to the related ids.
//
// A dependent kind with an empty id set still gets its item; it matches no record instead of every record.
func ComposeFilter(courseID uuid.UUID, related IDSets) changelog.Filter {
	builder := changelog.BuildChangeFilter().
		Matching().
		AnyEntityKindOf(changelog.Course).
		AndAnyEntityIDOf(courseID.String())

	for _, kind := range changelog.DependentEntityKinds() {
		builder = builder.
			OrMatching().
			AnyEntityKindOf(kind).
			AndAnyEntityIDOf(related.IDs(kind)...)
	}

	return builder.Finalize()
}
