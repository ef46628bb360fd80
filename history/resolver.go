package history

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coursehistory/coursehistory-go/changelog"
)

// ForeignKeyField is the snapshot field through which dependent entities reference their course.
const ForeignKeyField = "CourseId"

// IDSets holds the related entity ids per dependent entity kind.
// Each set is sorted and free of duplicates.
type IDSets map[changelog.EntityKind][]string

// IDs returns the ids of one kind, which may be empty.
func (s IDSets) IDs(kind changelog.EntityKind) []string {
	return s[kind]
}

// Resolver finds every entity of a dependent kind that ever belonged to a course:
// the live rows of the catalog plus the entities whose deletion record still references the course.
type Resolver struct {
	changeLog  ChangeLog
	membership MembershipReader
	observer   observer
}

// NewResolver creates a Resolver. The loggers may be nil.
func NewResolver(changeLog ChangeLog, membership MembershipReader, logger Logger, contextualLogger ContextualLogger) Resolver {
	return Resolver{
		changeLog:  changeLog,
		membership: membership,
		observer:   observer{logger: logger, contextualLogger: contextualLogger},
	}
}

// Resolve returns the related entity ids of all dependent kinds of the course.
// The kinds are resolved concurrently; the first failure cancels the others.
func (r Resolver) Resolve(ctx context.Context, courseID uuid.UUID) (IDSets, error) {
	kinds := changelog.DependentEntityKinds()
	resolved := make([][]string, len(kinds))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		group.Go(func() error {
			ids, err := r.resolveKind(groupCtx, kind, courseID)
			if err != nil {
				return err
			}

			resolved[i] = ids
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, errors.Join(ErrResolvingRelatedEntitiesFailed, err)
	}

	sets := make(IDSets, len(kinds))
	for i, kind := range kinds {
		sets[kind] = resolved[i]
		r.observer.debug(ctx, logMsgIDsResolved,
			logAttrCourseID, courseID.String(),
			logAttrEntityKind, string(kind),
			logAttrIDCount, len(resolved[i]))
	}

	return sets, nil
}

func (r Resolver) resolveKind(ctx context.Context, kind changelog.EntityKind, courseID uuid.UUID) ([]string, error) {
	live, err := r.membership.LiveIDs(ctx, kind, courseID)
	if err != nil {
		return nil, err
	}

	deleted, err := r.deletedIDs(ctx, kind, courseID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(live)+len(deleted))
	ids = append(ids, live...)
	ids = append(ids, deleted...)
	slices.Sort(ids)

	return slices.Compact(ids), nil
}

// deletedIDs scans the deletion records of a kind for the ones whose old values reference the course.
func (r Resolver) deletedIDs(ctx context.Context, kind changelog.EntityKind, courseID uuid.UUID) ([]string, error) {
	filter := changelog.BuildChangeFilter().
		Matching().
		AnyEntityKindOf(kind).
		AndAnyActionOf(changelog.Deleted).
		Finalize()

	snapshots, err := r.changeLog.QueryEntitySnapshots(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0)
	for _, snapshot := range snapshots {
		if snapshot.EntityID == nil {
			continue
		}

		pair, parseErr := snapshot.Snapshot()
		if parseErr != nil {
			r.observer.warn(ctx, logMsgMalformedSnapshot,
				logAttrEntityKind, string(kind),
				logAttrEntityID, *snapshot.EntityID,
				logAttrError, parseErr.Error())
			continue
		}

		if referencesCourse(pair.OldValues, courseID) {
			ids = append(ids, *snapshot.EntityID)
		}
	}

	return ids, nil
}

// referencesCourse compares the foreign key by uuid value, so casing or braces do not matter.
func referencesCourse(values changelog.FieldValues, courseID uuid.UUID) bool {
	value, ok := values.Get(ForeignKeyField)
	if !ok || value.Kind() != changelog.StringKind {
		return false
	}

	referenced, err := uuid.Parse(value.String())
	if err != nil {
		return false
	}

	return referenced == courseID
}
