package testdoubles

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/coursehistory/coursehistory-go/changelog"
)

// CourseReaderFake knows a fixed set of existing courses.
type CourseReaderFake struct {
	Existing []uuid.UUID
	Err      error
}

// CourseExists reports whether the course is one of the existing ones.
func (f CourseReaderFake) CourseExists(_ context.Context, courseID uuid.UUID) (bool, error) {
	if f.Err != nil {
		return false, f.Err
	}

	return slices.Contains(f.Existing, courseID), nil
}

// MembershipReaderFake holds the live ids per entity kind and course.
type MembershipReaderFake struct {
	Live map[changelog.EntityKind]map[uuid.UUID][]string
	Err  error
}

// NewMembershipReaderFake creates an empty MembershipReaderFake.
func NewMembershipReaderFake() *MembershipReaderFake {
	return &MembershipReaderFake{Live: make(map[changelog.EntityKind]map[uuid.UUID][]string)}
}

// WithLive registers live ids of a kind for a course.
func (f *MembershipReaderFake) WithLive(kind changelog.EntityKind, courseID uuid.UUID, ids ...string) *MembershipReaderFake {
	if f.Live[kind] == nil {
		f.Live[kind] = make(map[uuid.UUID][]string)
	}

	f.Live[kind][courseID] = append(f.Live[kind][courseID], ids...)

	return f
}

// LiveIDs returns the registered live ids.
func (f *MembershipReaderFake) LiveIDs(_ context.Context, kind changelog.EntityKind, courseID uuid.UUID) ([]string, error) {
	if f.Err != nil {
		return nil, f.Err
	}

	return slices.Clone(f.Live[kind][courseID]), nil
}

// NameLookupFake resolves ids to names from a map. It serves as actor directory and as name lookup.
type NameLookupFake struct {
	Known map[string]string
	Err   error
	calls atomic.Int32
}

// NewNameLookupFake creates a NameLookupFake from a map of id to name.
func NewNameLookupFake(names map[string]string) *NameLookupFake {
	return &NameLookupFake{Known: names}
}

// Names returns the known names of the requested ids; unknown ids are left out.
func (f *NameLookupFake) Names(_ context.Context, ids []string) (map[string]string, error) {
	f.calls.Add(1)

	if f.Err != nil {
		return nil, f.Err
	}

	found := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := f.Known[id]; ok {
			found[id] = name
		}
	}

	return found, nil
}

// DisplayNames implements the actor directory with the same map.
func (f *NameLookupFake) DisplayNames(ctx context.Context, actorIDs []string) (map[string]string, error) {
	return f.Names(ctx, actorIDs)
}

// Calls returns how often the fake was asked.
func (f *NameLookupFake) Calls() int {
	return int(f.calls.Load())
}
