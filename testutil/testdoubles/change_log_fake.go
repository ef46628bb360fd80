package testdoubles

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/coursehistory/coursehistory-go/changelog"
)

// ChangeLogFake is an in-memory change log store.
// It evaluates filters with changelog.Filter.Matches and orders like the Postgres store does.
type ChangeLogFake struct {
	records          changelog.ChangeRecords
	queryErr         error
	snapshotQueryErr error
	queryCalls       atomic.Int32
	snapshotCalls    atomic.Int32
	filters          []changelog.Filter
	mu               sync.Mutex
}

// NewChangeLogFake creates a ChangeLogFake holding the given records.
func NewChangeLogFake(records ...changelog.ChangeRecord) *ChangeLogFake {
	return &ChangeLogFake{records: slices.Clone(records)}
}

// FailQueryWith makes every following Query call fail with err.
func (f *ChangeLogFake) FailQueryWith(err error) *ChangeLogFake {
	f.queryErr = err
	return f
}

// FailSnapshotQueryWith makes every following QueryEntitySnapshots call fail with err.
func (f *ChangeLogFake) FailSnapshotQueryWith(err error) *ChangeLogFake {
	f.snapshotQueryErr = err
	return f
}

// Query returns the matching records, newest first, ties by ascending id.
func (f *ChangeLogFake) Query(ctx context.Context, filter changelog.Filter) (changelog.ChangeRecords, error) {
	f.queryCalls.Add(1)
	f.rememberFilter(filter)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.queryErr != nil {
		return nil, f.queryErr
	}

	matching := f.matching(filter)
	slices.SortStableFunc(matching, func(a, b changelog.ChangeRecord) int {
		if c := b.OccurredAt.Compare(a.OccurredAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return matching, nil
}

// QueryEntitySnapshots returns the entity id and payload of the matching records in id order.
func (f *ChangeLogFake) QueryEntitySnapshots(ctx context.Context, filter changelog.Filter) ([]changelog.EntitySnapshot, error) {
	f.snapshotCalls.Add(1)
	f.rememberFilter(filter)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.snapshotQueryErr != nil {
		return nil, f.snapshotQueryErr
	}

	matching := f.matching(filter)
	slices.SortStableFunc(matching, func(a, b changelog.ChangeRecord) int {
		return cmp.Compare(a.ID, b.ID)
	})

	snapshots := make([]changelog.EntitySnapshot, 0, len(matching))
	for _, record := range matching {
		snapshots = append(snapshots, changelog.EntitySnapshot{
			EntityID:    record.EntityID,
			ChangesJSON: record.ChangesJSON,
		})
	}

	return snapshots, nil
}

// QueryCalls returns how often Query was called.
func (f *ChangeLogFake) QueryCalls() int {
	return int(f.queryCalls.Load())
}

// SnapshotQueryCalls returns how often QueryEntitySnapshots was called.
func (f *ChangeLogFake) SnapshotQueryCalls() int {
	return int(f.snapshotCalls.Load())
}

// Filters returns every filter the fake was queried with.
func (f *ChangeLogFake) Filters() []changelog.Filter {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.filters)
}

func (f *ChangeLogFake) rememberFilter(filter changelog.Filter) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.filters = append(f.filters, filter)
}

func (f *ChangeLogFake) matching(filter changelog.Filter) changelog.ChangeRecords {
	matching := make(changelog.ChangeRecords, 0)

	for _, record := range f.records {
		if filter.Matches(record) {
			matching = append(matching, record)
		}
	}

	return matching
}
