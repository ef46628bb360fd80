// Package changelog provides the core abstractions for reading an append-only change log
// of entity mutations.
//
// This package defines the types shared by change log store implementations: change records,
// their snapshot payloads, and the filter used to select records.
//
// The change log supports filtering of records based on:
//   - Entity kinds
//   - Entity ids
//   - Actions (Created, Modified, Deleted)
//   - Time ranges (occurred from/until)
//
// Key types:
//   - Filter: Defines criteria for querying change records
//   - ChangeRecord: One immutable mutation of one entity instance
//   - SnapshotPair: The decoded old/new field values attached to a ChangeRecord
//   - Scalar: A JSON scalar that keeps its value kind through decoding
//
// Common usage pattern:
//
//	// Select every change of a course and of two of its lessons
//	filter := BuildChangeFilter().
//		Matching().
//		AnyEntityKindOf(Course).
//		AndAnyEntityIDOf(courseID.String()).
//		OrMatching().
//		AnyEntityKindOf(Lesson).
//		AndAnyEntityIDOf(lessonID1, lessonID2).
//		Finalize()
//
//	records, err := store.Query(ctx, filter)
//	if err != nil {
//		// handle error
//	}
//
//	pair, err := records[0].Snapshot()
package changelog
