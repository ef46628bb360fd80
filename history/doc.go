// Package history reconstructs the change history of a course together with its lessons, tests and attachments.
//
// A request for one course runs through a fixed pipeline:
//
//	CourseReader (existence) -> Resolver (related entity ids) -> ComposeFilter -> ChangeLog.Query
//	  -> Diff + ProviderRegistry (reference data) + ActorDirectory -> PresentationMapper
//
// The QueryHandler drives it and wraps it with logging, metrics and tracing.
// Related entities are found through live catalog rows and through the deletion records
// of the change log, so history of deleted lessons, tests and attachments stays visible.
//
// Diff compares the old and new snapshot of each record and produces labelled entries.
// Reference data providers add entries that need lookups, such as status, department
// and level names of a course or the lesson a test belongs to.
//
// Usage:
//
//	handler, err := history.NewQueryHandler(store, catalog, catalog, catalog, registry,
//		history.WithLogging(logger),
//		history.WithTracing(tracer),
//	)
//	result, err := handler.Handle(ctx, history.BuildQuery(courseID))
package history
