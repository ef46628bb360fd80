package history

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursehistory/coursehistory-go/changelog"
)

// QueryHandler answers history queries for one course at a time.
// It is safe for concurrent use; every request only shares the read-only collaborators.
type QueryHandler struct {
	changeLog   ChangeLog
	courses     CourseReader
	membership  MembershipReader
	actors      ActorDirectory
	providers   ProviderRegistry
	mapper      PresentationMapper
	strongReads bool
	observer    observer
}

// NewQueryHandler creates a QueryHandler with the provided dependencies.
func NewQueryHandler(
	changeLog ChangeLog,
	courses CourseReader,
	membership MembershipReader,
	actors ActorDirectory,
	providers ProviderRegistry,
	opts ...Option,
) (QueryHandler, error) {

	if changeLog == nil || courses == nil || membership == nil || actors == nil {
		return QueryHandler{}, ErrNilDependency
	}

	handler := QueryHandler{
		changeLog:  changeLog,
		courses:    courses,
		membership: membership,
		actors:     actors,
		providers:  providers,
		mapper:     NewPresentationMapper(nil, ""),
	}

	for _, opt := range opts {
		if err := opt(&handler); err != nil {
			return QueryHandler{}, err
		}
	}

	return handler, nil
}

// Handle reconstructs the history of the queried course.
//
// Returns ErrCourseNotFound without reading the change log if the course does not exist,
// and ErrEnrichmentFailed if a reference data lookup fails. Malformed snapshots only lose their diff entries.
func (h QueryHandler) Handle(ctx context.Context, query Query) (QueryResult, error) {
	start := time.Now()
	courseID := query.CourseID.String()

	ctx, span := h.observer.startSpan(ctx, courseID)
	h.observer.info(ctx, logMsgRequestStarted, logAttrCourseID, courseID)

	result, err := h.handle(ctx, query)

	duration := time.Since(start)
	if err != nil {
		h.recordFailure(ctx, span, courseID, err, duration)
		return QueryResult{}, err
	}

	h.observer.recordDuration(ctx, StatusSuccess, duration)
	h.observer.recordValue(ctx, RecordsReturnedMetric, float64(result.Count))
	h.observer.finishSpan(span, StatusSuccess, map[string]string{
		spanAttrRecordCount: strconv.Itoa(result.Count),
		spanAttrDurationMS:  strconv.FormatFloat(toMilliseconds(duration), 'f', 2, 64),
	})
	h.observer.info(ctx, logMsgRequestCompleted,
		logAttrCourseID, courseID,
		logAttrRecordCount, result.Count,
		logAttrDurationMS, toMilliseconds(duration))

	return result, nil
}

func (h QueryHandler) handle(ctx context.Context, query Query) (QueryResult, error) {
	if !h.strongReads {
		ctx = changelog.WithEventualConsistency(ctx)
	}

	exists, err := h.courses.CourseExists(ctx, query.CourseID)
	if err != nil {
		return QueryResult{}, errors.Join(ErrCheckingCourseFailed, err)
	}

	if !exists {
		return QueryResult{}, ErrCourseNotFound
	}

	related, err := NewResolver(h.changeLog, h.membership, h.observer.logger, h.observer.contextualLogger).
		Resolve(ctx, query.CourseID)
	if err != nil {
		return QueryResult{}, err
	}

	records, err := h.changeLog.Query(ctx, ComposeFilter(query.CourseID, related))
	if err != nil {
		return QueryResult{}, err
	}

	var (
		diffs      map[int64][]DiffEntry
		reference  map[int64]ReferenceData
		actorNames map[string]string
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		diffs = h.diffBatch(groupCtx, records)
		return nil
	})

	group.Go(func() error {
		provided, provideErr := h.providers.Provide(groupCtx, records)
		reference = provided
		return provideErr
	})

	group.Go(func() error {
		names, lookupErr := h.loadActorNames(groupCtx, records)
		actorNames = names
		return lookupErr
	})

	if err = group.Wait(); err != nil {
		return QueryResult{}, err
	}

	presented := h.mapper.Map(records, actorNames, diffs, reference)

	return QueryResult{
		CourseID: query.CourseID.String(),
		Records:  presented,
		Count:    len(presented),
	}, nil
}

// diffBatch diffs every non-link record. Malformed payloads are logged and yield no entries.
func (h QueryHandler) diffBatch(ctx context.Context, records changelog.ChangeRecords) map[int64][]DiffEntry {
	diffs := make(map[int64][]DiffEntry, len(records))
	for _, record := range records {
		if record.EntityKind.IsLink() {
			continue
		}

		entries, err := DiffRecord(record)
		if err != nil {
			h.observer.warn(ctx, logMsgMalformedSnapshot,
				logAttrRecordID, record.ID,
				logAttrEntityKind, string(record.EntityKind),
				logAttrError, err.Error())
			continue
		}

		diffs[record.ID] = entries
	}

	return diffs
}

func (h QueryHandler) loadActorNames(ctx context.Context, records changelog.ChangeRecords) (map[string]string, error) {
	actorIDs := make([]string, 0)
	for _, record := range records {
		if record.ActorID != nil {
			actorIDs = append(actorIDs, canonicalID(*record.ActorID))
		}
	}

	slices.Sort(actorIDs)
	actorIDs = slices.Compact(actorIDs)

	if len(actorIDs) == 0 {
		return map[string]string{}, nil
	}

	names, err := h.actors.DisplayNames(ctx, actorIDs)
	if err != nil {
		return nil, errors.Join(ErrLoadingActorsFailed, err)
	}

	return names, nil
}

func (h QueryHandler) recordFailure(ctx context.Context, span SpanContext, courseID string, err error, duration time.Duration) {
	status := statusOf(err)

	switch status {
	case StatusCanceled:
		h.observer.incrementCounter(ctx, RequestCanceledMetric, status)
	case StatusTimeout:
		h.observer.incrementCounter(ctx, RequestTimeoutMetric, status)
	}

	h.observer.recordDuration(ctx, status, duration)
	h.observer.finishSpan(span, status, map[string]string{
		spanAttrErrorType:  status,
		spanAttrDurationMS: strconv.FormatFloat(toMilliseconds(duration), 'f', 2, 64),
	})

	if status == StatusNotFound {
		h.observer.info(ctx, logMsgRequestFailed,
			logAttrCourseID, courseID,
			logAttrStatus, status,
			logAttrDurationMS, toMilliseconds(duration))
		return
	}

	h.observer.error(ctx, logMsgRequestFailed,
		logAttrCourseID, courseID,
		logAttrStatus, status,
		logAttrError, err.Error(),
		logAttrDurationMS, toMilliseconds(duration))
}
