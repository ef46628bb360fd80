package history

import (
	"errors"
)

// ErrCourseNotFound is returned when the requested course does not exist. Nothing else is read.
var ErrCourseNotFound = errors.New("course not found")

// ErrEnrichmentFailed is returned when a reference data lookup fails. The whole request fails with it.
var ErrEnrichmentFailed = errors.New("reference data enrichment failed")

var ErrResolvingRelatedEntitiesFailed = errors.New("resolving related entities failed")
var ErrCheckingCourseFailed = errors.New("checking course existence failed")
var ErrLoadingActorsFailed = errors.New("loading actor display names failed")
