package history

import (
	"github.com/google/uuid"
)

// Query asks for the history of one course.
type Query struct {
	CourseID uuid.UUID
}

// BuildQuery creates a new Query with the provided course ID.
func BuildQuery(courseID uuid.UUID) Query {
	return Query{
		CourseID: courseID,
	}
}

// ParseQuery creates a Query from the text form of a course ID.
func ParseQuery(courseID string) (Query, error) {
	parsed, err := uuid.Parse(courseID)
	if err != nil {
		return Query{}, err
	}

	return BuildQuery(parsed), nil
}
