package history

// QueryResult is the history of one course, newest record first.
type QueryResult struct {
	CourseID string               `json:"courseId"`
	Records  []PresentationRecord `json:"records"`
	Count    int                  `json:"count"`
}
