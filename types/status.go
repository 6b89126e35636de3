package types

// JobStatus is the terminal classification of one execution attempt.
type JobStatus string

const (
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusSkipped   JobStatus = "skipped"
	StatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) String() string {
	return string(s)
}

var AllStatuses = []JobStatus{
	StatusCompleted,
	StatusFailed,
	StatusSkipped,
	StatusCancelled,
}
