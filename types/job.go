package types

import (
	"time"
)

// Job is a pending or leased unit of work.
type Job struct {
	ID            int64
	ScheduledAt   time.Time
	Queue         string
	TypeName      string
	MethodName    string
	MethodArgs    string // JSON array, one element per stored argument
	PeriodicJobID *string
	// CronExpression is the cron expression of the parent PeriodicJob at the
	// moment this occurrence was spawned.
	CronExpression *string
	ErrorCount     int
	Leaser         *string
	LeasedUntil    *time.Time
}

// IsPeriodic reports whether the job was spawned by a PeriodicJob.
func (j Job) IsPeriodic() bool {
	return j.PeriodicJobID != nil && *j.PeriodicJobID != ""
}

// Available reports whether the job can be claimed at now.
func (j Job) Available(now time.Time) bool {
	if j.ScheduledAt.After(now) {
		return false
	}
	return j.LeasedUntil == nil || j.LeasedUntil.Before(now)
}

// JobHistory is the append-only record of one terminal attempt. Its ID is
// the ID of the Job row the attempt consumed.
type JobHistory struct {
	ID              int64
	ProcessedAt     time.Time
	Status          JobStatus
	ScheduledAt     time.Time
	Queue           string
	TypeName        string
	MethodName      string
	MethodArgs      string
	PeriodicJobID   *string
	CronExpression  *string
	ErrorCount      int
	ErrorMessage    *string
	ErrorStackTrace *string
}

// NewJobHistory copies the descriptive fields of job into a history row.
func NewJobHistory(job Job, status JobStatus, processedAt time.Time) JobHistory {
	return JobHistory{
		ID:             job.ID,
		ProcessedAt:    processedAt,
		Status:         status,
		ScheduledAt:    job.ScheduledAt,
		Queue:          job.Queue,
		TypeName:       job.TypeName,
		MethodName:     job.MethodName,
		MethodArgs:     job.MethodArgs,
		PeriodicJobID:  job.PeriodicJobID,
		CronExpression: job.CronExpression,
		ErrorCount:     job.ErrorCount,
	}
}
