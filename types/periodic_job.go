package types

import "time"

// PeriodicJob is a named recurring definition that spawns Job occurrences.
type PeriodicJob struct {
	ID             string
	CronExpression string
	TypeName       string
	MethodName     string
	MethodArgs     string
	Queue          string
	IsActive       bool
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PeriodicDefinition is the desired state of a PeriodicJob, as declared by
// configuration or by a call to EnsurePeriodic.
type PeriodicDefinition struct {
	ID             string
	CronExpression string
	TypeName       string
	MethodName     string
	MethodArgs     string
	Queue          string
}

// SameDefinition reports whether p already carries def.
func (p PeriodicJob) SameDefinition(def PeriodicDefinition) bool {
	return p.TypeName == def.TypeName &&
		p.MethodName == def.MethodName &&
		p.MethodArgs == def.MethodArgs &&
		p.CronExpression == def.CronExpression &&
		p.Queue == def.Queue
}

// Apply overwrites the definition fields of p with def.
func (p *PeriodicJob) Apply(def PeriodicDefinition) {
	p.TypeName = def.TypeName
	p.MethodName = def.MethodName
	p.MethodArgs = def.MethodArgs
	p.CronExpression = def.CronExpression
	p.Queue = def.Queue
}

// CompatibleWith reports whether job is still a valid occurrence of p: it
// must have been spawned by p with the very definition p carries now.
func (p PeriodicJob) CompatibleWith(job Job) bool {
	if job.PeriodicJobID == nil || *job.PeriodicJobID != p.ID {
		return false
	}
	if job.CronExpression == nil || *job.CronExpression != p.CronExpression {
		return false
	}
	return job.TypeName == p.TypeName &&
		job.MethodName == p.MethodName &&
		job.MethodArgs == p.MethodArgs &&
		job.Queue == p.Queue
}

// Occurrence builds the Job that p spawns at scheduledAt.
func (p PeriodicJob) Occurrence(scheduledAt time.Time) Job {
	id := p.ID
	cron := p.CronExpression
	return Job{
		ScheduledAt:    scheduledAt,
		Queue:          p.Queue,
		TypeName:       p.TypeName,
		MethodName:     p.MethodName,
		MethodArgs:     p.MethodArgs,
		PeriodicJobID:  &id,
		CronExpression: &cron,
	}
}
