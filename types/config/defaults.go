package config

import (
	"runtime"
	"time"
)

const (
	DefaultQueue                   = "default"
	DefaultBatchSize               = 10
	DefaultWorkerCount             = 1
	DefaultLeaseDurationSeconds    = 300
	DefaultPollingIntervalSeconds  = 15
	DefaultClearLeaseTimeoutSecond = 10
	DefaultHistoryRetentionDays    = 30
	DefaultPeriodicInterval        = time.Minute
	DefaultPeriodicLockTimeout     = 30 * time.Second
	DefaultStorageDriver           = Postgres
	DefaultPostgresDriverName      = "postgres"

	// ReservedPeriodicPrefix starts the ids of built-in periodic jobs.
	ReservedPeriodicPrefix = "firejobs:"
)

// DefaultMaxDegreeOfParallelism is the number of jobs of one batch that run
// at the same time.
func DefaultMaxDegreeOfParallelism() int {
	return runtime.NumCPU()
}
