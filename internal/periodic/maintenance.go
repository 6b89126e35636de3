package periodic

import (
	"context"
	"log/slog"
	"time"

	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/types"
	"github.com/RezaEskandarii/firejobs/types/config"
)

// The built-in history purge job.
const (
	MaintenanceType    = "firejobs.Maintenance"
	PurgeHistoryMethod = "PurgeHistory"
	PurgeHistoryID     = config.ReservedPeriodicPrefix + "purge-history"
	PurgeHistoryCron   = "0 0 * * * *"
)

// PurgeHistory returns the job function deleting history rows older than
// retentionDays.
func PurgeHistory(s store.JobStore, now func() time.Time, logger *slog.Logger) func(ctx context.Context, retentionDays int) error {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, retentionDays int) error {
		cutoff := now().AddDate(0, 0, -retentionDays)
		var purged int64
		err := s.InTx(ctx, func(tx store.Tx) error {
			var err error
			purged, err = tx.DeleteHistoryBefore(ctx, cutoff)
			return err
		})
		if err != nil {
			return err
		}
		logger.Info("history purged", "rows", purged, "before", cutoff)
		return nil
	}
}

// PurgeHistoryInvocation is the invocation of the purge job.
func PurgeHistoryInvocation(retentionDays int) types.Invocation {
	return types.NewInvocation(MaintenanceType, PurgeHistoryMethod, retentionDays)
}
