//go:build integration

package sqlstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/firejobs/internal/dialect"
	"github.com/RezaEskandarii/firejobs/internal/lock"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/internal/testutil"
	"github.com/RezaEskandarii/firejobs/types"
)

// Concurrent claimers must never lease the same job twice.
func TestPostgres_ConcurrentClaimsNeverOverlap(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			s := testutil.NewPostgresStore(t, driver, store.UTCNow)
			ctx := context.Background()

			const jobs = 200
			for i := 0; i < jobs; i++ {
				_, err := s.Enqueue(ctx, types.Job{
					ScheduledAt: store.UTCNow().Add(-time.Minute),
					Queue:       "default", TypeName: "Load", MethodName: "Run", MethodArgs: "[]",
				})
				require.NoError(t, err)
			}

			var (
				mu      sync.Mutex
				claimed = make(map[int64]string)
				wg      sync.WaitGroup
			)
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					leaser := fmt.Sprintf("it:default:%d", w)
					for {
						batch, err := s.ClaimJobs(ctx, dialect.ClaimParams{
							Queue: "default", MaxJobs: 7, Leaser: leaser, LeaseDuration: time.Minute, Now: store.UTCNow(),
						})
						if err != nil {
							t.Errorf("claim: %v", err)
							return
						}
						if len(batch) == 0 {
							return
						}
						mu.Lock()
						for _, job := range batch {
							if other, dup := claimed[job.ID]; dup {
								t.Errorf("job %d leased by %s and %s", job.ID, other, leaser)
							}
							claimed[job.ID] = leaser
						}
						mu.Unlock()
					}
				}(w)
			}
			wg.Wait()
			assert.Len(t, claimed, jobs)
		})
	}
}

func TestPostgres_NamedLockSerializesTransactions(t *testing.T) {
	s := testutil.NewPostgresStore(t, "postgres", store.UTCNow)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		inside int
		peak   int
		wg     sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithNamedLock(ctx, lock.PeriodicJobResource, 10*time.Second, func(store.Tx) error {
				mu.Lock()
				inside++
				peak = max(peak, inside)
				mu.Unlock()
				time.Sleep(50 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)
}
