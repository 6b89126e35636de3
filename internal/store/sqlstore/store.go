// Package sqlstore implements store.JobStore on database/sql for every
// dialect the engine supports.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/RezaEskandarii/firejobs/custom_errors"
	"github.com/RezaEskandarii/firejobs/internal/dialect"
	"github.com/RezaEskandarii/firejobs/internal/store"
	"github.com/RezaEskandarii/firejobs/types"
)

type Store struct {
	db      *sql.DB
	dialect dialect.Dialect
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the clock used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(db *sql.DB, d dialect.Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: d,
		logger:  slog.Default(),
		now:     store.UTCNow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.JobStore = (*Store)(nil)

func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) queries(q querier) *queries {
	return &queries{q: q, d: s.dialect}
}

func (s *Store) Enqueue(ctx context.Context, job types.Job) (types.Job, error) {
	return s.queries(s.db).InsertJob(ctx, job)
}

func (s *Store) ClaimJobs(ctx context.Context, p dialect.ClaimParams) ([]types.Job, error) {
	p.Now = utc(p.Now)
	claim := s.dialect.ClaimJobs(p)

	var jobs []types.Job
	if !claim.TwoPhase() {
		rows, err := s.db.QueryContext(ctx, claim.Claim.Query, claim.Claim.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to claim jobs: %w", err)
		}
		if jobs, err = scanJobs(rows); err != nil {
			return nil, err
		}
	} else {
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, claim.Claim.Query, claim.Claim.Args...); err != nil {
				return fmt.Errorf("failed to claim jobs: %w", err)
			}
			rows, err := tx.QueryContext(ctx, claim.Fetch.Query, claim.Fetch.Args...)
			if err != nil {
				return fmt.Errorf("failed to fetch claimed jobs: %w", err)
			}
			jobs, err = scanJobs(rows)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].ScheduledAt.Equal(jobs[j].ScheduledAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].ScheduledAt.Before(jobs[j].ScheduledAt)
	})
	return jobs, nil
}

func (s *Store) ExtendLeases(ctx context.Context, leaser string, until time.Time) (int64, error) {
	stmt := s.dialect.ExtendLeases(leaser, utc(until))
	res, err := s.db.ExecContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("failed to extend leases of %s: %w", leaser, err)
	}
	return res.RowsAffected()
}

func (s *Store) ClearLeases(ctx context.Context, leaser string) (int64, error) {
	stmt := s.dialect.ClearLeases(leaser)
	res, err := s.db.ExecContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear leases of %s: %w", leaser, err)
	}
	return res.RowsAffected()
}

func (s *Store) FindPeriodicJobs(ctx context.Context, ids []string) (map[string]types.PeriodicJob, error) {
	found := make(map[string]types.PeriodicJob, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id IN (%s)`,
		periodicColumns, s.dialect.Tables().Periodic, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load periodic jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPeriodic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan periodic job: %w", err)
		}
		found[p.ID] = p
	}
	return found, rows.Err()
}

func (s *Store) FindPeriodic(ctx context.Context, id string) (*types.PeriodicJob, error) {
	return s.queries(s.db).FindPeriodic(ctx, id)
}

func (s *Store) DeletePeriodic(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.dialect.Tables().Periodic)
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete periodic job %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SetPeriodicActive(ctx context.Context, id string, active bool) error {
	query := fmt.Sprintf(`UPDATE %s SET is_active = ?, updated_at = ? WHERE id = ?`, s.dialect.Tables().Periodic)
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), active, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update periodic job %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %s", custom_errors.ErrPeriodicNotFound, id)
	}
	return nil
}

func (s *Store) ListPending(ctx context.Context, queue string, page, pageSize int) (*types.PaginationResult[types.Job], error) {
	page, pageSize = normalizePage(page, pageSize)

	where, args := "1 = 1", []any{}
	if queue != "" {
		where, args = "queue = ?", append(args, queue)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.dialect.Tables().Job, where)
	if err := s.db.QueryRowContext(ctx, s.dialect.Rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count pending jobs: %w", err)
	}

	selectQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY scheduled_at ASC, id ASC LIMIT ? OFFSET ?`,
		dialect.JobColumns, s.dialect.Tables().Job, where)
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(selectQuery), append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	return types.NewPaginationResult(jobs, total, page, pageSize), nil
}

func (s *Store) ListHistory(ctx context.Context, filter store.HistoryFilter, page, pageSize int) (*types.PaginationResult[types.JobHistory], error) {
	page, pageSize = normalizePage(page, pageSize)

	where, args := "1 = 1", []any{}
	if filter.Queue != "" {
		where += " AND queue = ?"
		args = append(args, filter.Queue)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.PeriodicJobID != "" {
		where += " AND periodic_job_id = ?"
		args = append(args, filter.PeriodicJobID)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.dialect.Tables().History, where)
	if err := s.db.QueryRowContext(ctx, s.dialect.Rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	selectQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY processed_at DESC, id DESC LIMIT ? OFFSET ?`,
		historyColumns, s.dialect.Tables().History, where)
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(selectQuery), append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var items []types.JobHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return types.NewPaginationResult(items, total, page, pageSize), nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(s.queries(tx))
	})
}

func (s *Store) WithNamedLock(ctx context.Context, name string, timeout time.Duration, fn func(tx store.Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	locks := s.dialect.LockManager()
	if err := locks.Acquire(ctx, conn, name, timeout); err != nil {
		return err
	}
	defer func() {
		if err := locks.Release(context.WithoutCancel(ctx), conn, name); err != nil {
			s.logger.Warn("failed to release named lock", "lock", name, "error", err)
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	return finishTx(tx, fn(s.queries(tx)))
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	return finishTx(tx, fn(tx))
}

func finishTx(tx *sql.Tx, err error) error {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}
