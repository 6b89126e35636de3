package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RezaEskandarii/firejobs/internal/dialect"
	"github.com/RezaEskandarii/firejobs/types"
)

const (
	historyColumns = "id, processed_at, status, scheduled_at, queue, type_name, method_name, method_args, " +
		"periodic_job_id, cron_expression, error_count, error_message, error_stack_trace"
	periodicColumns = "id, cron_expression, type_name, method_name, method_args, queue, " +
		"is_active, version, created_at, updated_at"
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// queries implements store.Tx over any querier.
type queries struct {
	q querier
	d dialect.Dialect
}

func (s *queries) InsertJob(ctx context.Context, job types.Job) (types.Job, error) {
	job.ScheduledAt = utc(job.ScheduledAt)
	query := fmt.Sprintf(`
		INSERT INTO %s (scheduled_at, queue, type_name, method_name, method_args,
			periodic_job_id, cron_expression, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.d.Tables().Job)
	args := []any{
		job.ScheduledAt, job.Queue, job.TypeName, job.MethodName, job.MethodArgs,
		job.PeriodicJobID, job.CronExpression, job.ErrorCount,
	}

	if s.d.Returning() {
		err := s.q.QueryRowContext(ctx, s.d.Rebind(query+" RETURNING id"), args...).Scan(&job.ID)
		if err != nil {
			return types.Job{}, fmt.Errorf("failed to insert job: %w", err)
		}
		return job, nil
	}

	res, err := s.q.ExecContext(ctx, s.d.Rebind(query), args...)
	if err != nil {
		return types.Job{}, fmt.Errorf("failed to insert job: %w", err)
	}
	if job.ID, err = res.LastInsertId(); err != nil {
		return types.Job{}, fmt.Errorf("failed to read job id: %w", err)
	}
	return job, nil
}

func (s *queries) DeleteJob(ctx context.Context, id int64, leaser string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND leaser = ?`, s.d.Tables().Job)
	res, err := s.q.ExecContext(ctx, s.d.Rebind(query), id, leaser)
	if err != nil {
		return false, fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *queries) InsertHistory(ctx context.Context, h types.JobHistory) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.d.Tables().History, historyColumns)
	_, err := s.q.ExecContext(ctx, s.d.Rebind(query),
		h.ID, utc(h.ProcessedAt), string(h.Status), utc(h.ScheduledAt), h.Queue, h.TypeName, h.MethodName,
		h.MethodArgs, h.PeriodicJobID, h.CronExpression, h.ErrorCount, h.ErrorMessage, h.ErrorStackTrace)
	if err != nil {
		return fmt.Errorf("failed to insert history for job %d: %w", h.ID, err)
	}
	return nil
}

func (s *queries) FindPeriodic(ctx context.Context, id string) (*types.PeriodicJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, periodicColumns, s.d.Tables().Periodic)
	p, err := scanPeriodic(s.q.QueryRowContext(ctx, s.d.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find periodic job %q: %w", id, err)
	}
	return &p, nil
}

func (s *queries) InsertPeriodic(ctx context.Context, p types.PeriodicJob) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.d.Tables().Periodic, periodicColumns)
	_, err := s.q.ExecContext(ctx, s.d.Rebind(query),
		p.ID, p.CronExpression, p.TypeName, p.MethodName, p.MethodArgs, p.Queue,
		p.IsActive, p.Version, utc(p.CreatedAt), utc(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert periodic job %q: %w", p.ID, err)
	}
	return nil
}

func (s *queries) UpdatePeriodic(ctx context.Context, p types.PeriodicJob) error {
	query := fmt.Sprintf(`
		UPDATE %s SET cron_expression = ?, type_name = ?, method_name = ?, method_args = ?,
			queue = ?, is_active = ?, version = ?, updated_at = ?
		WHERE id = ?`, s.d.Tables().Periodic)
	_, err := s.q.ExecContext(ctx, s.d.Rebind(query),
		p.CronExpression, p.TypeName, p.MethodName, p.MethodArgs, p.Queue,
		p.IsActive, p.Version, utc(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update periodic job %q: %w", p.ID, err)
	}
	return nil
}

func (s *queries) CountPendingForPeriodic(ctx context.Context, id string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE periodic_job_id = ?`, s.d.Tables().Job)
	var n int
	if err := s.q.QueryRowContext(ctx, s.d.Rebind(query), id).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count occurrences of %q: %w", id, err)
	}
	return n, nil
}

func (s *queries) DeleteHistoryBefore(ctx context.Context, before time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE processed_at < ?`, s.d.Tables().History)
	res, err := s.q.ExecContext(ctx, s.d.Rebind(query), utc(before))
	if err != nil {
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(row scanner) (types.Job, error) {
	var job types.Job
	err := row.Scan(
		&job.ID, &job.ScheduledAt, &job.Queue, &job.TypeName, &job.MethodName, &job.MethodArgs,
		&job.PeriodicJobID, &job.CronExpression, &job.ErrorCount, &job.Leaser, &job.LeasedUntil,
	)
	if err != nil {
		return types.Job{}, err
	}
	job.ScheduledAt = job.ScheduledAt.UTC()
	if job.LeasedUntil != nil {
		t := job.LeasedUntil.UTC()
		job.LeasedUntil = &t
	}
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]types.Job, error) {
	defer rows.Close()
	var jobs []types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanHistory(row scanner) (types.JobHistory, error) {
	var h types.JobHistory
	var status string
	err := row.Scan(
		&h.ID, &h.ProcessedAt, &status, &h.ScheduledAt, &h.Queue, &h.TypeName, &h.MethodName, &h.MethodArgs,
		&h.PeriodicJobID, &h.CronExpression, &h.ErrorCount, &h.ErrorMessage, &h.ErrorStackTrace,
	)
	if err != nil {
		return types.JobHistory{}, err
	}
	h.Status = types.JobStatus(status)
	h.ProcessedAt = h.ProcessedAt.UTC()
	h.ScheduledAt = h.ScheduledAt.UTC()
	return h, nil
}

func scanPeriodic(row scanner) (types.PeriodicJob, error) {
	var p types.PeriodicJob
	err := row.Scan(
		&p.ID, &p.CronExpression, &p.TypeName, &p.MethodName, &p.MethodArgs, &p.Queue,
		&p.IsActive, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return types.PeriodicJob{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
