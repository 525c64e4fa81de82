package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"hermes/internal/domain/job"
	"hermes/pkg/errors"
)

// Compile-time check
var _ job.Repository = (*JobRepository)(nil)

// JobRepository implements job.Repository using sqlx
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job
func (r *JobRepository) Create(ctx context.Context, j *job.Job) error {
	query := `
		INSERT INTO jobs (
			id, job_id, symbol,
			long_exchange, short_exchange,
			market_asset_long, market_asset_short,
			long_sub_account, short_sub_account,
			long_entity, short_entity,
			quantity, tick_quantity,
			status, processed_quantity,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17
		)`

	_, err := r.db.ExecContext(ctx, query,
		j.ID, j.JobID, j.Symbol,
		j.LongExchange, j.ShortExchange,
		j.MarketAssetLong, j.MarketAssetShort,
		j.LongSubAccount, j.ShortSubAccount,
		j.LongEntity, j.ShortEntity,
		j.Quantity, j.TickQuantity,
		j.Status, j.ProcessedQuantity,
		j.CreatedAt, j.UpdatedAt,
	)

	return err
}

// GetByJobID retrieves a job by its external job ID
func (r *JobRepository) GetByJobID(ctx context.Context, jobID string) (*job.Job, error) {
	var j job.Job

	query := `SELECT * FROM jobs WHERE job_id = $1`

	err := r.db.GetContext(ctx, &j, query, jobID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &j, nil
}

// MarkActive transitions a job to ACTIVE
func (r *JobRepository) MarkActive(ctx context.Context, jobID string) error {
	query := `UPDATE jobs SET status = $1, updated_at = $2 WHERE job_id = $3`

	result, err := r.db.ExecContext(ctx, query, job.StatusActive, time.Now(), jobID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.ErrNotFound
	}

	return nil
}

// RecordResult stores the terminal status and processed quantity of a run
func (r *JobRepository) RecordResult(ctx context.Context, jobID string, res *job.Result) error {
	query := `
		UPDATE jobs
		SET status = $1, processed_quantity = $2, finished_at = $3, updated_at = $3
		WHERE job_id = $4`

	result, err := r.db.ExecContext(ctx, query, res.Status, res.ProcessedQuantity, time.Now(), jobID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.ErrNotFound
	}

	return nil
}

// ListActive retrieves all jobs currently marked ACTIVE
func (r *JobRepository) ListActive(ctx context.Context) ([]*job.Job, error) {
	var jobs []*job.Job

	query := `SELECT * FROM jobs WHERE status = $1 ORDER BY created_at`

	err := r.db.SelectContext(ctx, &jobs, query, job.StatusActive)
	if err != nil {
		return nil, err
	}

	return jobs, nil
}
