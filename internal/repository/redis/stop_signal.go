package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"hermes/pkg/errors"
)

const stopSetKey = "arbitrage:stop"

// StopSignalRepository tracks stop requests for running jobs as a Redis set
// keyed by job ID. A stop request survives process restarts until it is
// consumed by the executor.
type StopSignalRepository struct {
	client *redis.Client
}

// NewStopSignalRepository creates a new stop signal repository
func NewStopSignalRepository(client *redis.Client) *StopSignalRepository {
	return &StopSignalRepository{
		client: client,
	}
}

// RequestStop flags a job for graceful shutdown
func (r *StopSignalRepository) RequestStop(ctx context.Context, jobID string) error {
	if err := r.client.SAdd(ctx, stopSetKey, jobID).Err(); err != nil {
		return errors.Wrapf(err, "failed to request stop: job_id=%s", jobID)
	}
	return nil
}

// IsStopRequested reports whether a stop has been requested for the job
func (r *StopSignalRepository) IsStopRequested(ctx context.Context, jobID string) (bool, error) {
	stopped, err := r.client.SIsMember(ctx, stopSetKey, jobID).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to check stop signal: job_id=%s", jobID)
	}
	return stopped, nil
}

// ClearStop removes the stop flag after the job has honored it
func (r *StopSignalRepository) ClearStop(ctx context.Context, jobID string) error {
	if err := r.client.SRem(ctx, stopSetKey, jobID).Err(); err != nil {
		return errors.Wrapf(err, "failed to clear stop signal: job_id=%s", jobID)
	}
	return nil
}
