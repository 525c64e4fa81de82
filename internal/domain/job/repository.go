package job

import (
	"context"
)

// Repository defines the interface for job data access
type Repository interface {
	Create(ctx context.Context, j *Job) error
	GetByJobID(ctx context.Context, jobID string) (*Job, error)
	MarkActive(ctx context.Context, jobID string) error
	RecordResult(ctx context.Context, jobID string, result *Result) error
	ListActive(ctx context.Context) ([]*Job, error)
}
